package main

import (
	"encoding/json"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/flashbots/lambda-storage-guard/config"
	"github.com/flashbots/lambda-storage-guard/types"
	"github.com/flashbots/lambda-storage-guard/usage"
	"github.com/urfave/cli/v2"
)

func CommandUsage(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Print the current lambda storage usage without alerting or cleaning up",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Destination: &cfg.Runner.Region,
				EnvVars:     []string{"AWS_REGION"},
				Name:        "region",
				Usage:       "aws region to check the lambda storage usage in",
			},

			&cli.Float64Flag{
				Destination: &cfg.Runner.ThresholdPercent,
				EnvVars:     []string{"THRESHOLD_PERCENT"},
				Name:        "threshold",
				Usage:       "storage usage `percent` to compare the current usage against",
				Value:       config.DefaultThresholdPercent,
			},
		},

		Before: func(_ *cli.Context) error {
			if cfg.Runner.Region == "" {
				return config.ErrRegionMissing
			}
			if t := cfg.Runner.ThresholdPercent; t <= 0 || t > 100 {
				return fmt.Errorf("%w: %v",
					config.ErrThresholdInvalid, t,
				)
			}
			return nil
		},

		Action: func(clictx *cli.Context) error {
			awsCfg, err := awsconfig.LoadDefaultConfig(clictx.Context,
				awsconfig.WithRegion(cfg.Runner.Region),
			)
			if err != nil {
				return err
			}

			s, err := usage.NewLambda(awsCfg).Snapshot(clictx.Context)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(newUsageReport(&cfg.Runner, s), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
}

type usageReport struct {
	Region      string  `json:"region"`
	UsedMB      string  `json:"used_mb"`
	LimitMB     string  `json:"limit_mb"`
	PercentUsed string  `json:"percent_used"`
	UsedBytes   int64   `json:"used_bytes"`
	LimitBytes  int64   `json:"limit_bytes"`
	Exceeds     bool    `json:"exceeds_threshold"`
	Threshold   float64 `json:"threshold_percent"`
}

func newUsageReport(cfg *config.Runner, s *types.UsageSnapshot) usageReport {
	return usageReport{
		Region:      cfg.Region,
		UsedMB:      fmt.Sprintf("%.2f", s.UsedMB()),
		LimitMB:     fmt.Sprintf("%.2f", s.LimitMB()),
		PercentUsed: fmt.Sprintf("%.2f", s.PercentUsed),
		UsedBytes:   s.UsedBytes,
		LimitBytes:  s.LimitBytes,
		Exceeds:     s.Exceeds(cfg.ThresholdPercent),
		Threshold:   cfg.ThresholdPercent,
	}
}
