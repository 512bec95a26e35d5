package main

import (
	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/flashbots/lambda-storage-guard/config"
	"github.com/flashbots/lambda-storage-guard/processor"
	"github.com/urfave/cli/v2"
)

func CommandLambda(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "lambda",
		Usage: "Run lambda handler for scheduled events",

		Flags:  runnerFlags(cfg),
		Before: runnerBefore(cfg),

		Action: func(clictx *cli.Context) error {
			p, err := processor.New(clictx.Context, cfg)
			if err != nil {
				return err
			}
			awslambda.Start(p.Lambda)
			return nil
		},
	}
}
