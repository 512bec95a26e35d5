package usage

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/flashbots/lambda-storage-guard/logutils"
	"github.com/flashbots/lambda-storage-guard/types"
	"go.uber.org/zap"
)

var (
	ErrAccountSettingsIncomplete = errors.New("account settings lack code size figures")
)

type accountSettingsAPI interface {
	GetAccountSettings(
		ctx context.Context,
		params *lambda.GetAccountSettingsInput,
		optFns ...func(*lambda.Options),
	) (*lambda.GetAccountSettingsOutput, error)
}

// Lambda reads the account-wide code storage figures of AWS Lambda.
type Lambda struct {
	client accountSettingsAPI
}

func NewLambda(cfg aws.Config) *Lambda {
	return &Lambda{
		client: lambda.NewFromConfig(cfg),
	}
}

func (p *Lambda) Snapshot(ctx context.Context) (*types.UsageSnapshot, error) {
	l := logutils.LoggerFromContext(ctx)

	res, err := p.client.GetAccountSettings(ctx, &lambda.GetAccountSettingsInput{})
	if err != nil {
		l.Error("Failed to get lambda account settings",
			zap.Error(err),
		)
		return nil, err
	}
	if res.AccountLimit == nil || res.AccountUsage == nil {
		return nil, ErrAccountSettingsIncomplete
	}

	return types.NewUsageSnapshot(
		res.AccountLimit.TotalCodeSize,
		res.AccountUsage.TotalCodeSize,
	)
}
