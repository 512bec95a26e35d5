package publisher

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/flashbots/lambda-storage-guard/logutils"
	"github.com/flashbots/lambda-storage-guard/types"
	"go.uber.org/zap"
)

type snsAPI interface {
	Publish(
		ctx context.Context,
		params *sns.PublishInput,
		optFns ...func(*sns.Options),
	) (*sns.PublishOutput, error)
}

type SNSTopic struct {
	arn string
	sns snsAPI
}

func NewSNSTopic(cfg aws.Config, arn string) *SNSTopic {
	return &SNSTopic{
		arn: arn,
		sns: sns.NewFromConfig(cfg),
	}
}

func (p *SNSTopic) Publish(
	ctx context.Context,
	n *types.Notification,
) (string, error) {
	l := logutils.LoggerFromContext(ctx)

	res, err := p.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.arn),
		Subject:  aws.String(n.Subject),
		Message:  aws.String(n.Body),
	})
	if err != nil {
		l.Error("Error publishing message to sns",
			zap.Error(err),
			zap.String("sns_topic", p.arn),
			zap.String("subject", n.Subject),
		)
		return "", err
	}

	return aws.ToString(res.MessageId), nil
}
