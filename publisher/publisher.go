package publisher

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/flashbots/lambda-storage-guard/config"
	"github.com/flashbots/lambda-storage-guard/logutils"
	"github.com/flashbots/lambda-storage-guard/types"
	"go.uber.org/zap"
)

// Publisher delivers notifications to the sns topic and, when configured,
// mirrors them into a slack channel.  Only the sns delivery can fail the call.
type Publisher struct {
	topic *SNSTopic
	slack *SlackChannel
}

func New(awsCfg aws.Config, cfg *config.Config) *Publisher {
	p := &Publisher{
		topic: NewSNSTopic(awsCfg, cfg.Runner.TopicARN),
	}
	if cfg.Slack.ChannelName != "" && cfg.Slack.Token != "" {
		p.slack = NewSlackChannel(cfg)
	}
	return p
}

func (p *Publisher) Publish(
	ctx context.Context,
	n *types.Notification,
) (string, error) {
	l := logutils.LoggerFromContext(ctx)

	messageID, err := p.topic.Publish(ctx, n)
	if err != nil {
		return "", err
	}

	if p.slack != nil {
		if _, err := p.slack.PublishMessage(ctx, n); err != nil {
			l.Warn("Notification was delivered to sns but not to slack",
				zap.Error(err),
				zap.String("sns_message_id", messageID),
			)
		}
	}

	return messageID, nil
}
