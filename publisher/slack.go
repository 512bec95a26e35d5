package publisher

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/flashbots/lambda-storage-guard/config"
	"github.com/flashbots/lambda-storage-guard/logutils"
	"github.com/flashbots/lambda-storage-guard/types"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Slack rejects attachments longer than this.
const maxSlackText = 3000

type slackAPI interface {
	PostMessageContext(
		ctx context.Context,
		channelID string,
		options ...slack.MsgOption,
	) (string, string, error)
}

type SlackChannel struct {
	channelName string
	slack       slackAPI
}

func NewSlackChannel(cfg *config.Config) *SlackChannel {
	return &SlackChannel{
		channelName: cfg.Slack.ChannelName,

		slack: slack.New(cfg.Slack.Token),
	}
}

func (p *SlackChannel) newMessage(n *types.Notification) slack.Attachment {
	msg := slack.Attachment{}

	switch {
	case n.Kind == types.KindReport:
		msg.Color = "good"
	case n.DryRun:
		msg.Color = "warning"
	default:
		msg.Color = "danger"
	}

	msg.Title = n.Subject
	body := strings.TrimSpace(n.Body)
	if n.Kind == types.KindReport {
		body = "```\n" + body + "\n```"
	}
	if len(body) > maxSlackText {
		body = truncate(body, maxSlackText) + "\n(truncated)"
	}
	msg.Text = body
	msg.Footer = fmt.Sprintf("lambda-storage-guard %s", n.Kind)

	return msg
}

func (p *SlackChannel) PublishMessage(
	ctx context.Context,
	n *types.Notification,
) (string, error) {
	l := logutils.LoggerFromContext(ctx)

	_, msgTS, err := p.slack.PostMessageContext(ctx, p.channelName,
		slack.MsgOptionAttachments(p.newMessage(n)),
	)
	if err != nil {
		l.Error("Error publishing message to slack",
			zap.Error(err),
			zap.String("slack_channel", p.channelName),
			zap.String("slack_message_ts", msgTS),
		)
		return "", err
	}

	return msgTS, nil
}

// truncate cuts s to at most n bytes without splitting a utf-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
