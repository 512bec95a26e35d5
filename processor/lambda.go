package processor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/flashbots/lambda-storage-guard/logutils"
	"go.uber.org/zap"
)

// ScheduleDetail is the optional payload of the scheduled event.  It allows
// one rule to request dry runs without redeploying the function.
type ScheduleDetail struct {
	DryRun *bool `json:"dry_run,omitempty"`
}

// Lambda handles scheduled (EventBridge) invocations.  The handler always
// waits for the cleanup: lambda freezes the sandbox as soon as it returns.
func (p *Processor) Lambda(ctx context.Context, event events.CloudWatchEvent) error {
	l := logutils.LoggerFromContext(ctx).With(
		zap.String("event_id", event.ID),
		zap.String("event_source", event.Source),
	)
	defer l.Sync() //nolint:errcheck
	ctx = logutils.ContextWithLogger(ctx, l)

	dryRun := p.cfg.DryRun
	if len(event.Detail) > 0 {
		var d ScheduleDetail
		if err := json.Unmarshal(event.Detail, &d); err != nil {
			l.Warn("Ignoring malformed event detail",
				zap.String("detail", strings.Replace(string(event.Detail), "\n", " ", -1)),
				zap.Error(err),
			)
		} else if d.DryRun != nil {
			dryRun = *d.DryRun
		}
	}

	return p.run(ctx, dryRun, true)
}
