package types

import (
	"fmt"
	"strings"
)

const (
	SubjectAlert       = "Lambda storage alert + Cleanup"
	SubjectAlertDryRun = "Lambda storage DRY RUN alert"

	SubjectReport       = "Lambda Cleanup Report"
	SubjectReportDryRun = "Lambda Dry Run Report"
)

type Kind string

const (
	KindAlert  Kind = "alert"
	KindReport Kind = "report"
)

type Notification struct {
	Kind    Kind
	DryRun  bool
	Subject string
	Body    string
}

func NewAlert(s *UsageSnapshot, dryRun bool) *Notification {
	action := "automatic cleanup"
	subject := SubjectAlert
	if dryRun {
		action = "dry run"
		subject = SubjectAlertDryRun
	}

	body := &strings.Builder{}
	fmt.Fprintf(body, "🚨 Lambda Storage Alert:\n")
	fmt.Fprintf(body, "Used: %.2f MB / %.2f MB\n", s.UsedMB(), s.LimitMB())
	fmt.Fprintf(body, "Usage: %.2f%%\n", s.PercentUsed)
	fmt.Fprintf(body, "Triggering %s.\n", action)

	return &Notification{
		Kind:    KindAlert,
		DryRun:  dryRun,
		Subject: subject,
		Body:    body.String(),
	}
}

func NewReport(r *CleanupResult, dryRun bool) *Notification {
	title := "Lambda Cleanup Completed"
	subject := SubjectReport
	if dryRun {
		title = "Lambda Dry Run Completed"
		subject = SubjectReportDryRun
	}

	return &Notification{
		Kind:    KindReport,
		DryRun:  dryRun,
		Subject: subject,
		Body:    fmt.Sprintf("%s\nOutput:\n%s\n", title, r.Output()),
	}
}
