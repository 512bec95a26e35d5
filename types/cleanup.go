package types

import "time"

// CleanupResult is what the cleanup command left behind.
type CleanupResult struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Err      error
}

func (r *CleanupResult) Failed() bool {
	return r.Err != nil
}

// Output returns stdout, or stderr when the command wrote nothing to stdout.
func (r *CleanupResult) Output() string {
	if r.Stdout != "" {
		return r.Stdout
	}
	return r.Stderr
}
