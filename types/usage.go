package types

import (
	"errors"
	"fmt"
)

const bytesPerMB = 1024 * 1024

var (
	ErrZeroLimit = errors.New("account code storage limit is zero")
)

// UsageSnapshot is a point-in-time measurement of consumed vs. allotted
// lambda code storage of the account.
type UsageSnapshot struct {
	LimitBytes  int64   `json:"limit_bytes"`
	UsedBytes   int64   `json:"used_bytes"`
	PercentUsed float64 `json:"percent_used"`
}

func NewUsageSnapshot(limitBytes, usedBytes int64) (*UsageSnapshot, error) {
	if limitBytes == 0 {
		return nil, fmt.Errorf("%w: used %d bytes",
			ErrZeroLimit, usedBytes,
		)
	}
	return &UsageSnapshot{
		LimitBytes:  limitBytes,
		UsedBytes:   usedBytes,
		PercentUsed: float64(usedBytes) / float64(limitBytes) * 100,
	}, nil
}

func (s UsageSnapshot) UsedMB() float64 {
	return float64(s.UsedBytes) / bytesPerMB
}

func (s UsageSnapshot) LimitMB() float64 {
	return float64(s.LimitBytes) / bytesPerMB
}

func (s UsageSnapshot) Exceeds(thresholdPercent float64) bool {
	return s.PercentUsed > thresholdPercent
}
