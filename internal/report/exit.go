package report

import (
	"fmt"
	"strings"

	"github.com/ppiankov/alertspectre/internal/alert"
)

const (
	ExitOK                = 0
	ExitThresholdExceeded = 1
)

// ComputeExitCode returns ExitThresholdExceeded when at least threshold alerts
// are at or above the failOn severity. An empty failOn always returns ExitOK.
func ComputeExitCode(alerts []alert.Alert, failOn string, threshold int) int {
	if failOn == "" {
		return ExitOK
	}
	if threshold < 1 {
		threshold = 1
	}
	minRank := alert.SeverityRank(failOn)
	count := 0
	for _, a := range alerts {
		if alert.SeverityRank(a.Severity) >= minRank {
			count++
		}
	}
	if count >= threshold {
		return ExitThresholdExceeded
	}
	return ExitOK
}

// ValidateFailOn checks a --fail-on value.
func ValidateFailOn(failOn string) error {
	if failOn == "" || alert.SeverityRank(failOn) > 0 {
		return nil
	}
	return fmt.Errorf("invalid --fail-on %q (use critical, high, medium, low or info)", strings.ToLower(failOn))
}
