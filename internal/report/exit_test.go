package report

import (
	"testing"

	"github.com/ppiankov/alertspectre/internal/alert"
)

func TestComputeExitCode(t *testing.T) {
	alerts := []alert.Alert{
		{Severity: "critical"},
		{Severity: "high"},
		{Severity: "medium"},
		{Severity: "low"},
	}

	tests := []struct {
		name      string
		alerts    []alert.Alert
		failOn    string
		threshold int
		want      int
	}{
		{"empty failOn returns OK", alerts, "", 1, ExitOK},
		{"low matches all 4", alerts, "low", 1, ExitThresholdExceeded},
		{"low threshold 5 not exceeded", alerts, "low", 5, ExitOK},
		{"high matches 2", alerts, "HIGH", 2, ExitThresholdExceeded},
		{"high threshold 3 not exceeded", alerts, "high", 3, ExitOK},
		{"critical matches 1", alerts, "critical", 1, ExitThresholdExceeded},
		{"zero threshold treated as 1", alerts, "critical", 0, ExitThresholdExceeded},
		{"no alerts always OK", nil, "low", 1, ExitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeExitCode(tt.alerts, tt.failOn, tt.threshold); got != tt.want {
				t.Errorf("ComputeExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateFailOn(t *testing.T) {
	for _, ok := range []string{"", "critical", "High", "info"} {
		if err := ValidateFailOn(ok); err != nil {
			t.Errorf("ValidateFailOn(%q) unexpected error: %v", ok, err)
		}
	}
	if err := ValidateFailOn("urgent"); err == nil {
		t.Error("expected error for unknown severity")
	}
}
