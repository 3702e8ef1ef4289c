package finding

import (
	"encoding/json"
	"testing"
)

func TestFromMap_CapitalizedKeyWins(t *testing.T) {
	f := FromMap(map[string]any{
		"Region":         "eu-west-1",
		"region":         "us-east-1",
		"Issue":          "Idle instance",
		"issue":          "ignored",
		"Recommendation": "Stop it",
		"action":         "Terminate",
		"monthly_cost":   "42.5",
		"check":          "idle_instances",
		"type":           "cost",
	})

	if f.Region != "eu-west-1" {
		t.Fatalf("expected eu-west-1, got %s", f.Region)
	}
	if f.Issue != "Idle instance" {
		t.Fatalf("expected capitalized Issue, got %s", f.Issue)
	}
	if f.Recommendation != "Stop it" || f.Action != "Terminate" {
		t.Fatalf("unexpected advice fields: %q %q", f.Recommendation, f.Action)
	}
	if f.MonthlyCost == nil || *f.MonthlyCost != 42.5 {
		t.Fatalf("expected numeric-string cost 42.5, got %v", f.MonthlyCost)
	}
	if f.Type != TypeCost {
		t.Fatalf("expected type cost, got %s", f.Type)
	}
}

func TestFromMap_WrongKindIsAbsent(t *testing.T) {
	f := FromMap(map[string]any{
		"Region":       42,
		"monthly_cost": "not-a-number",
		"severity":     true,
	})
	if f.Region != "" {
		t.Fatalf("expected empty region, got %q", f.Region)
	}
	if f.MonthlyCost != nil {
		t.Fatalf("expected nil cost, got %v", *f.MonthlyCost)
	}
	if f.Severity != "" {
		t.Fatalf("expected empty severity, got %q", f.Severity)
	}
}

func TestFinding_CostFallback(t *testing.T) {
	tests := []struct {
		name string
		f    Finding
		want float64
	}{
		{"cost", Finding{MonthlyCost: Amount(10), MonthlySavings: Amount(20)}, 10},
		{"explicit zero cost", Finding{MonthlyCost: Amount(0), MonthlySavings: Amount(20)}, 0},
		{"savings", Finding{MonthlySavings: Amount(20)}, 20},
		{"none", Finding{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Cost(); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFinding_JSONKeepsDetailsShape(t *testing.T) {
	in := `{"check":"budget_threshold","type":"cost","severity":"high","Issue":"Budget","Details":{"usage_percentage":95.5},"monthly_cost":12}`

	var f Finding
	if err := json.Unmarshal([]byte(in), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	usage, ok := f.Details.Number("usage_percentage")
	if !ok || usage != 95.5 {
		t.Fatalf("expected usage 95.5, got %v (%v)", usage, ok)
	}

	out, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if _, ok := m["Details"].(map[string]any); !ok {
		t.Fatalf("expected Details object, got %T", m["Details"])
	}
	if m["monthly_cost"] != 12.0 {
		t.Fatalf("expected monthly_cost 12, got %v", m["monthly_cost"])
	}
}

func TestDetails_StringAndEmpty(t *testing.T) {
	var d Details
	if err := json.Unmarshal([]byte(`"plain text"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	s, ok := d.Text()
	if !ok || s != "plain text" {
		t.Fatalf("expected text details, got %q (%v)", s, ok)
	}

	data, err := json.Marshal(Details{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "{}" {
		t.Fatalf("expected {}, got %s", data)
	}

	if err := json.Unmarshal([]byte(`[1,2]`), &d); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if !d.IsZero() {
		t.Fatal("expected list details to be dropped")
	}
}
