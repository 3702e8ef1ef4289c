package finding

import (
	"strings"
	"testing"
)

func TestCorrelate_JoinsOnResourceID(t *testing.T) {
	cost := []Finding{
		{AccountID: "111", Region: "us-east-1", ResourceID: "i-1", ResourceName: "web", Issue: "Idle", MonthlyCost: Amount(120), Recommendation: "Stop"},
		{ResourceID: "i-2", Issue: "Idle"},
		{ResourceID: "", Issue: "No id"},
	}
	security := []Finding{
		{ResourceID: "i-1", Issue: "Old finding", Recommendation: "ignored"},
		{ResourceID: "i-1", Issue: "Crypto mining", Recommendation: "Isolate"},
		{ResourceID: "", Issue: "Account wide"},
	}

	got := Correlate(cost, security)
	if len(got) != 1 {
		t.Fatalf("expected 1 combined finding, got %d", len(got))
	}
	c := got[0]
	if c.Type != TypeCombined || c.Severity != SeverityCritical || c.Check != CombinedCheck {
		t.Fatalf("unexpected classification: %+v", c)
	}
	if c.Service != CombinedService || c.AccountID != "111" || c.Region != "us-east-1" {
		t.Fatalf("unexpected context: %+v", c)
	}
	if c.Issue != "Resource is both costly and has security issues: i-1" {
		t.Fatalf("unexpected issue %q", c.Issue)
	}
	if c.Cost() != 120 {
		t.Fatalf("expected cost 120, got %v", c.Cost())
	}
	if v, _ := c.Details.Field("security_issue"); v != "Crypto mining" {
		t.Fatalf("expected last security finding to win, got %v", v)
	}
	if !strings.HasSuffix(c.Recommendation, "Stop AND Isolate") {
		t.Fatalf("unexpected recommendation %q", c.Recommendation)
	}
}

func TestCorrelate_Defaults(t *testing.T) {
	got := Correlate(
		[]Finding{{ResourceID: "vol-1"}},
		[]Finding{{ResourceID: "vol-1"}},
	)
	if len(got) != 1 {
		t.Fatalf("expected 1 combined finding, got %d", len(got))
	}
	if got[0].ResourceName != "vol-1" {
		t.Fatalf("expected name fallback to id, got %q", got[0].ResourceName)
	}
	if got[0].MonthlyCost == nil || *got[0].MonthlyCost != 0 {
		t.Fatalf("expected explicit zero cost, got %v", got[0].MonthlyCost)
	}
}

func TestCorrelate_Empty(t *testing.T) {
	if got := Correlate(nil, []Finding{{ResourceID: "x"}}); len(got) != 0 {
		t.Fatalf("expected no findings, got %d", len(got))
	}
}
