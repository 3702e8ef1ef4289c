package finding

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Type is the coarse category a check assigns to a finding.
type Type string

const (
	TypeSecurity       Type = "security"
	TypeCost           Type = "cost"
	TypeInfo           Type = "info"
	TypeRecommendation Type = "recommendation"
	TypeCombined       Type = "combined"
)

// Severity values used by checks. Free-form strings are accepted on input.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// RegionGlobal marks account or partition wide findings.
const RegionGlobal = "global"

// Finding is one detected issue produced by a check.
// Optional amounts are pointers so that an explicit zero is distinguishable from absence.
type Finding struct {
	AccountID      string
	Service        string
	Check          string
	Type           Type
	Severity       string
	ResourceID     string
	ResourceName   string
	Region         string
	MonthlyCost    *float64
	MonthlySavings *float64
	Issue          string
	Details        Details
	Recommendation string
	Action         string
	Tags           []Tag
}

// Amount returns a pointer to v, for populating MonthlyCost and MonthlySavings.
func Amount(v float64) *float64 {
	return &v
}

// Cost returns MonthlyCost, falling back to MonthlySavings, then 0.
func (f Finding) Cost() float64 {
	if f.MonthlyCost != nil {
		return *f.MonthlyCost
	}
	if f.MonthlySavings != nil {
		return *f.MonthlySavings
	}
	return 0
}

// Advice returns Recommendation, falling back to Action.
func (f Finding) Advice() string {
	if f.Recommendation != "" {
		return f.Recommendation
	}
	return f.Action
}

// FromMap canonicalizes a loosely keyed record. The capitalized spelling of a key
// wins over the lowercase one; values of the wrong kind are treated as absent.
func FromMap(m map[string]any) Finding {
	f := Finding{
		AccountID:      str(m, "AccountId", "account_id"),
		Service:        str(m, "Service", "service"),
		Check:          str(m, "check", "Check"),
		Type:           Type(str(m, "type", "Type")),
		Severity:       str(m, "severity", "Severity"),
		ResourceID:     str(m, "resource_id", "ResourceId"),
		ResourceName:   str(m, "resource_name", "ResourceName"),
		Region:         str(m, "Region", "region"),
		MonthlyCost:    num(m, "monthly_cost"),
		MonthlySavings: num(m, "monthly_savings"),
		Issue:          str(m, "Issue", "issue"),
		Recommendation: str(m, "Recommendation", "recommendation"),
		Action:         str(m, "Action", "action"),
	}
	if v, ok := lookup(m, "Details", "details"); ok {
		f.Details = detailsFrom(v)
	}
	if v, ok := lookup(m, "Tags", "tags", "TagList"); ok {
		f.Tags = NormalizeTags(v)
	}
	return f
}

// Map renders the finding back into its loosely keyed form.
func (f Finding) Map() map[string]any {
	m := map[string]any{
		"check":    f.Check,
		"type":     string(f.Type),
		"severity": f.Severity,
		"Issue":    f.Issue,
		"Details":  f.Details,
	}
	setStr(m, "AccountId", f.AccountID)
	setStr(m, "service", f.Service)
	setStr(m, "resource_id", f.ResourceID)
	setStr(m, "resource_name", f.ResourceName)
	setStr(m, "region", f.Region)
	setStr(m, "Recommendation", f.Recommendation)
	setStr(m, "Action", f.Action)
	if f.MonthlyCost != nil {
		m["monthly_cost"] = *f.MonthlyCost
	}
	if f.MonthlySavings != nil {
		m["monthly_savings"] = *f.MonthlySavings
	}
	if len(f.Tags) > 0 {
		m["Tags"] = f.Tags
	}
	return m
}

// MarshalJSON encodes the finding with the key spellings checks emit.
func (f Finding) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Map())
}

// UnmarshalJSON accepts any JSON object and canonicalizes it via FromMap.
func (f *Finding) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*f = FromMap(m)
	return nil
}

func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}

func num(m map[string]any, key string) *float64 {
	v, ok := toFloat(m[key])
	if !ok {
		return nil
	}
	return &v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func setStr(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
