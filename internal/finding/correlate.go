package finding

import "fmt"

const (
	// CombinedService is the service name carried by correlated findings.
	CombinedService = "Combined"
	// CombinedCheck is the check name carried by correlated findings.
	CombinedCheck = "cost_security_combined"
)

// Correlate joins cost findings with security findings on resource id and
// returns one critical combined finding per cost finding whose resource also
// has a security finding. When several security findings share a resource id
// the last one wins. Findings without a resource id never match.
func Correlate(cost, security []Finding) []Finding {
	byResource := make(map[string]Finding, len(security))
	for _, s := range security {
		if s.ResourceID != "" {
			byResource[s.ResourceID] = s
		}
	}

	var combined []Finding
	for _, c := range cost {
		if c.ResourceID == "" {
			continue
		}
		s, ok := byResource[c.ResourceID]
		if !ok {
			continue
		}
		name := c.ResourceName
		if name == "" {
			name = c.ResourceID
		}
		combined = append(combined, Finding{
			AccountID:    c.AccountID,
			Service:      CombinedService,
			Check:        CombinedCheck,
			Type:         TypeCombined,
			Severity:     SeverityCritical,
			ResourceID:   c.ResourceID,
			ResourceName: name,
			Region:       c.Region,
			MonthlyCost:  Amount(costOrZero(c.MonthlyCost)),
			Issue:        "Resource is both costly and has security issues: " + c.ResourceID,
			Details: FieldDetails(map[string]any{
				"cost_issue":       c.Issue,
				"security_issue":   s.Issue,
				"cost_details":     c.Details,
				"security_details": s.Details,
			}),
			Recommendation: fmt.Sprintf("PRIORITY: Address both cost and security issues. %s AND %s",
				c.Recommendation, s.Recommendation),
		})
	}
	return combined
}

func costOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
