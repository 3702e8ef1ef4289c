package alert

import "sort"

// Rank sorts alerts in place by severity rank then monthly cost, both
// descending. Ties keep their input order.
func Rank(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := SeverityRank(alerts[i].Severity), SeverityRank(alerts[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return alerts[i].MonthlyCost > alerts[j].MonthlyCost
	})
}

// Top returns at most the first n alerts.
func Top(alerts []Alert, n int) []Alert {
	if n < 0 {
		n = 0
	}
	if len(alerts) <= n {
		return alerts
	}
	return alerts[:n]
}
