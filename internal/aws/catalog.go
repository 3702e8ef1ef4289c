package aws

import (
	"fmt"
	"sort"
	"strings"
)

// ServiceInfo describes one scannable service and the checks it runs.
type ServiceInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Checks      []string `json:"checks"`
	Global      bool     `json:"global"`
}

var catalog = []ServiceInfo{
	{Name: ServiceCostExplorer, Description: "Cost by service, cost anomalies and budget thresholds", Checks: []string{CheckCostByService, CheckCostAnomaly, CheckAnomalyDetection, CheckBudgetThreshold, CheckBudgetConfiguration, CheckBudgetAccess}, Global: true},
	{Name: ServiceEBS, Description: "Unattached EBS volumes", Checks: []string{CheckOrphanVolumes}},
	{Name: ServiceEC2, Description: "Idle and long-stopped EC2 instances", Checks: []string{CheckIdleInstances, CheckStoppedInstances}},
	{Name: ServiceEIP, Description: "Unassociated Elastic IPs", Checks: []string{CheckUnattachedEIPs}},
	{Name: ServiceGuardDuty, Description: "GuardDuty status and high-severity threat findings", Checks: []string{CheckGuardDutyEnabled, CheckGuardDutyStatus, CheckGuardDutyFinding, CheckGuardDutyAccess}},
	{Name: ServiceLoadBalancers, Description: "Load balancers without targets or traffic", Checks: []string{CheckUnusedLoadBalancers}},
	{Name: ServiceNATGateways, Description: "NAT Gateways with no traffic", Checks: []string{CheckUnusedGateways}},
	{Name: ServiceRDS, Description: "Idle RDS instances", Checks: []string{CheckIdleDatabases}},
	{Name: ServiceSecurityGroups, Description: "Unused security groups and ingress open to the internet", Checks: []string{CheckUnusedGroups, CheckOverlyPermissive}},
	{Name: ServiceSnapshots, Description: "Old EBS snapshots not used by any AMI", Checks: []string{CheckOldSnapshots}},
}

// Catalog returns the scannable services sorted by name.
func Catalog() []ServiceInfo {
	out := make([]ServiceInfo, len(catalog))
	copy(out, catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParseServices validates a service selection. An empty list selects everything.
func ParseServices(names []string) (map[string]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[string]bool, len(catalog))
	for _, s := range catalog {
		known[s.Name] = true
	}
	selected := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if !known[n] {
			return nil, fmt.Errorf("unknown service %q", n)
		}
		selected[n] = true
	}
	return selected, nil
}
