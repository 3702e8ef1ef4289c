package pricing

import (
	_ "embed"
	"encoding/json"
	"log/slog"
)

const (
	hoursPerMonth  = 730
	fallbackKey    = "default"
	fallbackRegion = "us-east-1"
)

//go:embed pricing.json
var pricingData []byte

// table maps resource kind → size/class → region → price.
type table map[string]map[string]map[string]float64

var prices table

func init() {
	if err := json.Unmarshal(pricingData, &prices); err != nil {
		slog.Warn("Failed to parse embedded pricing data", "error", err)
		prices = table{}
	}
}

// rate returns the price for kind/key in region, falling back to us-east-1.
func (t table) rate(kind, key, region string) (float64, bool) {
	regions, ok := t[kind][key]
	if !ok {
		return 0, false
	}
	if p, ok := regions[region]; ok {
		return p, true
	}
	p, ok := regions[fallbackRegion]
	return p, ok
}

// MonthlyEC2Cost returns the on-demand monthly cost of an instance type; 0 when unknown.
func MonthlyEC2Cost(instanceType, region string) float64 {
	hourly, _ := prices.rate("ec2", instanceType, region)
	return hourly * hoursPerMonth
}

// MonthlyEBSCost returns the monthly cost of a volume; prices are per GiB-month.
func MonthlyEBSCost(volumeType string, sizeGiB int, region string) float64 {
	perGiB, _ := prices.rate("ebs", volumeType, region)
	return perGiB * float64(sizeGiB)
}

// MonthlySnapshotCost returns the monthly storage cost of a snapshot.
func MonthlySnapshotCost(sizeGiB int, region string) float64 {
	perGiB, _ := prices.rate("snapshot", fallbackKey, region)
	return perGiB * float64(sizeGiB)
}

// MonthlyRDSCost returns the monthly cost of a DB instance class, doubled for Multi-AZ.
func MonthlyRDSCost(instanceClass, region string, multiAZ bool) float64 {
	hourly, _ := prices.rate("rds", instanceClass, region)
	cost := hourly * hoursPerMonth
	if multiAZ {
		cost *= 2
	}
	return cost
}

// MonthlyEIPCost returns the monthly cost of an idle Elastic IP.
func MonthlyEIPCost(region string) float64 {
	p, _ := prices.rate("eip", fallbackKey, region)
	return p
}

// MonthlyNATGatewayCost returns the hourly charge of a NAT gateway over a month, excluding data.
func MonthlyNATGatewayCost(region string) float64 {
	p, _ := prices.rate("nat_gateway", fallbackKey, region)
	return p
}

// NATGatewayDataCostPerGB returns the per-GB processing charge of a NAT gateway.
func NATGatewayDataCostPerGB(region string) float64 {
	p, _ := prices.rate("nat_gateway_data", fallbackKey, region)
	return p
}

// MonthlyLoadBalancerCost returns the base monthly cost of an ALB or NLB, excluding capacity units.
func MonthlyLoadBalancerCost(lbType, region string) float64 {
	kind := "alb"
	if lbType == "network" {
		kind = "nlb"
	}
	p, _ := prices.rate(kind, fallbackKey, region)
	return p
}

// MonthlyGuardDutyEstimate is the entry-level monthly GuardDuty cost quoted in recommendations.
func MonthlyGuardDutyEstimate() float64 {
	p, _ := prices.rate("guardduty", fallbackKey, fallbackRegion)
	return p
}
