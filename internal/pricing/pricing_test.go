package pricing

import "testing"

func TestMonthlyEC2Cost(t *testing.T) {
	tests := []struct {
		name         string
		instanceType string
		region       string
		wantNonZero  bool
	}{
		{"t3.large us-east-1", "t3.large", "us-east-1", true},
		{"m5.xlarge eu-west-1", "m5.xlarge", "eu-west-1", true},
		{"unknown type", "x99.mega", "us-east-1", false},
		{"unknown region falls back", "t3.micro", "af-south-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost := MonthlyEC2Cost(tt.instanceType, tt.region)
			if tt.wantNonZero && cost == 0 {
				t.Fatalf("expected non-zero cost for %s in %s", tt.instanceType, tt.region)
			}
			if !tt.wantNonZero && cost != 0 {
				t.Fatalf("expected zero cost for %s in %s, got %f", tt.instanceType, tt.region, cost)
			}
		})
	}
}

func TestMonthlyEC2Cost_Calculation(t *testing.T) {
	cost := MonthlyEC2Cost("t3.large", "us-east-1")
	if cost < 60 || cost > 62 {
		t.Fatalf("expected ~$60.74, got $%.2f", cost)
	}
}

func TestMonthlyEBSCost(t *testing.T) {
	if cost := MonthlyEBSCost("gp3", 100, "us-east-1"); cost != 8.0 {
		t.Fatalf("expected $8.00, got $%.2f", cost)
	}
	if cost := MonthlyEBSCost("unknown", 100, "us-east-1"); cost != 0 {
		t.Fatalf("expected $0, got $%.2f", cost)
	}
}

func TestMonthlySnapshotCost(t *testing.T) {
	if cost := MonthlySnapshotCost(100, "us-east-1"); cost != 5.0 {
		t.Fatalf("expected $5.00, got $%.2f", cost)
	}
}

func TestMonthlyRDSCost_MultiAZ(t *testing.T) {
	single := MonthlyRDSCost("db.t3.medium", "us-east-1", false)
	multi := MonthlyRDSCost("db.t3.medium", "us-east-1", true)
	if single == 0 {
		t.Fatal("expected non-zero RDS cost")
	}
	if multi != single*2 {
		t.Fatalf("expected multi-AZ to be 2x single, got single=%f multi=%f", single, multi)
	}
}

func TestFlatRates(t *testing.T) {
	tests := []struct {
		name string
		cost float64
	}{
		{"eip", MonthlyEIPCost("us-east-1")},
		{"nat", MonthlyNATGatewayCost("eu-west-1")},
		{"alb", MonthlyLoadBalancerCost("application", "us-west-2")},
		{"nlb", MonthlyLoadBalancerCost("network", "af-south-1")},
		{"guardduty", MonthlyGuardDutyEstimate()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cost == 0 {
				t.Fatalf("expected non-zero %s cost", tt.name)
			}
		})
	}
}

func TestNATGatewayDataCostPerGB_Fallback(t *testing.T) {
	if cost := NATGatewayDataCostPerGB("af-south-1"); cost != 0.045 {
		t.Fatalf("expected fallback to us-east-1 ($0.045), got $%f", cost)
	}
}

func TestPricingDataLoaded(t *testing.T) {
	if len(prices) == 0 {
		t.Fatal("expected non-empty pricing table")
	}
}
