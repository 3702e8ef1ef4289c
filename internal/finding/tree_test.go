package finding

import (
	"encoding/json"
	"testing"
)

func TestDecodeTree_PreservesOrderAndShapes(t *testing.T) {
	in := `{
		"123456789012": {
			"rds": {"idle_databases": {"items": [{"resource_id": "db-1", "monthly_cost": 80}]}},
			"ec2": {
				"stopped_instances": [{"resource_id": "i-2"}, "not-an-object"],
				"broken": "nope",
				"no_items": {"count": 3}
			}
		},
		"bad-account": 7
	}`

	tree, err := DecodeTree([]byte(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(tree))
	}
	acc := tree[0]
	if acc.ID != "123456789012" {
		t.Fatalf("unexpected account %s", acc.ID)
	}
	if len(acc.Services) != 2 || acc.Services[0].Name != "rds" || acc.Services[1].Name != "ec2" {
		t.Fatalf("expected services in document order, got %+v", acc.Services)
	}
	ec2 := acc.Services[1]
	if len(ec2.Checks) != 1 || ec2.Checks[0].Name != "stopped_instances" {
		t.Fatalf("expected only the list check to survive, got %+v", ec2.Checks)
	}
	if ec2.Checks[0].Count != 1 {
		t.Fatalf("expected non-object items dropped, got %d", ec2.Checks[0].Count)
	}
	if acc.Services[0].Checks[0].MonthlySavings != 80 {
		t.Fatalf("expected check savings 80, got %v", acc.Services[0].Checks[0].MonthlySavings)
	}
	if len(tree[1].Services) != 0 {
		t.Fatalf("expected non-object account to be empty, got %+v", tree[1].Services)
	}
}

func TestDecodeTree_InvalidJSON(t *testing.T) {
	if _, err := DecodeTree([]byte(`{"a": `)); err == nil {
		t.Fatal("expected error for truncated input")
	}
}

func TestTree_AddWalkAndEncode(t *testing.T) {
	var tree Tree
	tree.Add("111", "ebs", "orphan_volumes", Finding{ResourceID: "vol-1", MonthlyCost: Amount(8)})
	tree.Add("111", "ebs", "orphan_volumes", Finding{ResourceID: "vol-2", MonthlyCost: Amount(4)})
	tree.Add("111", "eip", "unattached_eips", Finding{ResourceID: "eip-1", MonthlySavings: Amount(3.6)})

	issues, savings := tree.Totals()
	if issues != 3 {
		t.Fatalf("expected 3 issues, got %d", issues)
	}
	if savings != 15.6 {
		t.Fatalf("expected savings 15.6, got %v", savings)
	}

	var ids []string
	tree.Walk(func(accountID, service string, f Finding) {
		ids = append(ids, service+"/"+f.ResourceID)
	})
	want := []string{"ebs/vol-1", "ebs/vol-2", "eip/eip-1"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}

	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := DecodeTree(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded[0].Services) != 2 || decoded[0].Services[0].Checks[0].Count != 2 {
		t.Fatalf("unexpected decoded tree: %+v", decoded)
	}
}

func TestTree_FindingsByCheck(t *testing.T) {
	var tree Tree
	tree.Add("111", "cost_explorer", "cost_anomaly", Finding{ResourceID: "a-1"})
	tree.Add("111", "cost_explorer", "budget_threshold", Finding{ResourceID: "b-1"})
	tree.Add("111", "cost_explorer", "cost_anomaly_detection", Finding{ResourceID: "a-2"})
	tree.Add("222", "cost_explorer", "cost_anomaly", Finding{ResourceID: "a-3"})

	got := tree.Findings("cost_anomaly", "cost_anomaly_detection")
	want := []string{"a-1", "a-2", "a-3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d findings, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ResourceID != want[i] {
			t.Fatalf("expected %v in order, got %+v", want, got)
		}
	}

	if none := tree.Findings("guardduty_finding"); none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}
}
