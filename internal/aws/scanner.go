package aws

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/ppiankov/alertspectre/internal/finding"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRegionConcurrency = 4
	scannersPerRegion        = 10
	// globalRegion hosts the Cost Explorer and Budgets endpoints.
	globalRegion = "us-east-1"
)

// Audit is the outcome of scanning one account.
type Audit struct {
	AccountID        string       `json:"account_id"`
	ScanTimestamp    time.Time    `json:"scan_timestamp"`
	Results          finding.Tree `json:"results"`
	Errors           []string     `json:"errors"`
	ResourcesScanned int          `json:"resources_scanned"`
	RegionsScanned   int          `json:"regions_scanned"`
}

// AccountScanner runs every service scanner across the configured regions,
// correlates cost and security findings, and assembles the findings tree.
type AccountScanner struct {
	regions     []string
	concurrency int
	scanConfig  ScanConfig
	services    map[string]bool
	progressFn  func(ScanProgress)

	configFor      func(region string) awssdk.Config
	resolveAccount func(ctx context.Context) (string, error)
	regional       func(cfg awssdk.Config, region string) []ResourceScanner
	global         func(cfg awssdk.Config) []ResourceScanner
	now            func() time.Time
}

// NewAccountScanner creates a scanner for the account behind client.
func NewAccountScanner(client *Client, regions []string, concurrency int, scanCfg ScanConfig) *AccountScanner {
	if concurrency <= 0 {
		concurrency = defaultRegionConcurrency
	}
	return &AccountScanner{
		regions:        regions,
		concurrency:    concurrency,
		scanConfig:     scanCfg.WithDefaults(),
		configFor:      client.ConfigForRegion,
		resolveAccount: client.AccountID,
		regional:       regionalScanners,
		global:         globalScanners,
		now:            time.Now,
	}
}

// SetProgressFn sets a callback invoked as each scanner starts.
func (s *AccountScanner) SetProgressFn(fn func(ScanProgress)) {
	s.progressFn = fn
}

// SetServices restricts scanning to the given services; nil scans all of them.
func (s *AccountScanner) SetServices(services map[string]bool) {
	s.services = services
}

// Scan runs the audit. Scanner failures are recorded in Audit.Errors; only a
// failure to resolve the account id aborts the scan.
func (s *AccountScanner) Scan(ctx context.Context) (*Audit, error) {
	cfg := s.scanConfig
	if cfg.AccountID == "" {
		account, err := s.resolveAccount(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve account: %w", err)
		}
		cfg.AccountID = account
	}

	audit := &Audit{
		AccountID:      cfg.AccountID,
		ScanTimestamp:  s.now().UTC(),
		Errors:         []string{},
		RegionsScanned: len(s.regions),
	}

	var (
		mu       sync.Mutex
		findings []finding.Finding
	)
	collect := func(sr *ScanResult) {
		mu.Lock()
		defer mu.Unlock()
		findings = append(findings, sr.Findings...)
		audit.ResourcesScanned += sr.ResourcesScanned
		audit.Errors = append(audit.Errors, sr.Errors...)
	}
	fail := func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		audit.Errors = append(audit.Errors, msg)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, region := range s.regions {
		region := region
		g.Go(func() error {
			slog.Info("Scanning region", "region", region)
			s.runScanners(gctx, cfg, region, s.selected(s.regional(s.configFor(region), region)), collect, fail)
			return nil
		})
	}
	g.Go(func() error {
		s.runScanners(gctx, cfg, finding.RegionGlobal, s.selected(s.global(s.configFor(globalRegion))), collect, fail)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	audit.Results = buildTree(cfg.AccountID, findings)
	sort.Strings(audit.Errors)
	return audit, nil
}

func (s *AccountScanner) runScanners(ctx context.Context, cfg ScanConfig, region string, scanners []ResourceScanner,
	collect func(*ScanResult), fail func(string)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scannersPerRegion)

	for _, scanner := range scanners {
		scanner := scanner
		g.Go(func() error {
			s.progress(region, scanner.Service())
			slog.Debug("Running scanner", "service", scanner.Service(), "region", region)
			sr, err := scanner.Scan(gctx, cfg)
			if err != nil {
				slog.Warn("Scanner failed", "service", scanner.Service(), "region", region, "error", err)
				fail(fmt.Sprintf("%s/%s: %v", region, scanner.Service(), err))
				return nil
			}
			for i, e := range sr.Errors {
				sr.Errors[i] = fmt.Sprintf("%s/%s: %s", region, scanner.Service(), e)
			}
			collect(sr)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *AccountScanner) selected(scanners []ResourceScanner) []ResourceScanner {
	if len(s.services) == 0 {
		return scanners
	}
	out := scanners[:0]
	for _, sc := range scanners {
		if s.services[sc.Service()] {
			out = append(out, sc)
		}
	}
	return out
}

func (s *AccountScanner) progress(region, service string) {
	if s.progressFn == nil {
		return
	}
	s.progressFn(ScanProgress{
		Region:    region,
		Scanner:   service,
		Message:   "scanning " + service,
		Timestamp: s.now(),
	})
}

// buildTree correlates findings and orders them into a findings tree: services
// and checks by name, findings by region then resource id.
func buildTree(accountID string, findings []finding.Finding) finding.Tree {
	var cost, security []finding.Finding
	for i := range findings {
		if findings[i].AccountID == "" {
			findings[i].AccountID = accountID
		}
		switch findings[i].Type {
		case finding.TypeCost:
			cost = append(cost, findings[i])
		case finding.TypeSecurity:
			security = append(security, findings[i])
		}
	}

	type entry struct {
		service string
		f       finding.Finding
	}
	entries := make([]entry, 0, len(findings))
	for _, f := range findings {
		entries = append(entries, entry{service: f.Service, f: f})
	}
	for _, f := range finding.Correlate(cost, security) {
		entries = append(entries, entry{service: ServiceCombined, f: f})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.service != b.service {
			return a.service < b.service
		}
		if a.f.Check != b.f.Check {
			return a.f.Check < b.f.Check
		}
		if a.f.Region != b.f.Region {
			return a.f.Region < b.f.Region
		}
		return a.f.ResourceID < b.f.ResourceID
	})

	if len(entries) == 0 {
		return finding.Tree{{ID: accountID}}
	}
	tree := finding.Tree{}
	for _, e := range entries {
		tree.Add(accountID, e.service, e.f.Check, e.f)
	}
	return tree
}

func regionalScanners(cfg awssdk.Config, region string) []ResourceScanner {
	ec2Client := ec2.NewFromConfig(cfg)
	metrics := NewMetricsFetcher(cloudwatch.NewFromConfig(cfg))
	elbClient := elasticloadbalancingv2.NewFromConfig(cfg)
	rdsClient := rds.NewFromConfig(cfg)

	return []ResourceScanner{
		NewEC2Scanner(ec2Client, metrics, region),
		NewEBSScanner(ec2Client, region),
		NewEIPScanner(ec2Client, region),
		NewSnapshotScanner(ec2Client, region),
		NewSecurityGroupScanner(ec2Client, region),
		NewELBScanner(elbClient, metrics, region),
		NewNATGatewayScanner(ec2Client, metrics, region),
		NewRDSScanner(rdsClient, metrics, region),
		NewGuardDutyScanner(guardduty.NewFromConfig(cfg), region),
	}
}

func globalScanners(cfg awssdk.Config) []ResourceScanner {
	return []ResourceScanner{
		NewCostExplorerScanner(costexplorer.NewFromConfig(cfg)),
		NewBudgetScanner(budgets.NewFromConfig(cfg)),
	}
}
