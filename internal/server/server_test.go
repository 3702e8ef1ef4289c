package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/alertspectre/internal/aws"
	"github.com/ppiankov/alertspectre/internal/finding"
	handlers "github.com/ppiankov/alertspectre/internal/handlers/alerts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuditor struct {
	mock.Mock
}

func (m *mockAuditor) Audit(ctx context.Context, req handlers.AuditRequest) (*aws.Audit, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aws.Audit), args.Error(1)
}

func (m *mockAuditor) CallerIdentity(ctx context.Context) (aws.Identity, error) {
	args := m.Called(ctx)
	return args.Get(0).(aws.Identity), args.Error(1)
}

func TestWebAPI_Endpoints(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))

	tree := finding.Tree{}
	tree.Add("111111111111", "eip", "unattached_eips", finding.Finding{
		Check: "unattached_eips", Type: finding.TypeCost, Severity: "low",
		ResourceID: "eipalloc-1", MonthlySavings: finding.Amount(3.6),
	})
	auditor := new(mockAuditor)
	auditor.On("Audit", mock.Anything, mock.Anything).Return(&aws.Audit{AccountID: "111111111111", Results: tree}, nil)
	auditor.On("CallerIdentity", mock.Anything).Return(aws.Identity{Account: "111111111111"}, nil)

	api := NewWebAPI(logger, Config{
		Addr: ":0",
		Dependencies: Dependencies{
			Auditor: auditor,
			Options: handlers.Options{Now: func() time.Time { return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC) }},
		},
	})

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"index", http.MethodGet, "/", http.StatusOK},
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"services", http.MethodGet, "/api/services", http.StatusOK},
		{"account id", http.MethodGet, "/api/account-id", http.StatusOK},
		{"audit", http.MethodPost, "/api/audit", http.StatusOK},
		{"costs", http.MethodPost, "/api/costs", http.StatusOK},
		{"cost trends", http.MethodPost, "/api/costs/trends", http.StatusOK},
		{"cost anomalies", http.MethodPost, "/api/costs/anomalies", http.StatusOK},
		{"budgets", http.MethodPost, "/api/budgets", http.StatusOK},
		{"guardduty", http.MethodPost, "/api/guardduty", http.StatusOK},
		{"alerts", http.MethodPost, "/api/alerts", http.StatusOK},
		{"feed", http.MethodPost, "/api/alerts/feed", http.StatusOK},
		{"summary", http.MethodPost, "/api/alerts/summary", http.StatusOK},
		{"configure", http.MethodPost, "/api/alerts/configure", http.StatusOK},
		{"wrong method", http.MethodGet, "/api/audit", http.StatusMethodNotAllowed},
		{"account id wrong method", http.MethodPost, "/api/account-id", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/api/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, bytes.NewReader(nil)))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestWebAPI_AlertsBody(t *testing.T) {
	api := NewWebAPI(zerolog.Nop(), Config{})

	tree := finding.Tree{}
	tree.Add("111111111111", "ebs", "orphan_volumes", finding.Finding{
		Check: "orphan_volumes", Type: finding.TypeCost, Severity: "medium", ResourceID: "vol-1", MonthlyCost: finding.Amount(8),
	})
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{"results": tree}))

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/alerts", &buf))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count  int `json:"count"`
		Alerts []struct {
			AlertType string `json:"alert_type"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "idle_resource", body.Alerts[0].AlertType)
}

func TestWebAPI_StartStopsOnCancel(t *testing.T) {
	api := NewWebAPI(zerolog.Nop(), Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- api.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
