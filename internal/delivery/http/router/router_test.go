package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/site-auditor/internal/adapter/memory"
	"github.com/user/site-auditor/internal/delivery/http/handler"
	"github.com/user/site-auditor/internal/delivery/http/response"
	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/internal/usecase"
	"github.com/user/site-auditor/pkg/metrics"
	"go.uber.org/zap"
)

type fakeManager struct {
	submitted []entity.SiteTarget
	forced    []bool
	runs      map[string]*entity.AuditRun
	err       error
}

func (f *fakeManager) Submit(_ context.Context, target entity.SiteTarget, force bool) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, target)
	f.forced = append(f.forced, force)
	return "run-1", nil
}

func (f *fakeManager) Status(_ context.Context, id string) (*entity.AuditRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, usecase.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeManager) Run(context.Context) error { return nil }

func newServer(t *testing.T, mgr usecase.AuditManager, events repository.EventReader, checks map[string]handler.HealthCheck) (*httptest.Server, *metrics.Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := handler.NewHandler(mgr, events, checks, zap.NewNop())
	srv := httptest.NewServer(New(h, m, reg, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv, m, reg
}

func TestSubmitAudit(t *testing.T) {
	mgr := &fakeManager{}
	srv, m, _ := newServer(t, mgr, nil, nil)

	body := `{"website":"https://acme.example","facts":{"company_name":" Acme ","phones":["555-0100"]},"auth":{"username":"qa","password":"pw"},"force":true}`
	resp, err := http.Post(srv.URL+"/api/audits", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out response.SubmitAuditResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "run-1", out.RunID)

	require.Len(t, mgr.submitted, 1)
	target := mgr.submitted[0]
	assert.Equal(t, "Acme", target.Facts.CompanyName)
	require.NotNil(t, target.Auth)
	assert.Equal(t, "pw", target.Auth.Password)
	assert.True(t, mgr.forced[0])

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestsTotal))
}

func TestSubmitAuditErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"negative max pages", `{"website":"https://a.example","max_pages":-1}`, nil, http.StatusBadRequest},
		{"invalid target", `{"website":"nope"}`, usecase.ErrInvalidTarget, http.StatusBadRequest},
		{"recent", `{"website":"https://a.example"}`, usecase.ErrSiteRecentlyAudited, http.StatusConflict},
		{"internal", `{"website":"https://a.example"}`, errors.New("redis down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _, _ := newServer(t, &fakeManager{err: tc.err}, nil, nil)
			resp, err := http.Post(srv.URL+"/api/audits", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.code, resp.StatusCode)
		})
	}
}

func TestGetAudit(t *testing.T) {
	finished := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	summary := entity.NewSiteSummary("run-7", "https://acme.example/")
	summary.Totals[entity.StatusFail] = 2
	mgr := &fakeManager{runs: map[string]*entity.AuditRun{
		"run-7": {
			ID:         "run-7",
			Target:     entity.SiteTarget{Website: "https://acme.example", Auth: &entity.BasicAuth{Username: "qa", Password: "pw"}},
			State:      entity.RunCompleted,
			Summary:    summary,
			FinishedAt: &finished,
		},
	}}
	events := memory.NewCollector()
	require.NoError(t, events.Emit(context.Background(), entity.ReportEvent{RunID: "run-7", Check: entity.CheckStatus, Status: entity.StatusFail}))
	srv, m, _ := newServer(t, mgr, events, nil)

	resp, err := http.Get(srv.URL + "/api/audits/run-7")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Equal(t, "completed", raw["state"])
	assert.Equal(t, "https://acme.example", raw["website"])
	assert.NotContains(t, raw, "auth")

	resp, err = http.Get(srv.URL + "/api/audits/run-7/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	var ev response.AuditEventsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ev))
	assert.Len(t, ev.Events, 1)

	resp, err = http.Get(srv.URL + "/api/audits/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Three series: the run, its events and the 404; run IDs never become labels.
	assert.Equal(t, 3, testutil.CollectAndCount(m.HTTPRequestsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/audits/{id}", "404")))
}

func TestHealthAndMetrics(t *testing.T) {
	checks := map[string]handler.HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("refused") },
	}
	srv, _, _ := newServer(t, &fakeManager{}, nil, checks)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var status map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "healthy", status["redis"])
	assert.Equal(t, "unhealthy", status["postgres"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
