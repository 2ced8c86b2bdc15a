package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"testing"
	"time"

	"slipline/internal/config"
	"slipline/internal/db"
	"slipline/internal/domain"
	"slipline/internal/engine"
	"slipline/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("hull-204"))
	e.Now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	ctx, cancel := context.WithCancel(context.Background())
	handler, err := New(ctx, Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			AllowLegacyActorHeader: true,
			Logger:                 log.New(io.Discard, "", 0),
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			cancel()
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, actorID string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set("X-Actor-Id", actorID)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createStakeholder(t *testing.T, srv *testServer, name, email string) domain.Stakeholder {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/stakeholders", map[string]any{
		"full_name": name,
		"email":     email,
	}, "bootstrap")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create stakeholder status %d: %s", res.StatusCode, string(data))
	}
	var s domain.Stakeholder
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal stakeholder: %v", err)
	}
	return s
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}

func TestHealthSkipsAuth(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects", nil, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "unauthorized" {
		t.Fatalf("expected code unauthorized, got %q", code)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	pm := createStakeholder(t, srv, "Astrid Berge", "astrid@yard.example")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name":               "Hull 204",
		"planned_start_date": "2024-03-01",
		"planned_end_date":   "2024-09-30",
	}, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var project domain.Project
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/phases", map[string]any{
		"name": "Block Assembly",
	}, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create phase status %d: %s", res.StatusCode, string(data))
	}
	var phase domain.Phase
	if err := json.Unmarshal(data, &phase); err != nil {
		t.Fatalf("unmarshal phase: %v", err)
	}

	addStage := func(name string) domain.Stage {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/stages", map[string]any{
			"phase_id":           phase.ID,
			"name":               name,
			"planned_start_date": "2024-03-01",
			"planned_end_date":   "2024-03-20",
		}, pm.ID)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("create stage status %d: %s", res.StatusCode, string(data))
		}
		var s domain.Stage
		if err := json.Unmarshal(data, &s); err != nil {
			t.Fatalf("unmarshal stage: %v", err)
		}
		return s
	}
	cutting := addStage("Plate Cutting")
	welding := addStage("Panel Welding")

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/dependencies", map[string]any{
		"predecessor_stage_id": cutting.ID,
		"successor_stage_id":   welding.ID,
	}, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create dependency status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/dependencies", map[string]any{
		"predecessor_stage_id": welding.ID,
		"successor_stage_id":   cutting.ID,
	}, pm.ID)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected cycle conflict, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "cycle_detected" {
		t.Fatalf("expected code cycle_detected, got %q", code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/stages/"+cutting.ID+"/progress", map[string]any{
		"status":            "in_progress",
		"progress_pct":      50,
		"actual_start_date": "2024-03-02",
	}, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("record progress status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+project.ID+"/status", nil, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("project status %d: %s", res.StatusCode, string(data))
	}
	var status struct {
		OverallProgressPct float64 `json:"overall_progress_pct"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.OverallProgressPct != 25 {
		t.Fatalf("expected overall 25, got %v", status.OverallProgressPct)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/stages/"+cutting.ID+"/updates", nil, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list updates status %d: %s", res.StatusCode, string(data))
	}
	var updates []domain.StageStatusUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		t.Fatalf("unmarshal updates: %v", err)
	}
	if len(updates) != 1 || updates[0].NewStatus != "in_progress" {
		t.Fatalf("expected one in_progress update, got %+v", updates)
	}
}

func TestStageRequiresLeadProjectManager(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	pm := createStakeholder(t, srv, "Astrid Berge", "astrid@yard.example")
	welder := createStakeholder(t, srv, "Jonas Weld", "jonas@yard.example")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": "Hull 205",
	}, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var project domain.Project
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/stakeholders", map[string]any{
		"stakeholder_id": welder.ID,
		"role":           "team_member",
	}, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign stakeholder status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/phases", map[string]any{
		"name": "Outfitting",
	}, welder.ID)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "forbidden_role" {
		t.Fatalf("expected code forbidden_role, got %q", code)
	}
}

func TestBaselineFlow(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	pm := createStakeholder(t, srv, "Astrid Berge", "astrid@yard.example")
	approver := createStakeholder(t, srv, "Ingrid Holm", "ingrid@yard.example")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": "Hull 206",
	}, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var project domain.Project
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/stakeholders", map[string]any{
		"stakeholder_id": approver.ID,
		"role":           "baseline_approver",
	}, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign approver status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/change-requests", map[string]any{
		"approver_id": approver.ID,
		"change_type": "initial_baseline",
		"reason":      "plan agreed with the owner",
	}, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit change request status %d: %s", res.StatusCode, string(data))
	}
	var cr domain.ChangeRequest
	if err := json.Unmarshal(data, &cr); err != nil {
		t.Fatalf("unmarshal change request: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/change-requests/"+cr.ID+"/approve", map[string]any{
		"comments": "",
	}, approver.ID)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty review comments, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/change-requests/"+cr.ID+"/approve", map[string]any{
		"comments": "reviewed against the production plan",
	}, approver.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve change request status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/baselines/initial", map[string]any{
		"change_request_id": cr.ID,
	}, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set initial baseline status %d: %s", res.StatusCode, string(data))
	}
	var baseline domain.Baseline
	if err := json.Unmarshal(data, &baseline); err != nil {
		t.Fatalf("unmarshal baseline: %v", err)
	}
	if baseline.VersionNumber != 1 || !baseline.IsActive {
		t.Fatalf("expected active version 1, got %+v", baseline)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/baselines/initial", map[string]any{
		"change_request_id": cr.ID,
	}, pm.ID)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for second initial baseline, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+project.ID+"/audit-trail", nil, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("audit trail status %d: %s", res.StatusCode, string(data))
	}
	var trail []domain.AuditTrailEntry
	if err := json.Unmarshal(data, &trail); err != nil {
		t.Fatalf("unmarshal audit trail: %v", err)
	}
	if len(trail) != 1 || trail[0].SequenceNumber != 1 {
		t.Fatalf("expected a single sequence-1 entry, got %+v", trail)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+project.ID+"/notifications", nil, pm.ID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list notifications status %d: %s", res.StatusCode, string(data))
	}
	var notes []domain.Notification
	if err := json.Unmarshal(data, &notes); err != nil {
		t.Fatalf("unmarshal notifications: %v", err)
	}
	types := map[string]bool{}
	for _, n := range notes {
		types[n.Type] = true
	}
	for _, want := range []string{"change_request_submitted", "change_request_approved", "baseline_set"} {
		if !types[want] {
			t.Fatalf("missing %s notification, got %+v", want, notes)
		}
	}
}
