package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dayline/internal/config"
	"dayline/internal/db"
	"dayline/internal/domain"
	"dayline/internal/engine"
	"dayline/internal/migrate"
	"dayline/internal/schedule"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default("u1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) }
	if err := e.Repo.EnsureUser(context.Background(), domain.User{ID: "u1", Name: "Test User", CreatedAt: "2026-01-05T09:00:00Z"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{
		JWTSecret:              testJWTSecret,
		AllowLegacyActorHeader: true,
	}})
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
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func asU1(h map[string]string) map[string]string {
	if h == nil {
		h = map[string]string{}
	}
	h["X-Actor-Id"] = "u1"
	return h
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
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
	for k, v := range headers {
		req.Header.Set(k, v)
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

type dayViewResponse struct {
	Day    domain.Day     `json:"day"`
	Blocks []domain.Block `json:"blocks"`
}

func TestRebuildScoreRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/days/2026-01-05/rebuild", map[string]any{
		"blocks": []map[string]any{
			{"name": "Morning focus", "start_time": "09:00", "end_time": "10:30", "type": "deep-work",
				"tasks": []map[string]any{{"local_key": "t1", "name": "Design doc", "priority": "High"}}},
			{"name": "Email", "start_time": "11:00", "end_time": "11:30", "type": "admin"},
		},
	}, asU1(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("rebuild status %d: %s", res.StatusCode, string(data))
	}
	var view dayViewResponse
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("unmarshal day view: %v", err)
	}
	if len(view.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(view.Blocks))
	}
	for i, b := range view.Blocks {
		if b.Index != i {
			t.Fatalf("block %d has index %d", i, b.Index)
		}
	}
	focus := view.Blocks[0]
	if len(focus.Tasks) != 1 || focus.Tasks[0].Name != "Design doc" {
		t.Fatalf("focus block tasks: %+v", focus.Tasks)
	}

	statusRes, statusBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/blocks/"+focus.ID+"/status", map[string]any{
		"status": "complete",
	}, asU1(nil))
	if statusRes.StatusCode != http.StatusOK {
		t.Fatalf("block status %d: %s", statusRes.StatusCode, string(statusBody))
	}

	scoreRes, scoreBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/days/2026-01-05/score", nil, asU1(nil))
	if scoreRes.StatusCode != http.StatusOK {
		t.Fatalf("score status %d: %s", scoreRes.StatusCode, string(scoreBody))
	}
	var rating domain.PerformanceRating
	if err := json.Unmarshal(scoreBody, &rating); err != nil {
		t.Fatalf("unmarshal rating: %v", err)
	}
	if rating.Points == 0 {
		t.Fatalf("expected points for a completed block, got %+v", rating)
	}
}

func TestValidateReportsConflicts(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/days/2026-01-06/rebuild", map[string]any{
		"blocks": []map[string]any{
			{"name": "A", "start_time": "09:00", "end_time": "10:00"},
			{"name": "B", "start_time": "09:30", "end_time": "10:30"},
		},
	}, asU1(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("rebuild status %d: %s", res.StatusCode, string(data))
	}

	valRes, valBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/days/2026-01-06/validate", nil, asU1(nil))
	if valRes.StatusCode != http.StatusOK {
		t.Fatalf("validate status %d: %s", valRes.StatusCode, string(valBody))
	}
	var report schedule.Report
	if err := json.Unmarshal(valBody, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Valid || len(report.Conflicts) != 1 {
		t.Fatalf("expected one overlap conflict, got %+v", report)
	}
}

func TestRegenerateMoveInstruction(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/days/2026-01-07/rebuild", map[string]any{
		"blocks": []map[string]any{
			{"name": "A", "start_time": "09:00", "end_time": "10:00"},
			{"name": "B", "start_time": "10:00", "end_time": "11:00"},
		},
	}, asU1(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("rebuild status %d: %s", res.StatusCode, string(data))
	}
	var view dayViewResponse
	_ = json.Unmarshal(data, &view)
	target := view.Blocks[0].ID

	regRes, regBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/days/2026-01-07/regenerate", map[string]any{
		"instruction": "move " + target + " to 09:30",
	}, asU1(nil))
	if regRes.StatusCode != http.StatusOK {
		t.Fatalf("regenerate status %d: %s", regRes.StatusCode, string(regBody))
	}
	var result engine.RegenerateResult
	if err := json.Unmarshal(regBody, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Audit.Modified) != 2 {
		t.Fatalf("audit.modified = %v, want both blocks", result.Audit.Modified)
	}

	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/days/2026-01-07", nil, asU1(nil))
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get day status %d: %s", getRes.StatusCode, string(getBody))
	}
	_ = json.Unmarshal(getBody, &view)
	if view.Blocks[0].StartTime != "09:30" || view.Blocks[1].StartTime != "10:30" {
		t.Fatalf("shift not applied: %s %s", view.Blocks[0].StartTime, view.Blocks[1].StartTime)
	}
}

func TestRegenerateUnknownInstruction(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/days/2026-01-08/regenerate", map[string]any{
		"instruction": "reticulate splines",
	}, asU1(nil))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown instruction, got %d: %s", res.StatusCode, string(body))
	}
}

func TestInsertBlockReportsShifted(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/days/2026-01-09/rebuild", map[string]any{
		"blocks": []map[string]any{
			{"name": "A", "start_time": "08:00", "end_time": "09:00"},
			{"name": "B", "start_time": "10:00", "end_time": "11:00"},
		},
	}, asU1(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("rebuild status %d: %s", res.StatusCode, string(data))
	}

	insRes, insBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/days/2026-01-09/blocks", map[string]any{
		"name": "Wedge", "start_time": "09:00", "end_time": "09:30",
	}, asU1(nil))
	if insRes.StatusCode != http.StatusOK {
		t.Fatalf("insert status %d: %s", insRes.StatusCode, string(insBody))
	}
	var inserted struct {
		Block   domain.Block `json:"block"`
		Shifted []string     `json:"shifted"`
	}
	if err := json.Unmarshal(insBody, &inserted); err != nil {
		t.Fatalf("unmarshal inserted: %v", err)
	}
	if inserted.Block.Index != 1 {
		t.Fatalf("inserted index %d, want 1", inserted.Block.Index)
	}
	if len(inserted.Shifted) != 1 {
		t.Fatalf("shifted = %v, want one sibling", inserted.Shifted)
	}
}

func TestTaskBacklogFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"name": "Read RFC", "priority": "Low",
	}, asU1(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Task
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if created.BlockID != nil {
		t.Fatalf("backlog task has a block: %+v", created)
	}

	listRes, listBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks?backlog=true", nil, asU1(nil))
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", listRes.StatusCode, string(listBody))
	}
	var tasks []domain.Task
	if err := json.Unmarshal(listBody, &tasks); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Fatalf("backlog = %+v", tasks)
	}

	delRes, delBody := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/tasks/"+created.ID, nil, asU1(nil))
	if delRes.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", delRes.StatusCode, string(delBody))
	}
}

func TestRoutineCreateAndStamp(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/routines", map[string]any{
		"name":       "Morning review",
		"start_time": "08:30",
		"end_time":   "09:00",
		"days":       []string{"monday"},
		"tasks":      []map[string]any{{"name": "Inbox zero", "duration": 15}},
	}, asU1(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create routine status %d: %s", res.StatusCode, string(data))
	}

	// 2026-01-05 is a Monday.
	stampRes, stampBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/routines/stamp/2026-01-05", nil, asU1(nil))
	if stampRes.StatusCode != http.StatusOK {
		t.Fatalf("stamp status %d: %s", stampRes.StatusCode, string(stampBody))
	}
	var stamped map[string]int
	if err := json.Unmarshal(stampBody, &stamped); err != nil {
		t.Fatalf("unmarshal stamp: %v", err)
	}
	if stamped["stamped"] != 1 {
		t.Fatalf("stamped = %d, want 1", stamped["stamped"])
	}

	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/days/2026-01-05", nil, asU1(nil))
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get day status %d: %s", getRes.StatusCode, string(getBody))
	}
	var view dayViewResponse
	_ = json.Unmarshal(getBody, &view)
	if len(view.Blocks) != 1 || view.Blocks[0].Type != domain.TypeRoutine {
		t.Fatalf("day blocks = %+v", view.Blocks)
	}
	if len(view.Blocks[0].Tasks) != 1 || !view.Blocks[0].Tasks[0].IsRoutineTask {
		t.Fatalf("routine tasks = %+v", view.Blocks[0].Tasks)
	}
}

func TestOpenAPIListsAllCreateOperations(t *testing.T) {
	// Every registered operation must survive schema generation; a
	// colliding input type name would have made New panic long before.
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	for _, opID := range []string{"task-create", "calendar-event-create", "routine-create", "day-validate-proposal"} {
		if !bytes.Contains(body, []byte(opID)) {
			t.Fatalf("openapi spec missing operation %s", opID)
		}
	}
}

func TestValidateProposalWithoutPersisting(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/days/2026-01-10/validate", map[string]any{
		"blocks": []map[string]any{
			{"name": "A", "start_time": "09:00", "end_time": "10:00"},
			{"name": "B", "start_time": "09:30", "end_time": "10:30"},
		},
	}, asU1(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("validate proposal status %d: %s", res.StatusCode, string(body))
	}
	var report schedule.Report
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Valid || len(report.Conflicts) != 1 {
		t.Fatalf("expected one overlap conflict, got %+v", report)
	}

	// The day itself was never rebuilt: it comes back empty.
	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/days/2026-01-10", nil, asU1(nil))
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get day status %d: %s", getRes.StatusCode, string(getBody))
	}
	var view dayViewResponse
	_ = json.Unmarshal(getBody, &view)
	if len(view.Blocks) != 0 {
		t.Fatalf("proposal validation persisted blocks: %+v", view.Blocks)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/days/2026-01-05", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	healthRes, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if healthRes.StatusCode != http.StatusOK {
		t.Fatalf("health should not require auth, got %d", healthRes.StatusCode)
	}
}

func TestJWTBearerAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/days/2026-01-05", nil, map[string]string{
		"Authorization": "Bearer " + signed,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bearer auth status %d: %s", res.StatusCode, string(body))
	}

	badRes, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/days/2026-01-05", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if badRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", badRes.StatusCode)
	}
}
