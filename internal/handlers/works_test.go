package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pandeptwidyaop/xwhep-remote/internal/handlers"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
	"github.com/pandeptwidyaop/xwhep-remote/internal/services"
)

func setupWorkRouter(orch handlers.Orchestrator) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := handlers.NewWorkHandler(orch, nil)
	r := gin.New()
	r.POST("/api/works", h.Submit)
	r.GET("/api/works", h.List)
	r.GET("/api/works/:uid", h.Get)
	r.GET("/api/works/:uid/result", h.Result)
	r.GET("/api/works/:uid/watch", h.Watch)
	r.DELETE("/api/works/:uid", h.Delete)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWorkHandler_Submit(t *testing.T) {
	var got models.SubmitRequest
	orch := &stubOrchestrator{
		submit: func(req models.SubmitRequest) (string, error) {
			got = req
			return "work-1", nil
		},
	}
	r := setupWorkRouter(orch)

	w := doJSON(r, "POST", "/api/works", `{"app":"echo","cmdline":"-n hi","tag":"tx1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var response map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response["work_uid"] != "work-1" {
		t.Errorf("expected work_uid work-1, got %q", response["work_uid"])
	}
	if got.App != "echo" || got.Cmdline != "-n hi" || got.Tag != "tx1" {
		t.Errorf("unexpected request passed through: %+v", got)
	}
}

func TestWorkHandler_SubmitMissingApp(t *testing.T) {
	r := setupWorkRouter(&stubOrchestrator{})

	w := doJSON(r, "POST", "/api/works", `{"cmdline":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestWorkHandler_SubmitUnknownApp(t *testing.T) {
	orch := &stubOrchestrator{
		submit: func(req models.SubmitRequest) (string, error) {
			return "", &services.ApplicationNotFoundError{Name: req.App}
		},
	}
	r := setupWorkRouter(orch)

	w := doJSON(r, "POST", "/api/works", `{"app":"nope"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestWorkHandler_SubmitWait(t *testing.T) {
	orch := &stubOrchestrator{
		submitAndWait: func(req models.SubmitRequest) (string, *services.Result, error) {
			return "work-2", &services.Result{WorkUID: "work-2", Path: "/tmp/stdout.txt"}, nil
		},
	}
	r := setupWorkRouter(orch)

	w := doJSON(r, "POST", "/api/works?wait=true", `{"app":"echo"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		WorkUID string           `json:"work_uid"`
		Result  *services.Result `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response.Result == nil || response.Result.Path != "/tmp/stdout.txt" {
		t.Errorf("unexpected result %+v", response.Result)
	}
}

func TestWorkHandler_SubmitWaitFailure(t *testing.T) {
	orch := &stubOrchestrator{
		submitAndWait: func(req models.SubmitRequest) (string, *services.Result, error) {
			return "work-3", nil, &services.WorkExecutionError{UID: "work-3", Status: models.WorkError, Message: "segfault"}
		},
	}
	r := setupWorkRouter(orch)

	w := doJSON(r, "POST", "/api/works", `{"app":"echo","wait":true}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "work-3") {
		t.Errorf("expected work uid in error response, got %s", w.Body.String())
	}
}

func TestWorkHandler_List(t *testing.T) {
	orch := &stubOrchestrator{
		submissions: []models.Submission{{WorkUID: "w1", AppName: "echo", Status: models.WorkPending}},
	}
	r := setupWorkRouter(orch)

	w := doJSON(r, "GET", "/api/works?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if orch.lastLimit != 5 {
		t.Errorf("expected limit 5, got %d", orch.lastLimit)
	}

	var subs []models.Submission
	if err := json.Unmarshal(w.Body.Bytes(), &subs); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(subs) != 1 || subs[0].WorkUID != "w1" {
		t.Errorf("unexpected submissions %+v", subs)
	}

	w = doJSON(r, "GET", "/api/works?limit=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for invalid limit, got %d", w.Code)
	}
}

func TestWorkHandler_ListEmpty(t *testing.T) {
	r := setupWorkRouter(&stubOrchestrator{})

	w := doJSON(r, "GET", "/api/works", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}
}

func TestWorkHandler_Get(t *testing.T) {
	orch := &stubOrchestrator{
		work: func(uid string) (*models.Document, error) {
			if uid != "w1" && uid != "w2" {
				return nil, &services.NotFoundError{Kind: models.KindWork, UID: uid}
			}
			return models.NewWorkDocument(uid, "app-1", ""), nil
		},
		journal: map[string]*models.Submission{
			"w1": {WorkUID: "w1", AppName: "echo", Status: models.WorkPending},
		},
	}
	r := setupWorkRouter(orch)

	w := doJSON(r, "GET", "/api/works/w1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var response struct {
		Work       map[string]string  `json:"work"`
		Submission *models.Submission `json:"submission"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response.Work["appuid"] != "app-1" || response.Work["status"] != "UNAVAILABLE" {
		t.Errorf("unexpected document %v", response.Work)
	}
	if response.Submission == nil || response.Submission.AppName != "echo" {
		t.Errorf("expected journal entry, got %+v", response.Submission)
	}

	// submitted elsewhere: no journal entry
	w = doJSON(r, "GET", "/api/works/w2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"submission":null`) {
		t.Errorf("expected null submission, got %s", w.Body.String())
	}

	w = doJSON(r, "GET", "/api/works/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestWorkHandler_InvalidUID(t *testing.T) {
	r := setupWorkRouter(&stubOrchestrator{})

	for _, req := range []struct{ method, path string }{
		{"GET", "/api/works/bad%20uid"},
		{"GET", "/api/works/w%3B1/result"},
		{"DELETE", "/api/works/a.b"},
	} {
		w := doJSON(r, req.method, req.path, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s %s: expected status 400, got %d", req.method, req.path, w.Code)
		}
	}
}

func TestWorkHandler_ResultNotCompleted(t *testing.T) {
	orch := &stubOrchestrator{
		result: func(uid string) (*services.Result, error) {
			return nil, &services.InvalidStateError{Kind: models.KindWork, UID: uid, Status: "RUNNING"}
		},
	}
	r := setupWorkRouter(orch)

	w := doJSON(r, "GET", "/api/works/w1/result", "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", w.Code)
	}
}

func TestWorkHandler_ResultRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdout.txt")
	if err := os.WriteFile(path, []byte("hello grid\n"), 0644); err != nil {
		t.Fatalf("failed to write result: %v", err)
	}
	orch := &stubOrchestrator{
		result: func(uid string) (*services.Result, error) {
			return &services.Result{WorkUID: uid, Path: path}, nil
		},
	}
	r := setupWorkRouter(orch)

	w := doJSON(r, "GET", "/api/works/w1/result?raw=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "hello grid\n" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestWorkHandler_ResultRawWithoutResult(t *testing.T) {
	orch := &stubOrchestrator{
		result: func(uid string) (*services.Result, error) { return nil, nil },
	}
	r := setupWorkRouter(orch)

	w := doJSON(r, "GET", "/api/works/w1/result?raw=true", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}

	w = doJSON(r, "GET", "/api/works/w1/result", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestWorkHandler_Delete(t *testing.T) {
	var removed string
	orch := &stubOrchestrator{
		remove: func(uid string) error {
			removed = uid
			return nil
		},
	}
	r := setupWorkRouter(orch)

	w := doJSON(r, "DELETE", "/api/works/w1", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
	if removed != "w1" {
		t.Errorf("expected w1 removed, got %q", removed)
	}
}

func TestWorkHandler_Watch(t *testing.T) {
	orch := &stubOrchestrator{
		await: func(ctx context.Context, uid string, observe services.StatusObserver) (*services.Result, error) {
			for _, s := range []models.WorkStatus{models.WorkPending, models.WorkPending, models.WorkRunning, models.WorkCompleted} {
				observe(uid, s)
			}
			return &services.Result{WorkUID: uid, Path: "/results/stdout.txt"}, nil
		},
	}
	srv := httptest.NewServer(setupWorkRouter(orch))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/works/w1/watch"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer ws.Close()

	var events []handlers.WatchEvent
	for {
		var ev handlers.WatchEvent
		if err := ws.ReadJSON(&ev); err != nil {
			break
		}
		events = append(events, ev)
		if ev.Type != "status" {
			break
		}
	}

	var statuses []models.WorkStatus
	for _, ev := range events {
		if ev.Type == "status" {
			statuses = append(statuses, ev.Status)
		}
	}
	want := []models.WorkStatus{models.WorkPending, models.WorkRunning, models.WorkCompleted}
	if len(statuses) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("status %d: expected %s, got %s", i, want[i], statuses[i])
		}
	}

	last := events[len(events)-1]
	if last.Type != "done" || last.Status != models.WorkCompleted {
		t.Errorf("unexpected final event %+v", last)
	}
	if !bytes.Contains(mustJSON(t, last.Result), []byte("/results/stdout.txt")) {
		t.Errorf("expected result in final event, got %+v", last.Result)
	}
}

func TestWorkHandler_WatchError(t *testing.T) {
	orch := &stubOrchestrator{
		await: func(ctx context.Context, uid string, observe services.StatusObserver) (*services.Result, error) {
			observe(uid, models.WorkError)
			return nil, &services.WorkExecutionError{UID: uid, Status: models.WorkError, Message: "killed"}
		},
	}
	srv := httptest.NewServer(setupWorkRouter(orch))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/works/w1/watch"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer ws.Close()

	var ev handlers.WatchEvent
	for ev.Type == "" || ev.Type == "status" {
		ev = handlers.WatchEvent{}
		if err := ws.ReadJSON(&ev); err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
	}
	if ev.Type != "error" || !strings.Contains(ev.Error, "killed") {
		t.Errorf("unexpected final event %+v", ev)
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	return b
}
