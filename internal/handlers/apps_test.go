package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/xwhep-remote/internal/handlers"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
	"github.com/pandeptwidyaop/xwhep-remote/internal/services"
)

func setupAppRouter(t *testing.T, orch handlers.Orchestrator) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := handlers.NewAppHandler(orch, t.TempDir(), nil)
	r := gin.New()
	r.GET("/api/apps", h.List)
	r.POST("/api/apps", h.Register)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, binary []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if binary != nil {
		fw, err := mw.CreateFormFile("binary", "echo")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := fw.Write(binary); err != nil {
			t.Fatalf("failed to write binary: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

func TestAppHandler_List(t *testing.T) {
	orch := &stubOrchestrator{
		apps: []*models.Application{{UID: "app-1", Name: "echo", Type: models.AppTypeDeployable}},
	}
	r := setupAppRouter(t, orch)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/apps", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var apps []models.Application
	if err := json.Unmarshal(w.Body.Bytes(), &apps); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(apps) != 1 || apps[0].Name != "echo" {
		t.Errorf("unexpected apps %+v", apps)
	}
}

func TestAppHandler_ListTransportFailure(t *testing.T) {
	orch := &stubOrchestrator{appsErr: &services.TransportError{Op: "list", Err: os.ErrDeadlineExceeded}}
	r := setupAppRouter(t, orch)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/apps", nil))

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", w.Code)
	}
}

func TestAppHandler_Register(t *testing.T) {
	var staged string
	var content []byte
	orch := &stubOrchestrator{
		register: func(name, osName, cpu, source string) (string, error) {
			if name != "echo" || osName != "LINUX" || cpu != "AMD64" {
				t.Errorf("unexpected register args %s %s %s", name, osName, cpu)
			}
			staged = source
			b, err := os.ReadFile(source)
			if err != nil {
				t.Errorf("staged binary not readable: %v", err)
			}
			content = b
			return "app-1", nil
		},
	}
	r := setupAppRouter(t, orch)

	body, contentType := multipartBody(t, map[string]string{"name": "echo", "os": "LINUX", "cpu": "AMD64"}, []byte("#!/bin/sh\necho hi\n"))
	req := httptest.NewRequest("POST", "/api/apps", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if string(content) != "#!/bin/sh\necho hi\n" {
		t.Errorf("unexpected staged content %q", content)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Errorf("expected staged binary to be removed, stat err = %v", err)
	}
}

func TestAppHandler_RegisterValidation(t *testing.T) {
	orch := &stubOrchestrator{
		register: func(name, osName, cpu, source string) (string, error) {
			return "", &services.InvalidPlatformError{OS: osName, CPU: cpu}
		},
	}
	r := setupAppRouter(t, orch)

	tests := []struct {
		name   string
		fields map[string]string
		binary []byte
		want   int
	}{
		{"missing name", map[string]string{"os": "LINUX", "cpu": "AMD64"}, []byte("x"), http.StatusBadRequest},
		{"missing binary", map[string]string{"name": "echo", "os": "LINUX", "cpu": "AMD64"}, nil, http.StatusBadRequest},
		{"bad platform", map[string]string{"name": "echo", "os": "PLAN9", "cpu": "AMD64"}, []byte("x"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.fields, tt.binary)
			req := httptest.NewRequest("POST", "/api/apps", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}
