package handlers

import (
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

// AppHandler serves the application registry.
type AppHandler struct {
	orch       Orchestrator
	stagingDir string
	log        *zap.SugaredLogger
}

// NewAppHandler creates a new AppHandler instance. Uploaded binaries are
// staged in stagingDir, or the system temp dir when empty.
func NewAppHandler(orch Orchestrator, stagingDir string, log *zap.SugaredLogger) *AppHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AppHandler{orch: orch, stagingDir: stagingDir, log: log.Named("apps")}
}

// List returns the applications known to the service.
// GET /api/apps
func (h *AppHandler) List(c *gin.Context) {
	apps, err := h.orch.Applications(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	if apps == nil {
		apps = []*models.Application{}
	}
	c.JSON(http.StatusOK, apps)
}

// Register uploads a binary and registers it for one platform.
// POST /api/apps (multipart: name, os, cpu, binary)
func (h *AppHandler) Register(c *gin.Context) {
	var req models.RegisterAppRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, _, err := c.Request.FormFile("binary")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "binary file is required"})
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp(h.stagingDir, "upload-*")
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		abortWithError(c, err)
		return
	}
	if err := tmp.Close(); err != nil {
		abortWithError(c, err)
		return
	}
	req.BinaryPath = tmp.Name()

	uid, err := h.orch.Register(c.Request.Context(), req.Name, req.OS, req.CPU, req.BinaryPath)
	if err != nil {
		h.log.Warnw("register failed", "name", req.Name, "os", req.OS, "cpu", req.CPU, "error", err)
		abortWithError(c, err)
		return
	}

	h.log.Infow("application registered", "name", req.Name, "uid", uid, "os", req.OS, "cpu", req.CPU)
	c.JSON(http.StatusCreated, gin.H{"uid": uid, "name": req.Name})
}
