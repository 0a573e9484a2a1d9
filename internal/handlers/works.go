package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
	"github.com/pandeptwidyaop/xwhep-remote/internal/services"
	"github.com/pandeptwidyaop/xwhep-remote/internal/validation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Access is checked by the API token before the upgrade.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WatchEvent is one message of the watch stream.
type WatchEvent struct {
	Type   string            `json:"type"`
	UID    string            `json:"uid"`
	Status models.WorkStatus `json:"status,omitempty"`
	Result interface{}       `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// WorkHandler serves work submission and tracking.
type WorkHandler struct {
	orch Orchestrator
	log  *zap.SugaredLogger
}

// NewWorkHandler creates a new WorkHandler instance.
func NewWorkHandler(orch Orchestrator, log *zap.SugaredLogger) *WorkHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WorkHandler{orch: orch, log: log.Named("works")}
}

// Submit creates and activates a work. With wait=true it also awaits the result.
// POST /api/works
func (h *WorkHandler) Submit(c *gin.Context) {
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if wait, err := strconv.ParseBool(c.Query("wait")); err == nil {
		req.Wait = wait
	}

	if !req.Wait {
		uid, err := h.orch.Submit(c.Request.Context(), req)
		if err != nil {
			h.log.Warnw("submit failed", "app", req.App, "error", err)
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "work_uid": uid})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"work_uid": uid})
		return
	}

	uid, res, err := h.orch.SubmitAndWait(c.Request.Context(), req)
	if err != nil {
		h.log.Warnw("submit and wait failed", "app", req.App, "uid", uid, "error", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "work_uid": uid})
		return
	}
	c.JSON(http.StatusOK, gin.H{"work_uid": uid, "result": res})
}

// List returns the local submission journal, newest first.
// GET /api/works
func (h *WorkHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	subs, err := h.orch.Submissions(limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	c.JSON(http.StatusOK, subs)
}

// Get returns the remote document of a work, with its journal entry when
// the work was submitted here.
// GET /api/works/:uid
func (h *WorkHandler) Get(c *gin.Context) {
	uid, ok := workUID(c)
	if !ok {
		return
	}

	doc, err := h.orch.Work(c.Request.Context(), uid)
	if err != nil {
		abortWithError(c, err)
		return
	}

	sub, err := h.orch.Submission(uid)
	if err != nil {
		sub = nil
		if !errors.Is(err, services.ErrSubmissionNotFound) {
			h.log.Warnw("failed to read journal", "uid", uid, "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"work": doc.Map(), "submission": sub})
}

// Result downloads the result of a completed work. With raw=true the result
// file itself is served.
// GET /api/works/:uid/result
func (h *WorkHandler) Result(c *gin.Context) {
	uid, ok := workUID(c)
	if !ok {
		return
	}
	res, err := h.orch.Result(c.Request.Context(), uid)
	if err != nil {
		abortWithError(c, err)
		return
	}

	raw, _ := strconv.ParseBool(c.Query("raw"))
	if !raw {
		c.JSON(http.StatusOK, gin.H{"work_uid": uid, "result": res})
		return
	}
	if res == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "work has no result"})
		return
	}
	c.FileAttachment(res.Path, filepath.Base(res.Path))
}

// Watch streams the status of a work over a websocket until it finishes.
// GET /api/works/:uid/watch
func (h *WorkHandler) Watch(c *gin.Context) {
	uid, ok := workUID(c)
	if !ok {
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnw("failed to upgrade to websocket", "uid", uid, "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends anything; a read error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var last models.WorkStatus
	observe := func(uid string, status models.WorkStatus) {
		if status == last {
			return
		}
		last = status
		if err := ws.WriteJSON(WatchEvent{Type: "status", UID: uid, Status: status}); err != nil {
			cancel()
		}
	}

	res, err := h.orch.AwaitCompletion(ctx, uid, observe)
	if err != nil && ctx.Err() != nil {
		h.log.Debugw("watch client disconnected", "uid", uid)
		return
	}

	final := WatchEvent{Type: "done", UID: uid, Status: last}
	if err != nil {
		final.Type = "error"
		final.Error = err.Error()
	} else if res != nil {
		final.Result = res
	}
	if err := ws.WriteJSON(final); err != nil {
		h.log.Debugw("failed to write final watch event", "uid", uid, "error", err)
		return
	}
	_ = ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Delete removes a work from the service and the journal.
// DELETE /api/works/:uid
func (h *WorkHandler) Delete(c *gin.Context) {
	uid, ok := workUID(c)
	if !ok {
		return
	}
	if err := h.orch.Remove(c.Request.Context(), uid); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func workUID(c *gin.Context) (string, bool) {
	uid := c.Param("uid")
	if err := validation.ValidateUID(uid); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uid: " + err.Error()})
		return "", false
	}
	return uid, true
}
