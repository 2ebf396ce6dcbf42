package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YKarmar/JobMail/internal/client"
	"github.com/YKarmar/JobMail/internal/tracker"
)

type syncResponse struct {
	Message string `json:"message"`
	tracker.SyncResult
}

// Sync pulls new job mail into the store.
// GET /gmail/sync
func (h *Handler) Sync(c *gin.Context) {
	ctx := c.Request.Context()

	source, err := h.sources(ctx)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated with Gmail"})
			return
		}
		h.syncFailed(c, err)
		return
	}
	defer closeSource(source)

	res, err := h.tracker.Sync(ctx, source)
	if err != nil {
		h.syncFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, syncResponse{Message: res.Message(), SyncResult: *res})
}

func (h *Handler) syncFailed(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to sync emails: %v", err)})
}

// profiler is implemented by sources that can describe their mailbox.
type profiler interface {
	Profile(ctx context.Context) (string, int64, error)
}

// TestConnection checks that the mailbox can be read. Failures are reported in the body.
// GET /gmail/test
func (h *Handler) TestConnection(c *gin.Context) {
	ctx := c.Request.Context()

	source, err := h.sources(ctx)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "error": err.Error()})
		return
	}
	defer closeSource(source)

	if p, ok := source.(profiler); ok {
		email, total, err := p.Profile(ctx)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"connected": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"connected": true, "email": email, "total_messages": total})
		return
	}

	if _, err := source.ListMessageIDs(ctx, "", 1); err != nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true})
}

// closeSource ends the session held by sources such as IMAP.
func closeSource(source client.MailSource) {
	if c, ok := source.(io.Closer); ok {
		_ = c.Close()
	}
}
