package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YKarmar/JobMail/internal/analyzer"
	"github.com/YKarmar/JobMail/internal/store"
	"github.com/YKarmar/JobMail/internal/types"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type jobList struct {
	Items []types.JobApplication `json:"items"`
	Total int64                  `json:"total"`
}

// ListJobs returns stored applications, newest first.
// GET /jobs?skip=0&limit=50&status=applied&search=acme
func (h *Handler) ListJobs(c *gin.Context) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "skip must be a non-negative integer"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 || limit > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	filter := store.ListFilter{
		Skip:   skip,
		Limit:  limit,
		Search: strings.TrimSpace(c.Query("search")),
	}
	if s := c.Query("status"); s != "" {
		status, ok := analyzer.ParseStatus(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status " + s})
			return
		}
		filter.Status = status
	}

	apps, total, err := h.jobs.List(c.Request.Context(), filter)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if apps == nil {
		apps = []types.JobApplication{}
	}
	c.JSON(http.StatusOK, jobList{Items: apps, Total: total})
}

// GET /jobs/stats
func (h *Handler) JobStats(c *gin.Context) {
	stats, err := h.jobs.Stats(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}
	var total int64
	for _, n := range stats {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "by_status": stats})
}

// GET /jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	app, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		h.jobError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

type createJobRequest struct {
	Company     string       `json:"company" binding:"required"`
	Position    string       `json:"position" binding:"required"`
	Status      types.Status `json:"status"`
	Location    *string      `json:"location"`
	SalaryRange *string      `json:"salary_range"`
	JobURL      *string      `json:"job_url"`
	Source      *string      `json:"source"`
	Notes       *string      `json:"notes"`
	EmailID     *string      `json:"email_id"`
	AppliedDate *time.Time   `json:"applied_date"`
}

// POST /jobs
func (h *Handler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status " + string(req.Status)})
		return
	}

	app := &types.JobApplication{
		Company:     req.Company,
		Position:    req.Position,
		Status:      req.Status,
		Location:    req.Location,
		SalaryRange: req.SalaryRange,
		JobURL:      req.JobURL,
		Source:      req.Source,
		Notes:       req.Notes,
		EmailID:     req.EmailID,
		AppliedDate: req.AppliedDate,
	}
	if err := h.jobs.Create(c.Request.Context(), app); err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// PATCH /jobs/:id
func (h *Handler) UpdateJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var update store.JobUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if update.Status != nil && !update.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status " + string(*update.Status)})
		return
	}

	app, err := h.jobs.Update(c.Request.Context(), id, update)
	if err != nil {
		h.jobError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// DELETE /jobs/:id
func (h *Handler) DeleteJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	if err := h.jobs.Delete(c.Request.Context(), id); err != nil {
		h.jobError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job application deleted"})
}

func jobID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) jobError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job application not found"})
		return
	}
	h.internalError(c, err)
}

func (h *Handler) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
