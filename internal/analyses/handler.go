package analyses

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"script-backend/internal/shared/server/respond"
	"script-backend/internal/workflow"
)

// multipart overhead allowed on top of the file limit
const formOverheadBytes = 1 << 20

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scripts", h.submit)
	rg.GET("/analyses", h.list)
	rg.GET("/analyses/:id", h.get)
	rg.POST("/analyses/:id/feedback", h.feedback)
}

func (h *Handler) submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+formOverheadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	forceReview := false
	if v := c.PostForm("forceReview"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "forceReview must be a boolean", nil)
			return
		}
		forceReview = parsed
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	rec, err := h.Svc.Submit(ctx, fileHeader.Filename, fileHeader.Size, file, forceReview)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case rec.ID != "":
			respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "analysis stored but could not be scheduled", gin.H{"analysisId": rec.ID})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit script", nil)
		}
		return
	}

	respond.Accepted(c, pollPath(c, rec.ID), gin.H{
		"analysisId": rec.ID,
		"status":     rec.Status,
	})
}

type feedbackRequest struct {
	Feedback          string `json:"feedback"`
	Approved          bool   `json:"approved"`
	RequestReanalysis bool   `json:"requestReanalysis"`
}

func (h *Handler) feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	rec, err := h.Svc.SubmitFeedback(ctx, c.Param("id"), workflow.Feedback{
		Text:              req.Feedback,
		Approved:          req.Approved,
		RequestReanalysis: req.RequestReanalysis,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), []map[string]string{
				{"field": "feedback", "issue": "invalid"},
			})
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrBusy):
			respond.Error(c, http.StatusConflict, "analysis_busy", err.Error(), nil)
		case errors.Is(err, workflow.ErrNotResumable):
			respond.Error(c, http.StatusConflict, "not_resumable", err.Error(), nil)
		case rec.ID != "":
			respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "feedback stored but could not be scheduled", gin.H{"analysisId": rec.ID})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit feedback", nil)
		}
		return
	}

	respond.Accepted(c, pollPath(c, rec.ID), gin.H{
		"analysisId": rec.ID,
		"status":     rec.Status,
	})
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	resp := gin.H{
		"id":                rec.ID,
		"fileName":          rec.FileName,
		"status":            rec.Status,
		"summary":           rec.Summary,
		"callsUsed":         rec.CallsUsed,
		"processingSeconds": rec.ProcessingSeconds,
		"createdAt":         rec.CreatedAt,
		"updatedAt":         rec.UpdatedAt,
	}
	if rec.State != nil {
		resp["reviewRequired"] = rec.State.ReviewRequired
		resp["reviewReason"] = rec.State.ReviewReason
		resp["revisions"] = rec.State.Revisions
		resp["errors"] = rec.State.Errors
		if rec.State.Analysis != nil {
			resp["result"] = rec.State.Analysis
		}
	}
	if rec.ErrorMessage != nil {
		resp["error"] = gin.H{"code": rec.ErrorCode, "message": *rec.ErrorMessage}
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	records, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(records))
	for _, rec := range records {
		item := gin.H{
			"analysisId": rec.ID,
			"fileName":   rec.FileName,
			"status":     rec.Status,
			"createdAt":  rec.CreatedAt,
		}
		if rec.Summary.TotalScenes > 0 {
			item["totalScenes"] = rec.Summary.TotalScenes
			item["estimatedBudget"] = rec.Summary.EstimatedBudget
			item["budgetCategory"] = rec.Summary.BudgetCategory
		}
		resp = append(resp, item)
	}

	respond.JSON(c, http.StatusOK, resp)
}

// pollPath is the status URL for id under the group the request came in on.
func pollPath(c *gin.Context, id string) string {
	base := strings.TrimSuffix(c.FullPath(), "/scripts")
	base = strings.TrimSuffix(base, "/analyses/:id/feedback")
	return base + "/analyses/" + id
}
