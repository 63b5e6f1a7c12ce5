package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"RegulatoryRadar/internal/domain"
)

type handler struct {
	profiles   Profiles
	compliance Compliance
	trigger    Trigger
	logger     *slog.Logger
	baseCtx    context.Context
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, errorEnvelope{Error: apiError{Message: msg, Code: code}})
}

type profileRequest struct {
	Description string `json:"description"`
}

type profileResponse struct {
	TenantID     string                   `json:"tenant_id"`
	Description  string                   `json:"description"`
	Attributes   domain.ProfileAttributes `json:"attributes"`
	HasEmbedding bool                     `json:"has_embedding"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

func toProfileResponse(p domain.TenantProfile) profileResponse {
	return profileResponse{
		TenantID:     p.TenantID,
		Description:  p.Description,
		Attributes:   p.Attributes,
		HasEmbedding: p.HasEmbedding(),
		UpdatedAt:    p.UpdatedAt,
	}
}

type updateResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	SourceURL   string    `json:"source_url"`
	SourceName  string    `json:"source_name,omitempty"`
	Summary     string    `json:"summary"`
	ImpactLevel string    `json:"impact_level"`
	Category    string    `json:"category"`
	DetectedAt  time.Time `json:"detected_at"`
}

type alertResponse struct {
	ID             uuid.UUID  `json:"id"`
	UpdateID       uuid.UUID  `json:"update_id"`
	Status         string     `json:"status"`
	Overdue        bool       `json:"overdue"`
	ActionRequired string     `json:"action_required"`
	DueDate        time.Time  `json:"due_date"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toAlertResponse(v domain.AlertView) alertResponse {
	return alertResponse{
		ID:             v.ID,
		UpdateID:       v.UpdateID,
		Status:         string(v.EffectiveStatus()),
		Overdue:        v.Overdue,
		ActionRequired: v.ActionRequired,
		DueDate:        v.DueDate,
		CreatedAt:      v.CreatedAt,
		CompletedAt:    v.CompletedAt,
	}
}

type summaryResponse struct {
	RunID           uuid.UUID `json:"run_id"`
	Fetched         int       `json:"fetched"`
	New             int       `json:"new"`
	TenantsScanned  int       `json:"tenants_scanned"`
	TenantsSkipped  int       `json:"tenants_skipped"`
	UpdatesRecorded int       `json:"updates_recorded"`
	AlertsCreated   int       `json:"alerts_created"`
	Discarded       int       `json:"discarded"`
	Marked          int       `json:"marked"`
	FailedSources   []string  `json:"failed_sources,omitempty"`
}

// PUT /api/v1/tenants/:tenantID/profile
func (h *handler) putProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	profile, err := h.profiles.UpdateProfile(c.Request.Context(), c.Param("tenantID"), req.Description)
	switch {
	case errors.Is(err, domain.ErrInvalidDescription):
		respondError(c, http.StatusBadRequest, "invalid_description", err)
		return
	case err != nil:
		h.internal(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(profile))
}

// GET /api/v1/tenants/:tenantID/profile
func (h *handler) getProfile(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Request.Context(), c.Param("tenantID"))
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		respondError(c, http.StatusNotFound, "not_found", err)
		return
	case err != nil:
		h.internal(c, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(profile))
}

// GET /api/v1/tenants/:tenantID/updates?limit=N
func (h *handler) listUpdates(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	updates, err := h.compliance.ListUpdates(c.Request.Context(), c.Param("tenantID"), limit)
	if err != nil {
		h.internal(c, "list updates", err)
		return
	}

	out := make([]updateResponse, 0, len(updates))
	for _, u := range updates {
		out = append(out, updateResponse{
			ID:          u.ID,
			Title:       u.Title,
			SourceURL:   u.SourceURL,
			SourceName:  u.SourceName,
			Summary:     u.Summary,
			ImpactLevel: string(u.ImpactLevel),
			Category:    u.Category,
			DetectedAt:  u.DetectedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"updates": out})
}

// GET /api/v1/tenants/:tenantID/alerts
func (h *handler) listAlerts(c *gin.Context) {
	views, err := h.compliance.ListAlerts(c.Request.Context(), c.Param("tenantID"))
	if err != nil {
		h.internal(c, "list alerts", err)
		return
	}

	out := make([]alertResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toAlertResponse(v))
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out})
}

// POST /api/v1/tenants/:tenantID/alerts/:alertID/complete
func (h *handler) completeAlert(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("alertID"))
	if err != nil {
		respondError(c, http.StatusNotFound, "not_found", domain.ErrNotFound)
		return
	}

	view, err := h.compliance.CompleteAlert(c.Request.Context(), alertID, c.Param("tenantID"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", err)
		return
	case err != nil:
		h.internal(c, "complete alert", err)
		return
	}
	c.JSON(http.StatusOK, toAlertResponse(view))
}

// POST /api/v1/admin/scan?wait=true
func (h *handler) triggerScan(c *gin.Context) {
	if h.trigger == nil {
		respondError(c, http.StatusServiceUnavailable, "scan_disabled", errors.New("scanning is not configured"))
		return
	}

	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		summary, err := h.trigger.RunNow(c.Request.Context())
		switch {
		case errors.Is(err, domain.ErrScanInProgress):
			respondError(c, http.StatusConflict, "scan_in_progress", err)
			return
		case err != nil:
			h.internal(c, "run scan", err)
			return
		}
		c.JSON(http.StatusOK, toSummaryResponse(summary))
		return
	}

	if err := h.trigger.Trigger(h.baseCtx); err != nil {
		if errors.Is(err, domain.ErrScanInProgress) {
			respondError(c, http.StatusConflict, "scan_in_progress", err)
			return
		}
		h.internal(c, "trigger scan", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func toSummaryResponse(s domain.RunSummary) summaryResponse {
	failed := make([]string, 0, len(s.SourceFailures))
	for _, f := range s.SourceFailures {
		failed = append(failed, f.Source)
	}
	return summaryResponse{
		RunID:           s.RunID,
		Fetched:         s.Fetched,
		New:             s.New,
		TenantsScanned:  s.TenantsScanned,
		TenantsSkipped:  s.TenantsSkipped,
		UpdatesRecorded: s.UpdatesRecorded,
		AlertsCreated:   s.AlertsCreated,
		Discarded:       s.Discarded,
		Marked:          s.Marked,
		FailedSources:   failed,
	}
}

func (h *handler) internal(c *gin.Context, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op+" failed", "path", c.FullPath(), "tenant", c.Param("tenantID"), "error", err)
	}
	respondError(c, http.StatusInternalServerError, "internal", errors.New(op+" failed"))
}
