package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ouredu/request-tracker/internal/api/dto"
	"github.com/ouredu/request-tracker/internal/domain/tracking"
)

// TrackingHandler handles HTTP requests for access tracking and reporting
type TrackingHandler struct {
	service   tracking.Service
	reporting tracking.ReportingService
}

// NewTrackingHandler creates a new TrackingHandler instance
func NewTrackingHandler(service tracking.Service, reporting tracking.ReportingService) *TrackingHandler {
	return &TrackingHandler{service: service, reporting: reporting}
}

func parseRoleID(c *gin.Context) (*uuid.UUID, bool) {
	raw := c.Query("role_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role_id"})
		return nil, false
	}
	return &id, true
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is required"})
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ", want YYYY-MM-DD"})
		return time.Time{}, false
	}
	return t, true
}

// TrackAccess godoc
// @Summary Record a manual access event
// @Description Record an access event that did not come through the HTTP pipeline
// @Tags tracking
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body dto.TrackAccessRequest true "Access event"
// @Success 201 {object} dto.AccessSummaryResponse "Access recorded"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/tracking/events [post]
func (h *TrackingHandler) TrackAccess(c *gin.Context) {
	var req dto.TrackAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roleID := tracking.NoRole
	if req.RoleID != nil {
		roleID = *req.RoleID
	}
	at := time.Time{}
	if req.At != nil {
		at = *req.At
	}

	summary, err := h.service.TrackAccess(c.Request.Context(), req.UserID, roleID, req.RoleName, req.Module, req.Label, at)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": SummaryToResponse(summary)})
}

// TrackModuleAccess godoc
// @Summary Record a manual module visit
// @Description Record a visit to a module/submodule outside the HTTP pipeline
// @Tags tracking
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body dto.TrackModuleAccessRequest true "Module visit"
// @Success 201 {object} dto.AccessDetailResponse "Visit recorded"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/tracking/module-events [post]
func (h *TrackingHandler) TrackModuleAccess(c *gin.Context) {
	var req dto.TrackModuleAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roleID := tracking.NoRole
	if req.RoleID != nil {
		roleID = *req.RoleID
	}
	at := time.Time{}
	if req.At != nil {
		at = *req.At
	}

	detail, err := h.service.TrackModuleAccess(c.Request.Context(), req.UserID, roleID, req.RoleName, req.Module, req.Submodule, req.Label, req.Endpoint, at)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": DetailToResponse(detail)})
}

// GetLastAccess godoc
// @Summary Get a user's most recent access time
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID" format(uuid)
// @Param role_id query string false "Role ID filter" format(uuid)
// @Success 200 {object} map[string]interface{} "Last access time, null when never seen"
// @Failure 400 {object} map[string]string "Invalid user ID"
// @Router /api/tracking/users/{user_id}/last-access [get]
func (h *TrackingHandler) GetLastAccess(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	roleID, ok := parseRoleID(c)
	if !ok {
		return
	}

	last, err := h.reporting.LastAccess(c.Request.Context(), userID, roleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"user_id": userID, "last_access": last}})
}

// GetFirstAccess godoc
// @Summary Get a user's earliest recorded access time
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID" format(uuid)
// @Param role_id query string false "Role ID filter" format(uuid)
// @Success 200 {object} map[string]interface{} "First access time, null when never seen"
// @Router /api/tracking/users/{user_id}/first-access [get]
func (h *TrackingHandler) GetFirstAccess(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	roleID, ok := parseRoleID(c)
	if !ok {
		return
	}

	first, err := h.reporting.FirstAccess(c.Request.Context(), userID, roleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"user_id": userID, "first_access": first}})
}

// GetActivityStatus godoc
// @Summary Check whether a user accessed the system recently
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID" format(uuid)
// @Param threshold_minutes query int false "Recency window in minutes" default(15)
// @Success 200 {object} dto.ActivityStatusResponse
// @Router /api/tracking/users/{user_id}/active [get]
func (h *TrackingHandler) GetActivityStatus(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	roleID, ok := parseRoleID(c)
	if !ok {
		return
	}

	thresholdMinutes := 15
	if raw := c.Query("threshold_minutes"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold_minutes"})
			return
		}
		thresholdMinutes = v
	}

	active, err := h.reporting.IsActive(c.Request.Context(), userID, time.Duration(thresholdMinutes)*time.Minute, roleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	last, err := h.reporting.LastAccess(c.Request.Context(), userID, roleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dto.ActivityStatusResponse{
		UserID:     userID,
		Active:     active,
		LastAccess: last,
	}})
}

// GetTodayActivity godoc
// @Summary Get a user's activity for the current day
// @Description Access counters plus the modules visited today
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID" format(uuid)
// @Param role_id query string false "Role ID filter" format(uuid)
// @Success 200 {object} tracking.TodayActivity
// @Router /api/tracking/users/{user_id}/today [get]
func (h *TrackingHandler) GetTodayActivity(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	roleID, ok := parseRoleID(c)
	if !ok {
		return
	}

	activity, err := h.reporting.TodayActivity(c.Request.Context(), userID, roleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": activity})
}

// GetActivitySummary godoc
// @Summary Get a user's aggregated activity over a date range
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID" format(uuid)
// @Param from query string true "Range start" format(date)
// @Param to query string true "Range end" format(date)
// @Success 200 {object} tracking.ActivitySummary
// @Router /api/tracking/users/{user_id}/summary [get]
func (h *TrackingHandler) GetActivitySummary(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	roleID, ok := parseRoleID(c)
	if !ok {
		return
	}
	from, ok := parseDate(c, "from")
	if !ok {
		return
	}
	to, ok := parseDate(c, "to")
	if !ok {
		return
	}

	summary, err := h.reporting.ActivitySummary(c.Request.Context(), userID, roleID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// GetModulesAccessed godoc
// @Summary List the modules a user has accessed
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID" format(uuid)
// @Param from query string false "Range start" format(date)
// @Param to query string false "Range end" format(date)
// @Success 200 {array} tracking.ModuleUsage
// @Router /api/tracking/users/{user_id}/modules [get]
func (h *TrackingHandler) GetModulesAccessed(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	roleID, ok := parseRoleID(c)
	if !ok {
		return
	}

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from, want YYYY-MM-DD"})
			return
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to, want YYYY-MM-DD"})
			return
		}
		to = &t
	}

	modules, err := h.reporting.ModulesAccessed(c.Request.Context(), userID, roleID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": modules})
}

// GetUserJourney godoc
// @Summary List a user's endpoint visits for one day
// @Description Visits ordered by first-visit time
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID" format(uuid)
// @Param date query string true "Day" format(date)
// @Success 200 {array} dto.AccessDetailResponse
// @Router /api/tracking/users/{user_id}/journey [get]
func (h *TrackingHandler) GetUserJourney(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	roleID, ok := parseRoleID(c)
	if !ok {
		return
	}
	day, ok := parseDate(c, "date")
	if !ok {
		return
	}

	details, err := h.reporting.UserJourney(c.Request.Context(), userID, roleID, day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]dto.AccessDetailResponse, 0, len(details))
	for i := range details {
		out = append(out, DetailToResponse(&details[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// GetModuleUsers godoc
// @Summary List users who accessed a module in a date range
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param module path string true "Module name"
// @Param submodule query string false "Submodule filter"
// @Param from query string true "Range start" format(date)
// @Param to query string true "Range end" format(date)
// @Param limit query int false "Max rows" default(100)
// @Success 200 {array} tracking.ModuleVisitor
// @Router /api/tracking/modules/{module}/users [get]
func (h *TrackingHandler) GetModuleUsers(c *gin.Context) {
	module := c.Param("module")
	roleID, ok := parseRoleID(c)
	if !ok {
		return
	}
	from, ok := parseDate(c, "from")
	if !ok {
		return
	}
	to, ok := parseDate(c, "to")
	if !ok {
		return
	}

	var submodule *string
	if raw := c.Query("submodule"); raw != "" {
		submodule = &raw
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = v
	}

	visitors, err := h.reporting.UsersWhoAccessedModule(c.Request.Context(), module, submodule, roleID, from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": visitors})
}

// RemoveData godoc
// @Summary Delete tracking data for a date range
// @Description Removes summaries and their detail rows for the given range
// @Tags tracking
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param range body dto.CleanupRequest true "Date range"
// @Success 200 {object} dto.CleanupResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /api/tracking/data [delete]
func (h *TrackingHandler) RemoveData(c *gin.Context) {
	var req dto.CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.To.Before(req.From) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must not precede from"})
		return
	}

	summaries, details, err := h.service.RemoveRange(c.Request.Context(), req.From, req.To)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dto.CleanupResponse{
		SummariesDeleted: summaries,
		DetailsDeleted:   details,
	}})
}
