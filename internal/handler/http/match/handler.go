package match

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vibelink-backend/internal/domain"
	"vibelink-backend/internal/service/match"
	"vibelink-backend/pkg/metrics"
	"vibelink-backend/pkg/pagination"
	"vibelink-backend/pkg/response"
)

// Handler handles matchmaking HTTP requests
type Handler struct {
	matchService *match.Service
	metrics      *metrics.Metrics
}

// NewHandler creates a new match handler. metrics may be nil.
func NewHandler(matchService *match.Service, m *metrics.Metrics) *Handler {
	return &Handler{
		matchService: matchService,
		metrics:      m,
	}
}

// currentUserID extracts the authenticated user from the Gin context
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return uuid.Nil, false
	}

	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return uuid.Nil, false
	}

	return userID, true
}

// JoinQueue enters the caller into the pairing queue
// POST /v1/match/queue/join
func (h *Handler) JoinQueue(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	result, err := h.matchService.JoinQueue(c.Request.Context(), userID)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordQueueJoin("rejected")
		}
		response.AppError(c, err)
		return
	}

	if h.metrics != nil {
		if result.Matched {
			h.metrics.RecordQueueJoin("matched")
			h.metrics.IncrementActiveSessions()
		} else {
			h.metrics.RecordQueueJoin("waiting")
		}
	}

	// A fresh waiting entry is the created resource; pairing reports the
	// session it joined
	status := http.StatusOK
	if !result.Matched {
		status = http.StatusCreated
	}
	response.Success(c, status, result)
}

// LeaveQueue removes the caller's waiting entry; safe to repeat
// DELETE /v1/match/queue
func (h *Handler) LeaveQueue(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.matchService.LeaveQueue(c.Request.Context(), userID); err != nil {
		response.AppError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordQueueLeave()
	}

	response.Success(c, http.StatusOK, gin.H{"left": true})
}

// CheckMatch polls for the caller's session
// GET /v1/match/session?session_id=<optional>
func (h *Handler) CheckMatch(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var sessionID *uuid.UUID
	if raw := c.Query("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.ValidationError(c, "Invalid session ID")
			return
		}
		sessionID = &id
	}

	result, err := h.matchService.CheckMatch(c.Request.Context(), userID, sessionID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// UpdateSessionRequest represents a session action request
type UpdateSessionRequest struct {
	Action string `json:"action" binding:"required,oneof=end next toggle_video toggle_audio"`
}

// UpdateSession applies an action to a session the caller participates in
// POST /v1/match/sessions/:id
func (h *Handler) UpdateSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid session ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	action := domain.SessionAction(req.Action)

	result, err := h.matchService.UpdateSession(c.Request.Context(), sessionID, userID, action)
	if err != nil {
		response.AppError(c, err)
		return
	}

	h.recordSessionOutcome(action, result)

	response.Success(c, http.StatusOK, result)
}

func (h *Handler) recordSessionOutcome(action domain.SessionAction, result *match.UpdateResult) {
	if h.metrics == nil {
		return
	}

	switch action {
	case domain.ActionEnd, domain.ActionNext:
		if result.Session.EndedAt != nil {
			h.metrics.DecrementActiveSessions()
			h.metrics.RecordSessionEnded(string(action),
				result.Session.EndedAt.Sub(result.Session.CreatedAt))
		}
		if result.Join != nil {
			if result.Join.Matched {
				h.metrics.RecordQueueJoin("matched")
				h.metrics.IncrementActiveSessions()
			} else {
				h.metrics.RecordQueueJoin("waiting")
			}
		}
	}
}

// ReportRequest represents a user report request
type ReportRequest struct {
	SessionID      string `json:"session_id" binding:"required,uuid"`
	ReportedUserID string `json:"reported_user_id" binding:"required,uuid"`
	Reason         string `json:"reason" binding:"required,oneof=inappropriate harassment spam underage other"`
}

// Report files a complaint about the other party in a session and ends it
// POST /v1/match/reports
func (h *Handler) Report(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		response.ValidationError(c, "Invalid session ID")
		return
	}

	reportedID, err := uuid.Parse(req.ReportedUserID)
	if err != nil {
		response.ValidationError(c, "Invalid reported user ID")
		return
	}

	report, err := h.matchService.ReportUser(c.Request.Context(), userID, reportedID, sessionID, domain.ReportReason(req.Reason))
	if err != nil {
		response.AppError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordReport(string(report.Reason))
		h.metrics.DecrementActiveSessions()
		h.metrics.RecordSessionEnded("report", 0)
	}

	response.Success(c, http.StatusCreated, report)
}

// History lists the caller's sessions, newest first
// GET /v1/match/history?page=<n>&limit=<n>
func (h *Handler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params, err := pagination.ParseParams(c.Query("page"), c.Query("limit"))
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	sessions, err := h.matchService.GetSessionHistory(c.Request.Context(), userID, params.Limit, params.Offset)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, pagination.BuildResponse(params, sessions))
}

// Stats reports waiting pool sizes
// GET /v1/match/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.matchService.QueueStats(c.Request.Context())
	if err != nil {
		response.AppError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SetQueueWaiting(domain.GenderMale, stats.WaitingMale)
		h.metrics.SetQueueWaiting(domain.GenderFemale, stats.WaitingFemale)
	}

	response.Success(c, http.StatusOK, stats)
}

// RegisterRoutes registers match routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	matchGroup := rg.Group("/match")
	{
		matchGroup.POST("/queue/join", h.JoinQueue)
		matchGroup.DELETE("/queue", h.LeaveQueue)
		matchGroup.GET("/session", h.CheckMatch)
		matchGroup.POST("/sessions/:id", h.UpdateSession)
		matchGroup.POST("/reports", h.Report)
		matchGroup.GET("/history", h.History)
		matchGroup.GET("/stats", h.Stats)
	}
}
