package session

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fitcoach/internal/auth"
	"fitcoach/internal/ledger"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// BookRecurring godoc
// @Summary      Book recurring sessions
// @Description  Books a batch of follow-up sessions against one of the client's packages.
// @Tags         sessions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      RecurringBookingRequest  true  "Package and slots"
// @Success      201      {object}  RecurringBookingResponse
// @Failure      400      {object}  gin.H
// @Failure      404      {object}  gin.H
// @Failure      409      {object}  gin.H
// @Failure      500      {object}  gin.H
// @Router       /sessions/recurring [post]
func (h *Handler) BookRecurring(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req RecurringBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	resp, err := h.service.BookRecurring(c.Request.Context(), userID, req)
	if err != nil {
		var capErr *CapacityError
		switch {
		case errors.As(err, &capErr):
			c.JSON(http.StatusConflict, gin.H{
				"error":     capErr.Error(),
				"requested": capErr.Requested,
				"remaining": capErr.Remaining,
			})
		case errors.Is(err, ErrInvalidSlot), errors.Is(err, ErrSlotInPast):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ledger.ErrPackageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Package not found"})
		case errors.Is(err, ledger.ErrPackageNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "Package is not active"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to book sessions"})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListMySessions godoc
// @Summary      List my sessions
// @Description  Returns all sessions of the authenticated client, newest first.
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Session
// @Failure      500  {object}  gin.H
// @Router       /sessions [get]
func (h *Handler) ListMySessions(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessions, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sessions"})
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// CancelSession godoc
// @Summary      Cancel session
// @Description  Cancels one of the client's own sessions and credits the package.
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Session ID"
// @Success      200        {object}  gin.H
// @Failure      400        {object}  gin.H
// @Failure      403        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Failure      500        {object}  gin.H
// @Router       /sessions/{sessionID}/cancel [post]
func (h *Handler) CancelSession(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID, err := strconv.Atoi(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}

	if err := h.service.CancelOwn(c.Request.Context(), userID, sessionID); err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "Can only cancel your own sessions"})
		case errors.Is(err, ErrSessionNotFoundOrAlreadyCancelled):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Session already cancelled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel session"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session cancelled successfully"})
}

// ListClientSessions godoc
// @Summary      List a client's sessions
// @Description  Returns all sessions of one client, newest first. Coach only.
// @Tags         coach
// @Security     BearerAuth
// @Produce      json
// @Param        clientID  path      int  true  "Client ID"
// @Success      200       {array}   Session
// @Failure      400       {object}  gin.H
// @Failure      500       {object}  gin.H
// @Router       /coach/clients/{clientID}/sessions [get]
func (h *Handler) ListClientSessions(c *gin.Context) {
	clientID, err := strconv.Atoi(c.Param("clientID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	sessions, err := h.service.ListByUser(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sessions"})
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// GetSessionStats godoc
// @Summary      Session analytics
// @Description  Session counts per day and per type over a date range. Admin only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        from  query     string  false  "Start date (YYYY-MM-DD)"
// @Param        to    query     string  false  "End date (YYYY-MM-DD)"
// @Success      200   {object}  gin.H
// @Failure      400   {object}  gin.H
// @Failure      500   {object}  gin.H
// @Router       /admin/sessions/stats [get]
func (h *Handler) GetSessionStats(c *gin.Context) {
	to := time.Now()
	from := to.AddDate(0, -1, 0)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date, use YYYY-MM-DD"})
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date, use YYYY-MM-DD"})
			return
		}
		to = parsed
	}

	byDay, err := h.service.GetStatsByDay(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}

	byType, err := h.service.GetStatsByType(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"from":    from.Format("2006-01-02"),
		"to":      to.Format("2006-01-02"),
		"by_day":  byDay,
		"by_type": byType,
	})
}
