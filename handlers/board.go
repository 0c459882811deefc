package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pawboard/models"
	"pawboard/services/board"
	"pawboard/services/export"
	"pawboard/services/timeline"
	"pawboard/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BoardHandler exposes the day board to the UI layer.
type BoardHandler struct {
	Board       *board.Board
	Location    *time.Location
	WaitTimeout time.Duration
}

func NewBoardHandler(b *board.Board, loc *time.Location) *BoardHandler {
	return &BoardHandler{Board: b, Location: loc, WaitTimeout: 10 * time.Second}
}

type intentRequest struct {
	Action  string    `json:"action" binding:"required"`
	Domain  string    `json:"domain"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
	// Wait holds the response until the change is confirmed or rolled back.
	Wait bool `json:"wait"`
}

type bulkRequest struct {
	Action string `json:"action" binding:"required"`
}

type interactionRequest struct {
	Mode   string `json:"mode" binding:"required"`
	Domain string `json:"domain"`
}

type trackRequest struct {
	Pointer  *time.Time `json:"pointer"`
	OffsetPx *float64   `json:"offsetPx"`
}

type entryStateRequest struct {
	MenuOpen *bool `json:"menuOpen"`
	Expanded *bool `json:"expanded"`
	Selected *bool `json:"selected"`
}

type invalidateRequest struct {
	Tags []string `json:"tags" binding:"required"`
}

// GetDayHandler loads the requested day when it is not the one on display
// and returns its placements.
func (h *BoardHandler) GetDayHandler(c *gin.Context) {
	logger := getLogger(c)
	date := c.Param("date")

	if z := c.Query("zoom"); z != "" {
		zoom, err := timeline.ParseZoom(z)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "Invalid zoom", err.Error())
			return
		}
		h.Board.SetZoom(zoom)
	}

	if h.Board.Date() != date {
		if err := h.Board.Load(c.Request.Context(), date); err != nil {
			logger.Error("Failed to load day", zap.String("date", date), zap.Error(err))
			h.respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"date":     date,
		"stale":    h.Board.Stale(),
		"entries":  h.Board.Placements(),
		"rejected": h.Board.Rejected(),
		"state":    h.Board.State().Snapshot(),
		"heightPx": h.Board.Layout().DayHeightPx(),
	})
}

// CalendarHandler serves the displayed day as text/calendar.
func (h *BoardHandler) CalendarHandler(c *gin.Context) {
	date := c.Param("date")
	if h.Board.Date() != date {
		if err := h.Board.Load(c.Request.Context(), date); err != nil {
			h.respondError(c, err)
			return
		}
	}
	body := export.Serialize(date, h.Board.Entries(), h.Location, time.Now())
	c.Header("Content-Disposition", `attachment; filename="board-`+date+`.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// GetEntryHandler resolves an entry by entry id, legacy id or booking id.
func (h *BoardHandler) GetEntryHandler(c *gin.Context) {
	entry, err := h.Board.Resolve(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entry":   entry,
		"pending": h.Board.Pending(entry.ID),
		"state":   h.Board.State().Get(entry.ID),
	})
}

func (h *BoardHandler) DispatchIntentHandler(c *gin.Context) {
	logger := getLogger(c)

	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	action, err := models.ParseAction(req.Action)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid action", err.Error())
		return
	}
	domain, err := models.ParseDomain(req.Domain)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid domain", err.Error())
		return
	}

	ticket, err := h.Board.Dispatch(c.Request.Context(), board.Intent{
		EntryID: c.Param("id"),
		Action:  action,
		Domain:  domain,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
	})
	if err != nil {
		logger.Warn("Intent refused", zap.String("entryId", c.Param("id")), zap.String("action", req.Action), zap.Error(err))
		h.respondError(c, err)
		return
	}
	h.respondTicket(c, ticket, req.Wait)
}

func (h *BoardHandler) BulkHandler(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	action, err := models.ParseAction(req.Action)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid action", err.Error())
		return
	}

	res, err := h.Board.Bulk(c.Request.Context(), board.BulkIntent{EntryID: c.Param("id"), Action: action})
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 207: one side committed, the other did not.
	status := http.StatusOK
	switch res.Outcome() {
	case board.OutcomePartialFailure:
		status = http.StatusMultiStatus
	case board.OutcomeFullFailure:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"outcome": res.Outcome(),
		"message": res.Message(),
		"result":  res,
	})
}

func (h *BoardHandler) BeginInteractionHandler(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	mode, err := board.ParseInteractionMode(req.Mode)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid mode", err.Error())
		return
	}
	domain, err := models.ParseDomain(req.Domain)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid domain", err.Error())
		return
	}

	it, err := h.Board.BeginInteraction(c.Param("id"), domain, mode)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interaction": it})
}

func (h *BoardHandler) TrackInteractionHandler(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}

	var (
		placements []models.Placement
		err        error
	)
	switch {
	case req.Pointer != nil:
		placements, err = h.Board.Track(*req.Pointer)
	case req.OffsetPx != nil:
		placements, err = h.Board.TrackOffset(*req.OffsetPx)
	default:
		utils.JSONError(c, http.StatusBadRequest, "Invalid request payload", "pointer or offsetPx is required")
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	it, _ := h.Board.Interaction()
	c.JSON(http.StatusOK, gin.H{"interaction": it, "entries": placements})
}

func (h *BoardHandler) CommitInteractionHandler(c *gin.Context) {
	ticket, err := h.Board.CommitInteraction(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if ticket == nil {
		c.JSON(http.StatusOK, gin.H{"message": "No change"})
		return
	}
	h.respondTicket(c, ticket, c.Query("wait") == "true")
}

func (h *BoardHandler) CancelInteractionHandler(c *gin.Context) {
	if err := h.Board.CancelInteraction(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": h.Board.Placements()})
}

func (h *BoardHandler) UpdateEntryStateHandler(c *gin.Context) {
	var req entryStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	entry, err := h.Board.Resolve(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	st := h.Board.State().Update(entry.ID, func(s *board.EntryUIState) {
		if req.MenuOpen != nil {
			s.MenuOpen = *req.MenuOpen
		}
		if req.Expanded != nil {
			s.Expanded = *req.Expanded
		}
		if req.Selected != nil {
			s.Selected = *req.Selected
		}
	})
	c.JSON(http.StatusOK, gin.H{"entryId": entry.ID, "state": st})
}

func (h *BoardHandler) InvalidateHandler(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	matched := h.Board.Invalidate(req.Tags...)
	c.JSON(http.StatusAccepted, gin.H{"matched": matched, "date": h.Board.Date()})
}

func (h *BoardHandler) respondTicket(c *gin.Context, ticket *board.Ticket, wait bool) {
	if !wait {
		c.JSON(http.StatusAccepted, gin.H{
			"mutationId": ticket.Mutation.ID,
			"entryId":    ticket.Mutation.TargetEntryID,
			"entries":    h.Board.Placements(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.WaitTimeout)
	defer cancel()
	if err := ticket.Wait(ctx); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mutationId": ticket.Mutation.ID,
		"entryId":    ticket.Mutation.TargetEntryID,
		"entries":    h.Board.Placements(),
	})
}

func (h *BoardHandler) respondError(c *gin.Context, err error) {
	var merr *board.MutationError
	if errors.As(err, &merr) {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, models.ErrBookingNotFound):
			status = http.StatusNotFound
		case errors.Is(err, models.ErrBookingConflict):
			status = http.StatusConflict
		case errors.Is(err, models.ErrChangeRejected):
			status = http.StatusUnprocessableEntity
		}
		utils.JSONError(c, status, merr.UserMessage(), err.Error())
		return
	}
	utils.JSONError(c, statusFor(err), "Board request failed", err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, board.ErrEntryNotFound), errors.Is(err, board.ErrNoInteraction):
		return http.StatusNotFound
	case errors.Is(err, board.ErrMutationInFlight), errors.Is(err, board.ErrInteractionActive):
		return http.StatusConflict
	case errors.Is(err, board.ErrNoDayLoaded):
		return http.StatusPreconditionFailed
	case errors.Is(err, board.ErrConstituentRequired),
		errors.Is(err, board.ErrInvalidReschedule),
		errors.Is(err, board.ErrBulkAction),
		errors.Is(err, board.ErrNotBulk),
		errors.Is(err, timeline.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
