package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/middleware"
	"focusflow/backend/internal/service"
)

const (
	eventBuffer       = 16
	keepAliveInterval = 15 * time.Second
)

type PomodoroHandler struct {
	timerService *service.TimerService
}

type versionRequest struct {
	BaseVersion int `json:"baseVersion"`
}

type updateSettingsRequest struct {
	BaseVersion           int  `json:"baseVersion"`
	WorkMinutes           *int `json:"workMinutes"`
	ShortBreakMinutes     *int `json:"shortBreakMinutes"`
	LongBreakMinutes      *int `json:"longBreakMinutes"`
	CyclesBeforeLongBreak *int `json:"cyclesBeforeLongBreak"`
}

func NewPomodoroHandler(timerService *service.TimerService) *PomodoroHandler {
	return &PomodoroHandler{timerService: timerService}
}

func (h *PomodoroHandler) GetState(c *gin.Context) {
	state, apiErr := h.timerService.GetState(middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PomodoroHandler) Start(c *gin.Context) {
	h.command(c, h.timerService.Start)
}

func (h *PomodoroHandler) Pause(c *gin.Context) {
	h.command(c, h.timerService.Pause)
}

func (h *PomodoroHandler) Stop(c *gin.Context) {
	h.command(c, h.timerService.Stop)
}

func (h *PomodoroHandler) Skip(c *gin.Context) {
	h.command(c, h.timerService.Skip)
}

// UpdateSettings applies a partial settings change. Omitted fields keep their
// current value; out-of-range values are clamped.
func (h *PomodoroHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	state, apiErr := h.timerService.UpdateSettings(middleware.UserID(c), service.UpdateSettingsInput{
		BaseVersion:           req.BaseVersion,
		WorkMinutes:           req.WorkMinutes,
		ShortBreakMinutes:     req.ShortBreakMinutes,
		LongBreakMinutes:      req.LongBreakMinutes,
		CyclesBeforeLongBreak: req.CyclesBeforeLongBreak,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// Events streams clock updates as server-sent events. The first event carries
// the current state.
func (h *PomodoroHandler) Events(c *gin.Context) {
	userID := middleware.UserID(c)
	events, cancel, apiErr := h.timerService.Subscribe(userID, eventBuffer)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	defer cancel()

	state, apiErr := h.timerService.GetState(userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("state", state)
	c.Writer.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"serverTime": time.Now().UTC()})
			return true
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		}
	})
}

func (h *PomodoroHandler) GetHistory(c *gin.Context) {
	records, apiErr := h.timerService.GetHistory(c.Request.Context(), middleware.UserID(c), queryLimit(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *PomodoroHandler) GetSummary(c *gin.Context) {
	summary, apiErr := h.timerService.GetSummary(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (h *PomodoroHandler) command(
	c *gin.Context,
	run func(userID string, baseVersion int) (*service.StateView, *apperrors.APIError),
) {
	var req versionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	state, apiErr := run(middleware.UserID(c), req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
