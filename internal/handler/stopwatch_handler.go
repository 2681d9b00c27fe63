package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focusflow/backend/internal/middleware"
	"focusflow/backend/internal/service"
)

type StopwatchHandler struct {
	timerService *service.TimerService
}

type startStopwatchRequest struct {
	BaseVersion int    `json:"baseVersion"`
	Project     string `json:"project"`
}

type manualEntryRequest struct {
	Hours       int    `json:"hours"`
	Minutes     int    `json:"minutes"`
	Seconds     int    `json:"seconds"`
	Project     string `json:"project"`
	Description string `json:"description"`
}

func NewStopwatchHandler(timerService *service.TimerService) *StopwatchHandler {
	return &StopwatchHandler{timerService: timerService}
}

func (h *StopwatchHandler) GetState(c *gin.Context) {
	state, apiErr := h.timerService.GetStopwatch(middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *StopwatchHandler) Start(c *gin.Context) {
	var req startStopwatchRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	state, apiErr := h.timerService.StartStopwatch(middleware.UserID(c), req.Project, req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *StopwatchHandler) Pause(c *gin.Context) {
	var req versionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	state, apiErr := h.timerService.PauseStopwatch(middleware.UserID(c), req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *StopwatchHandler) Stop(c *gin.Context) {
	var req versionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	state, apiErr := h.timerService.StopStopwatch(middleware.UserID(c), req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *StopwatchHandler) ListEntries(c *gin.Context) {
	entries, apiErr := h.timerService.ListTimeEntries(c.Request.Context(), middleware.UserID(c), queryLimit(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *StopwatchHandler) AddEntry(c *gin.Context) {
	var req manualEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	entry, apiErr := h.timerService.AddTimeEntry(c.Request.Context(), middleware.UserID(c), service.ManualEntryInput{
		Hours:       req.Hours,
		Minutes:     req.Minutes,
		Seconds:     req.Seconds,
		Project:     req.Project,
		Description: req.Description,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}
