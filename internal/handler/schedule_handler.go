package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coach-enroll-api/internal/service"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
	"github.com/noah-isme/coach-enroll-api/pkg/response"
)

// ScheduleHandler exposes scheduling endpoints.
type ScheduleHandler struct {
	schedules *service.ScheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedules *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// Generate godoc
// @Summary Generate the initial schedule for an enrollment
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.GenerateScheduleRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Router /schedule/generate [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req service.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	occurrences, err := h.schedules.GenerateSchedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, occurrences)
}

// Regenerate godoc
// @Summary Clear and regenerate an enrollment's schedule
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/schedule/regenerate [post]
func (h *ScheduleHandler) Regenerate(c *gin.Context) {
	occurrences, err := h.schedules.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrences, nil)
}

// ListOccurrences godoc
// @Summary List an enrollment's session occurrences
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/sessions [get]
func (h *ScheduleHandler) ListOccurrences(c *gin.Context) {
	views, err := h.schedules.ListOccurrences(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}
