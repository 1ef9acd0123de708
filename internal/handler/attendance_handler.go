package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coach-enroll-api/internal/models"
	"github.com/noah-isme/coach-enroll-api/internal/service"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
	"github.com/noah-isme/coach-enroll-api/pkg/response"
)

// AttendanceHandler exposes attendance marking endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

type markBody struct {
	Status string `json:"status"`
}

// Mark godoc
// @Summary Record the outcome of a session occurrence
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session occurrence ID"
// @Param payload body markBody true "Outcome status"
// @Success 200 {object} response.Envelope
// @Router /sessions/{sessionId}/attendance [put]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var body markBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	occ, err := h.attendance.Mark(c.Request.Context(), service.MarkAttendanceRequest{
		SessionOccurrenceID: c.Param("sessionId"),
		Status:              models.SessionStatus(strings.ToUpper(body.Status)),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occ, nil)
}

// Unmark godoc
// @Summary Revert a session occurrence back to scheduled
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session occurrence ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{sessionId}/attendance [delete]
func (h *AttendanceHandler) Unmark(c *gin.Context) {
	occ, err := h.attendance.Unmark(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occ, nil)
}
