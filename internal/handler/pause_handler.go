package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coach-enroll-api/internal/service"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
	"github.com/noah-isme/coach-enroll-api/pkg/response"
)

// PauseHandler exposes pause and reschedule endpoints.
type PauseHandler struct {
	pauses *service.PauseService
}

// NewPauseHandler constructs PauseHandler.
func NewPauseHandler(pauses *service.PauseService) *PauseHandler {
	return &PauseHandler{pauses: pauses}
}

type pauseBody struct {
	Reason *string `json:"reason,omitempty"`
}

// Request godoc
// @Summary Pause a session occurrence
// @Tags Pauses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param sessionId path string true "Session occurrence ID"
// @Param payload body pauseBody false "Optional reason"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/sessions/{sessionId}/pause [post]
func (h *PauseHandler) Request(c *gin.Context) {
	var body pauseBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	request, err := h.pauses.RequestPause(c.Request.Context(), service.PauseSessionRequest{
		EnrollmentID:        c.Param("id"),
		SessionOccurrenceID: c.Param("sessionId"),
		Reason:              body.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// History godoc
// @Summary List an enrollment's pause requests
// @Tags Pauses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/pauses [get]
func (h *PauseHandler) History(c *gin.Context) {
	requests, err := h.pauses.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}
