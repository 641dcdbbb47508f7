package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/models"
	"github.com/noah-isme/edt-api/pkg/response"
)

type rescheduleService interface {
	Move(ctx context.Context, caller models.Caller, sessionID int64, req dto.MoveSessionRequest, meta models.AuditMeta) (*dto.MoveSessionResponse, error)
	History(ctx context.Context, caller models.Caller, sessionID int64) ([]models.AuditLog, error)
}

// RescheduleHandler moves sessions and exposes their move history.
type RescheduleHandler struct {
	service rescheduleService
}

// NewRescheduleHandler constructs the handler.
func NewRescheduleHandler(svc rescheduleService) *RescheduleHandler {
	return &RescheduleHandler{service: svc}
}

// Move godoc
// @Summary Move a session to another slot
// @Description On conflict responds 422 with every conflict and up to five ranked alternative slots.
// @Tags Emploi du temps
// @Accept json
// @Produce json
// @Param id path int true "Session ID"
// @Param payload body dto.MoveSessionRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /emploi-du-temps/{id}/deplacer [post]
func (h *RescheduleHandler) Move(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.MoveSessionRequest
	if !bindJSON(c, &req, "invalid move payload") {
		return
	}
	result, err := h.service.Move(c.Request.Context(), caller, id, req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Cours déplacé avec succès", result)
}

// History godoc
// @Summary Move history of a session
// @Tags Emploi du temps
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps/{id}/historique [get]
func (h *RescheduleHandler) History(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	logs, err := h.service.History(c.Request.Context(), caller, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
