package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/middleware"
	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
	"github.com/noah-isme/edt-api/pkg/response"
)

type sessionService interface {
	Create(ctx context.Context, caller models.Caller, req dto.SessionRequest, meta models.AuditMeta) (*models.SessionDetail, error)
	Update(ctx context.Context, caller models.Caller, id int64, req dto.SessionRequest, meta models.AuditMeta) (*models.SessionDetail, error)
	Delete(ctx context.Context, caller models.Caller, id int64, meta models.AuditMeta) error
	Get(ctx context.Context, caller models.Caller, id int64) (*models.SessionDetail, error)
	List(ctx context.Context, caller models.Caller, query dto.SessionListQuery) ([]models.SessionDetail, *models.Pagination, error)
	ListForTrainer(ctx context.Context, caller models.Caller, trainerID int64, period dto.PeriodQuery) ([]models.SessionDetail, error)
	ListForYear(ctx context.Context, caller models.Caller, yearID int64, period dto.PeriodQuery) ([]models.SessionDetail, error)
	MyCourses(ctx context.Context, caller models.Caller, period dto.PeriodQuery) ([]models.SessionDetail, error)
	DuplicateWeek(ctx context.Context, caller models.Caller, req dto.DuplicateWeekRequest, meta models.AuditMeta) (*dto.DuplicateWeekResponse, error)
}

// SessionHandler exposes timetable session endpoints.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(svc sessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// Create godoc
// @Summary Create a timetable session
// @Description Creates a session and links its competencies. Conflicts on year, trainer or room are returned together.
// @Tags Emploi du temps
// @Accept json
// @Produce json
// @Param payload body dto.SessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /emploi-du-temps [post]
func (h *SessionHandler) Create(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.SessionRequest
	if !bindJSON(c, &req, "invalid session payload") {
		return
	}
	session, err := h.service.Create(c.Request.Context(), caller, req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Update a timetable session
// @Description Replaces the slot and the full set of competency links. The session never conflicts with itself.
// @Tags Emploi du temps
// @Accept json
// @Produce json
// @Param id path int true "Session ID"
// @Param payload body dto.SessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /emploi-du-temps/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.SessionRequest
	if !bindJSON(c, &req, "invalid session payload") {
		return
	}
	session, err := h.service.Update(c.Request.Context(), caller, id, req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete a timetable session
// @Tags Emploi du temps
// @Param id path int true "Session ID"
// @Success 204
// @Router /emploi-du-temps/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), caller, id, auditMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get a timetable session
// @Tags Emploi du temps
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /emploi-du-temps/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	session, err := h.service.Get(c.Request.Context(), caller, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// List godoc
// @Summary List timetable sessions
// @Description Sessions visible to the caller ordered by date then start time.
// @Tags Emploi du temps
// @Produce json
// @Param annee_id query int false "Training year"
// @Param date_debut query string false "From date (YYYY-MM-DD)"
// @Param date_fin query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps [get]
func (h *SessionHandler) List(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var query dto.SessionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	sessions, pagination, err := h.service.List(c.Request.Context(), caller, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination, middleware.ResponseMeta(c))
}

// ByTrainer godoc
// @Summary Sessions of a trainer over a period
// @Tags Emploi du temps
// @Produce json
// @Param id path int true "Trainer ID"
// @Param date_debut query string true "From date (YYYY-MM-DD)"
// @Param date_fin query string true "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps/formateur/{id} [get]
func (h *SessionHandler) ByTrainer(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	period, ok := bindPeriod(c)
	if !ok {
		return
	}
	sessions, err := h.service.ListForTrainer(c.Request.Context(), caller, id, period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// ByYear godoc
// @Summary Sessions of a training year over a period
// @Tags Emploi du temps
// @Produce json
// @Param id path int true "Training year ID"
// @Param date_debut query string true "From date (YYYY-MM-DD)"
// @Param date_fin query string true "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps/annee/{id} [get]
func (h *SessionHandler) ByYear(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	period, ok := bindPeriod(c)
	if !ok {
		return
	}
	sessions, err := h.service.ListForYear(c.Request.Context(), caller, id, period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// MyCourses godoc
// @Summary Sessions taught by the authenticated trainer
// @Tags Emploi du temps
// @Produce json
// @Param date_debut query string true "From date (YYYY-MM-DD)"
// @Param date_fin query string true "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps/mes-cours [get]
func (h *SessionHandler) MyCourses(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	period, ok := bindPeriod(c)
	if !ok {
		return
	}
	sessions, err := h.service.MyCourses(c.Request.Context(), caller, period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// DuplicateWeek godoc
// @Summary Copy one week of a training year onto another week
// @Description Conflicting copies are skipped and reported. With remplacer the target week is cleared first.
// @Tags Emploi du temps
// @Accept json
// @Produce json
// @Param payload body dto.DuplicateWeekRequest true "Duplication payload"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps/dupliquer-semaine [post]
func (h *SessionHandler) DuplicateWeek(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.DuplicateWeekRequest
	if !bindJSON(c, &req, "invalid duplication payload") {
		return
	}
	result, err := h.service.DuplicateWeek(c.Request.Context(), caller, req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export the timetable
// @Tags Emploi du temps
// @Failure 501 {object} response.Envelope
// @Router /emploi-du-temps/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	response.Error(c, appErrors.Clone(appErrors.ErrNotImplemented, "timetable export is not available"))
}

func bindPeriod(c *gin.Context) (dto.PeriodQuery, bool) {
	var period dto.PeriodQuery
	if err := c.ShouldBindQuery(&period); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid period"))
		return period, false
	}
	return period, true
}
