package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/middleware"
	"github.com/noah-isme/edt-api/internal/models"
	"github.com/noah-isme/edt-api/pkg/response"
)

type plannerService interface {
	GenerateUnlimited(ctx context.Context, caller models.Caller, req dto.PlanRequest, meta models.AuditMeta) (*dto.PlanResponse, error)
	GenerateCapped(ctx context.Context, caller models.Caller, req dto.PlanRequest, meta models.AuditMeta) (*dto.PlanResponse, error)
	GenerateForDepartment(ctx context.Context, caller models.Caller, req dto.DepartmentGenerateRequest, meta models.AuditMeta) (*dto.PlanResponse, error)
}

// PlannerHandler exposes the automatic generation strategies.
type PlannerHandler struct {
	service plannerService
}

// NewPlannerHandler constructs the handler.
func NewPlannerHandler(svc plannerService) *PlannerHandler {
	return &PlannerHandler{service: svc}
}

// GenerateUnlimited godoc
// @Summary Fill the remaining quota of competencies
// @Description Places ceil(remaining/duration) sessions per competency walking day by day, Sundays skipped.
// @Tags Planification
// @Accept json
// @Produce json
// @Param payload body dto.PlanRequest true "Planning payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /emploi-du-temps/generer-planification [post]
func (h *PlannerHandler) GenerateUnlimited(c *gin.Context) {
	h.generate(c, h.service.GenerateUnlimited)
}

// GenerateCapped godoc
// @Summary Plan a capped number of sessions per competency
// @Description Same search as the unlimited strategy with a per-competency cap and a before/after quota summary.
// @Tags Planification
// @Accept json
// @Produce json
// @Param payload body dto.PlanRequest true "Planning payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /emploi-du-temps/planifier-intelligent [post]
func (h *PlannerHandler) GenerateCapped(c *gin.Context) {
	h.generate(c, h.service.GenerateCapped)
}

// GenerateForDepartment godoc
// @Summary Resource-aware generation for a whole department
// @Description Fills the standard blocks of every weekday for each training year of the department.
// @Tags Planification
// @Accept json
// @Produce json
// @Param payload body dto.DepartmentGenerateRequest true "Department payload"
// @Success 201 {object} response.Envelope
// @Router /emploi-du-temps/generer-auto [post]
func (h *PlannerHandler) GenerateForDepartment(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.DepartmentGenerateRequest
	if !bindJSON(c, &req, "invalid generation payload") {
		return
	}
	result, err := h.service.GenerateForDepartment(c.Request.Context(), caller, req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondPlan(c, result)
}

type planFunc func(ctx context.Context, caller models.Caller, req dto.PlanRequest, meta models.AuditMeta) (*dto.PlanResponse, error)

func (h *PlannerHandler) generate(c *gin.Context, run planFunc) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.PlanRequest
	if !bindJSON(c, &req, "invalid planning payload") {
		return
	}
	result, err := run(c.Request.Context(), caller, req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondPlan(c, result)
}

func respondPlan(c *gin.Context, result *dto.PlanResponse) {
	middleware.SetMeta(c, "run_id", result.RunID)
	middleware.SetMeta(c, "strategie", result.Strategy)
	status := http.StatusCreated
	if result.Created == 0 {
		status = http.StatusOK
	}
	response.JSON(c, status, result, nil, middleware.ResponseMeta(c))
}
