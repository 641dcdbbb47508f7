package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
	"github.com/noah-isme/edt-api/pkg/response"
)

type quotaService interface {
	StatusesFor(ctx context.Context, caller models.Caller, ids []int64) ([]models.QuotaStatus, error)
	CompetenciesWithQuota(ctx context.Context, caller models.Caller, tradeID int64) ([]models.QuotaStatus, error)
	TradeStatistics(ctx context.Context, caller models.Caller, tradeID int64) (*models.TradeStatistics, error)
}

type departmentDirectory interface {
	ManagedDepartments(ctx context.Context, caller models.Caller) ([]models.Department, error)
}

// QuotaHandler serves the read-only quota snapshots and the caller's departments.
type QuotaHandler struct {
	quotas      quotaService
	departments departmentDirectory
}

// NewQuotaHandler constructs the handler.
func NewQuotaHandler(quotas quotaService, departments departmentDirectory) *QuotaHandler {
	return &QuotaHandler{quotas: quotas, departments: departments}
}

// Statuses godoc
// @Summary Quota status of competencies
// @Tags Quotas
// @Produce json
// @Param competences query string true "Comma separated competency ids"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps/quotas-statut [get]
func (h *QuotaHandler) Statuses(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	ids, err := queryIDs(c, "competences")
	if err != nil {
		response.Error(c, err)
		return
	}
	statuses, err := h.quotas.StatusesFor(c.Request.Context(), caller, ids)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}

// OpenCompetencies godoc
// @Summary Competencies of a trade with remaining quota
// @Description Sorted by remaining hours, largest first.
// @Tags Quotas
// @Produce json
// @Param metier_id query int true "Trade ID"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps/competences-avec-quota [get]
func (h *QuotaHandler) OpenCompetencies(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	tradeID, err := strconv.ParseInt(c.Query("metier_id"), 10, 64)
	if err != nil || tradeID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "metier_id must be a positive integer"))
		return
	}
	h.openCompetencies(c, caller, tradeID)
}

// TradeOpenCompetencies godoc
// @Summary Competencies of a trade with remaining quota
// @Tags Quotas
// @Produce json
// @Param id path int true "Trade ID"
// @Success 200 {object} response.Envelope
// @Router /metiers/{id}/competences-avec-quota [get]
func (h *QuotaHandler) TradeOpenCompetencies(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	tradeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.openCompetencies(c, caller, tradeID)
}

func (h *QuotaHandler) openCompetencies(c *gin.Context, caller models.Caller, tradeID int64) {
	statuses, err := h.quotas.CompetenciesWithQuota(c.Request.Context(), caller, tradeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}

// TradeStatistics godoc
// @Summary Quota statistics of a trade
// @Tags Quotas
// @Produce json
// @Param id path int true "Trade ID"
// @Success 200 {object} response.Envelope
// @Router /metiers/{id}/statistiques [get]
func (h *QuotaHandler) TradeStatistics(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	tradeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	stats, err := h.quotas.TradeStatistics(c.Request.Context(), caller, tradeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ManagedDepartments godoc
// @Summary Departments chaired by the caller
// @Tags Departements
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departements/geres [get]
func (h *QuotaHandler) ManagedDepartments(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	depts, err := h.departments.ManagedDepartments(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, depts, nil)
}
