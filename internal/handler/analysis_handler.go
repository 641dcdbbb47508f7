package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/models"
	"github.com/noah-isme/edt-api/pkg/response"
)

type analysisService interface {
	Analyze(ctx context.Context, caller models.Caller, req dto.AnalysisRequest) (*dto.AnalysisResponse, error)
	Report(ctx context.Context, caller models.Caller, req dto.AnalysisRequest) (*dto.OccupancyReport, error)
	Reorganize(ctx context.Context, caller models.Caller, req dto.AnalysisRequest) (*dto.ReorganizationResponse, error)
}

// AnalysisHandler exposes the department timetable analyses.
type AnalysisHandler struct {
	service analysisService
}

// NewAnalysisHandler constructs the handler.
func NewAnalysisHandler(svc analysisService) *AnalysisHandler {
	return &AnalysisHandler{service: svc}
}

// Analyze godoc
// @Summary Analyse a department timetable
// @Tags Analyse
// @Accept json
// @Produce json
// @Param payload body dto.AnalysisRequest true "Analysis scope"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps/analyser [post]
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req dto.AnalysisRequest
	caller, ok := h.bind(c, &req)
	if !ok {
		return
	}
	result, err := h.service.Analyze(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Report godoc
// @Summary Occupancy report of a department
// @Tags Analyse
// @Accept json
// @Produce json
// @Param payload body dto.AnalysisRequest true "Analysis scope"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps/rapport [post]
func (h *AnalysisHandler) Report(c *gin.Context) {
	var req dto.AnalysisRequest
	caller, ok := h.bind(c, &req)
	if !ok {
		return
	}
	result, err := h.service.Report(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reorganize godoc
// @Summary Reorganisation proposals for detected conflicts
// @Tags Analyse
// @Accept json
// @Produce json
// @Param payload body dto.AnalysisRequest true "Analysis scope"
// @Success 200 {object} response.Envelope
// @Router /emploi-du-temps/reorganiser [post]
func (h *AnalysisHandler) Reorganize(c *gin.Context) {
	var req dto.AnalysisRequest
	caller, ok := h.bind(c, &req)
	if !ok {
		return
	}
	result, err := h.service.Reorganize(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *AnalysisHandler) bind(c *gin.Context, req *dto.AnalysisRequest) (models.Caller, bool) {
	caller, ok := callerFromContext(c)
	if !ok {
		return caller, false
	}
	return caller, bindJSON(c, req, "invalid analysis payload")
}
