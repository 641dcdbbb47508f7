package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/middleware"
	"github.com/noah-isme/edt-api/internal/models"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Auth       *AuthHandler
	Sessions   *SessionHandler
	Planner    *PlannerHandler
	Reschedule *RescheduleHandler
	Quotas     *QuotaHandler
	Analysis   *AnalysisHandler
	Metrics    *MetricsHandler
}

// RouteOptions carries the cross-cutting pieces of the router.
type RouteOptions struct {
	Prefix string
	// Authenticate must store *models.JWTClaims under middleware.ContextUserKey.
	Authenticate gin.HandlerFunc
	Audit        middleware.AuditWriter
	Logger       *zap.Logger
}

// RegisterRoutes mounts the probes at the root and the API under the prefix.
func RegisterRoutes(r *gin.Engine, h Handlers, opts RouteOptions) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(opts.Prefix)
	api.Use(middleware.WithResponseMeta())

	chief := middleware.RequireRoles(models.RoleDepartmentHead)
	readers := middleware.RequireRoles(models.RoleAdmin, models.RoleDirector, models.RoleDepartmentHead, models.RoleTrainer)
	analysts := middleware.RequireRoles(models.RoleAdmin, models.RoleDirector, models.RoleDepartmentHead)
	teaching := middleware.RequireRoles(models.RoleDepartmentHead, models.RoleTrainer)

	if h.Auth != nil {
		auth := api.Group("/auth")
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", opts.Authenticate, h.Auth.Logout)
		auth.GET("/me", opts.Authenticate, h.Auth.Me)
	}

	secured := api.Group("")
	secured.Use(opts.Authenticate)

	edt := secured.Group("/emploi-du-temps")
	if h.Sessions != nil {
		edt.GET("", readers, h.Sessions.List)
		edt.POST("", chief, h.Sessions.Create)
		edt.GET("/mes-cours", teaching, h.Sessions.MyCourses)
		edt.GET("/formateur/:id", readers, h.Sessions.ByTrainer)
		edt.GET("/annee/:id", readers, h.Sessions.ByYear)
		edt.GET("/export", readers, h.Sessions.Export)
		edt.POST("/dupliquer-semaine", chief, h.Sessions.DuplicateWeek)
		edt.GET("/:id", readers, h.Sessions.Get)
		edt.PUT("/:id", chief, h.Sessions.Update)
		edt.DELETE("/:id", chief, h.Sessions.Delete)
	}
	if h.Reschedule != nil {
		edt.POST("/:id/deplacer", chief, h.Reschedule.Move)
		edt.GET("/:id/historique", readers, h.Reschedule.History)
	}
	if h.Planner != nil {
		edt.POST("/generer-planification", chief, h.Planner.GenerateUnlimited)
		edt.POST("/planifier-intelligent", chief, h.Planner.GenerateCapped)
		edt.POST("/generer-auto", chief, h.Planner.GenerateForDepartment)
	}
	if h.Analysis != nil {
		edt.POST("/analyser", analysts, middleware.Audit(opts.Audit, opts.Logger, models.AuditActionTimetableAnalysis, models.AuditResourceDept), h.Analysis.Analyze)
		edt.POST("/rapport", analysts, middleware.Audit(opts.Audit, opts.Logger, models.AuditActionTimetableReport, models.AuditResourceDept), h.Analysis.Report)
		edt.POST("/reorganiser", analysts, middleware.Audit(opts.Audit, opts.Logger, models.AuditActionTimetableAnalysis, models.AuditResourceDept), h.Analysis.Reorganize)
	}
	if h.Quotas != nil {
		edt.GET("/quotas-statut", chief, h.Quotas.Statuses)
		edt.GET("/competences-avec-quota", chief, h.Quotas.OpenCompetencies)
		secured.GET("/metiers/:id/competences-avec-quota", chief, h.Quotas.TradeOpenCompetencies)
		secured.GET("/metiers/:id/statistiques", chief, h.Quotas.TradeStatistics)
		secured.GET("/departements/geres", chief, h.Quotas.ManagedDepartments)
	}
}
