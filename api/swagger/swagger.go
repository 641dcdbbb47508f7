package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "EDT API",
        "description": "Timetable, quota and planning service for training departments",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Login and token rotation"},
        {"name": "Timetable", "description": "Session CRUD and timetable views"},
        {"name": "Planning", "description": "Automatic slot allocation"},
        {"name": "Quotas", "description": "Competency hourly quotas"},
        {"name": "Analysis", "description": "Occupancy, conflicts and reorganisation proposals"}
    ],
    "paths": {
        "/health": {
            "get": {"summary": "Health check", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {"summary": "Readiness check", "responses": {"200": {"description": "Ready"}, "503": {"description": "Database unreachable"}}}
        },
        "/metrics": {
            "get": {"summary": "Prometheus metrics", "produces": ["text/plain"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {"200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/api/v1/auth/refresh": {
            "post": {"tags": ["Auth"], "summary": "Rotate a refresh token", "responses": {"200": {"description": "Token pair"}, "401": {"description": "Invalid refresh token"}}}
        },
        "/api/v1/auth/logout": {
            "post": {"tags": ["Auth"], "security": [{"BearerAuth": []}], "summary": "Revoke refresh tokens", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/auth/me": {
            "get": {"tags": ["Auth"], "security": [{"BearerAuth": []}], "summary": "Current user", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/emploi-du-temps": {
            "get": {
                "tags": ["Timetable"],
                "security": [{"BearerAuth": []}],
                "summary": "List sessions",
                "parameters": [
                    {"name": "annee_id", "in": "query", "type": "integer"},
                    {"name": "date_debut", "in": "query", "type": "string", "format": "date"},
                    {"name": "date_fin", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Timetable"],
                "security": [{"BearerAuth": []}],
                "summary": "Create a session",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SessionRequest"}}],
                "responses": {"201": {"description": "Created"}, "422": {"description": "Validation error or schedule conflict"}}
            }
        },
        "/api/v1/emploi-du-temps/{id}": {
            "get": {"tags": ["Timetable"], "security": [{"BearerAuth": []}], "summary": "Get a session", "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "put": {"tags": ["Timetable"], "security": [{"BearerAuth": []}], "summary": "Update a session", "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}, {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SessionRequest"}}], "responses": {"200": {"description": "OK"}, "422": {"description": "Schedule conflict"}}},
            "delete": {"tags": ["Timetable"], "security": [{"BearerAuth": []}], "summary": "Delete a session", "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}], "responses": {"204": {"description": "Deleted"}}}
        },
        "/api/v1/emploi-du-temps/mes-cours": {
            "get": {"tags": ["Timetable"], "security": [{"BearerAuth": []}], "summary": "Sessions of the calling trainer", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/emploi-du-temps/formateur/{id}": {
            "get": {"tags": ["Timetable"], "security": [{"BearerAuth": []}], "summary": "Sessions of a trainer over a period", "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}, {"name": "date_debut", "in": "query", "required": true, "type": "string"}, {"name": "date_fin", "in": "query", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/emploi-du-temps/annee/{id}": {
            "get": {"tags": ["Timetable"], "security": [{"BearerAuth": []}], "summary": "Sessions of a training year over a period", "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/emploi-du-temps/dupliquer-semaine": {
            "post": {"tags": ["Timetable"], "security": [{"BearerAuth": []}], "summary": "Copy a week of sessions", "responses": {"201": {"description": "Created"}}}
        },
        "/api/v1/emploi-du-temps/export": {
            "get": {"tags": ["Timetable"], "security": [{"BearerAuth": []}], "summary": "Export a timetable", "responses": {"501": {"description": "Not implemented"}}}
        },
        "/api/v1/emploi-du-temps/{id}/deplacer": {
            "post": {
                "tags": ["Timetable"],
                "security": [{"BearerAuth": []}],
                "summary": "Move a session",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}, {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveSessionRequest"}}],
                "responses": {"200": {"description": "Moved"}, "422": {"description": "Conflicts with suggestions"}}
            }
        },
        "/api/v1/emploi-du-temps/{id}/historique": {
            "get": {"tags": ["Timetable"], "security": [{"BearerAuth": []}], "summary": "Move history of a session", "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/emploi-du-temps/generer-planification": {
            "post": {"tags": ["Planning"], "security": [{"BearerAuth": []}], "summary": "Fill a training year without quota caps", "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PlanRequest"}}], "responses": {"201": {"description": "Sessions created"}, "200": {"description": "Nothing placed"}}}
        },
        "/api/v1/emploi-du-temps/planifier-intelligent": {
            "post": {"tags": ["Planning"], "security": [{"BearerAuth": []}], "summary": "Quota-capped planning", "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PlanRequest"}}], "responses": {"201": {"description": "Sessions created"}}}
        },
        "/api/v1/emploi-du-temps/generer-auto": {
            "post": {"tags": ["Planning"], "security": [{"BearerAuth": []}], "summary": "Resource-aware planning of a department", "responses": {"201": {"description": "Sessions created"}}}
        },
        "/api/v1/emploi-du-temps/analyser": {
            "post": {"tags": ["Analysis"], "security": [{"BearerAuth": []}], "summary": "Trainer load and conflicts of a department", "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnalysisRequest"}}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/emploi-du-temps/rapport": {
            "post": {"tags": ["Analysis"], "security": [{"BearerAuth": []}], "summary": "Occupancy report", "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnalysisRequest"}}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/emploi-du-temps/reorganiser": {
            "post": {"tags": ["Analysis"], "security": [{"BearerAuth": []}], "summary": "Reorganisation proposals", "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnalysisRequest"}}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/emploi-du-temps/quotas-statut": {
            "get": {"tags": ["Quotas"], "security": [{"BearerAuth": []}], "summary": "Quota status of competencies", "parameters": [{"name": "competences", "in": "query", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/emploi-du-temps/competences-avec-quota": {
            "get": {"tags": ["Quotas"], "security": [{"BearerAuth": []}], "summary": "Competencies with remaining quota", "parameters": [{"name": "metier_id", "in": "query", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/metiers/{id}/competences-avec-quota": {
            "get": {"tags": ["Quotas"], "security": [{"BearerAuth": []}], "summary": "Open competencies of a trade", "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Trade outside managed departments"}}}
        },
        "/api/v1/metiers/{id}/statistiques": {
            "get": {"tags": ["Quotas"], "security": [{"BearerAuth": []}], "summary": "Quota statistics of a trade", "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/departements/geres": {
            "get": {"tags": ["Quotas"], "security": [{"BearerAuth": []}], "summary": "Departments managed by the caller", "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SessionRequest": {
            "type": "object",
            "required": ["annee_id", "heure_debut", "heure_fin", "date_debut", "date_fin"],
            "properties": {
                "annee_id": {"type": "integer"},
                "heure_debut": {"type": "string", "example": "08:30:00"},
                "heure_fin": {"type": "string", "example": "11:00:00"},
                "date_debut": {"type": "string", "format": "date"},
                "date_fin": {"type": "string", "format": "date"},
                "competences": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "MoveSessionRequest": {
            "type": "object",
            "required": ["nouvelle_date", "nouvelle_heure_debut", "nouvelle_heure_fin"],
            "properties": {
                "nouvelle_date": {"type": "string", "format": "date"},
                "nouvelle_heure_debut": {"type": "string"},
                "nouvelle_heure_fin": {"type": "string"},
                "raison_deplacement": {"type": "string"}
            }
        },
        "PlanRequest": {
            "type": "object",
            "required": ["annee_id", "date_debut", "competences"],
            "properties": {
                "annee_id": {"type": "integer"},
                "date_debut": {"type": "string", "format": "date"},
                "date_fin": {"type": "string", "format": "date"},
                "max_seances_par_competence": {"type": "integer"},
                "competences": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "id": {"type": "integer"},
                            "duree_cours": {"type": "integer", "minimum": 1, "maximum": 5},
                            "max_seances": {"type": "integer"}
                        }
                    }
                }
            }
        },
        "AnalysisRequest": {
            "type": "object",
            "required": ["departement_id", "date_debut", "date_fin"],
            "properties": {
                "departement_id": {"type": "integer"},
                "date_debut": {"type": "string", "format": "date"},
                "date_fin": {"type": "string", "format": "date"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "conflicts": {"type": "array", "items": {"type": "object"}},
                "suggestions": {"type": "array", "items": {"type": "object"}},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
