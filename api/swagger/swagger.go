package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "FamTime Rewards API",
        "description": "Usage validation and reward economy engine for family screen time.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Sessions", "description": "Usage session ingestion and validation outcomes"},
        {"name": "Redemptions", "description": "Point-to-screen-time exchange"},
        {"name": "Children", "description": "Child profiles, balances and ledger views"},
        {"name": "Apps", "description": "Per-family app categorization registry"},
        {"name": "Settings", "description": "Family policy administration"},
        {"name": "Statements", "description": "Asynchronous point statement exports"},
        {"name": "Events", "description": "Family event stream"},
        {"name": "Metrics", "description": "Operational counters"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check (database and redis)",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List usage sessions",
                "parameters": [
                    {"name": "childId", "in": "query", "type": "string"},
                    {"name": "appId", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string", "enum": ["learning", "reward"]},
                    {"name": "validated", "in": "query", "type": "boolean"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Record a finished usage session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Validated inline", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Queued for background validation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get session by id",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/redemptions": {
            "post": {
                "tags": ["Redemptions"],
                "summary": "Redeem points for screen time",
                "description": "Declined attempts return the decision with HTTP 200 and no grant.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RedeemRequest"}}
                ],
                "responses": {
                    "200": {"description": "Decision (and grant on success)", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/redemptions/validate": {
            "post": {
                "tags": ["Redemptions"],
                "summary": "Dry-run a redemption without spending points",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RedeemRequest"}}
                ],
                "responses": {
                    "200": {"description": "Decision", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/redemptions/quote": {
            "post": {
                "tags": ["Redemptions"],
                "summary": "Quote the point cost of reward minutes",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/QuoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "Quote", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/redemptions/{id}/usage": {
            "put": {
                "tags": ["Redemptions"],
                "summary": "Report minutes consumed against a grant",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UsageReportRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated redemption", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/children": {
            "get": {
                "tags": ["Children"],
                "summary": "List children of a family",
                "parameters": [
                    {"name": "familyId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Children"],
                "summary": "Register a child profile",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateChildRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/children/{id}": {
            "get": {
                "tags": ["Children"],
                "summary": "Get child profile",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/children/{id}/balance": {
            "get": {
                "tags": ["Children"],
                "summary": "Current point balance",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/children/{id}/summary": {
            "get": {
                "tags": ["Children"],
                "summary": "Balance, active grants and recent activity",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/children/{id}/transactions": {
            "get": {
                "tags": ["Children"],
                "summary": "Child transaction history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/children/{id}/redemptions": {
            "get": {
                "tags": ["Children"],
                "summary": "Child redemption history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/children/{id}/reconcile": {
            "post": {
                "tags": ["Children"],
                "summary": "Recompute and verify the child's balance",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Reconciliation report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/apps": {
            "get": {
                "tags": ["Apps"],
                "summary": "List a family's registered apps",
                "parameters": [
                    {"name": "familyId", "in": "query", "required": true, "type": "string"},
                    {"name": "category", "in": "query", "type": "string", "enum": ["learning", "reward"]},
                    {"name": "active", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Apps"],
                "summary": "Register an app for a family",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterAppRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/apps/{id}": {
            "get": {
                "tags": ["Apps"],
                "summary": "Get app catalog entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Apps"],
                "summary": "Update app catalog entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAppRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/families/{id}/settings": {
            "get": {
                "tags": ["Settings"],
                "summary": "Resolve family settings (defaults when unset)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Settings"],
                "summary": "Replace family settings",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSettingsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "PIN rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/families/{id}/settings/pin": {
            "post": {
                "tags": ["Settings"],
                "summary": "Configure or rotate the parent PIN",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetPinRequest"}}
                ],
                "responses": {
                    "204": {"description": "PIN updated"}
                }
            }
        },
        "/statements": {
            "post": {
                "tags": ["Statements"],
                "summary": "Request a point statement export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StatementRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/statements/status/{id}": {
            "get": {
                "tags": ["Statements"],
                "summary": "Statement job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/statements/download/{token}": {
            "get": {
                "tags": ["Statements"],
                "summary": "Download a finished statement via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Statement file"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/stream": {
            "get": {
                "tags": ["Events"],
                "summary": "Subscribe to family events over websocket",
                "parameters": [
                    {"name": "familyId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "101": {"description": "Switching protocols"}
                }
            }
        },
        "/status": {
            "get": {
                "tags": ["Metrics"],
                "summary": "In-process counters snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RecordSessionRequest": {
            "type": "object",
            "properties": {
                "childId": {"type": "string"},
                "appId": {"type": "string"},
                "appName": {"type": "string"},
                "category": {"type": "string", "enum": ["learning", "reward"]},
                "startedAt": {"type": "string", "format": "date-time"},
                "endedAt": {"type": "string", "format": "date-time"}
            },
            "required": ["childId", "appId", "category", "startedAt", "endedAt"]
        },
        "RedeemRequest": {
            "type": "object",
            "properties": {
                "childId": {"type": "string"},
                "appId": {"type": "string"},
                "points": {"type": "integer"}
            },
            "required": ["childId", "appId", "points"]
        },
        "QuoteRequest": {
            "type": "object",
            "properties": {
                "childId": {"type": "string"},
                "appId": {"type": "string"},
                "minutes": {"type": "integer"}
            },
            "required": ["childId", "appId", "minutes"]
        },
        "UsageReportRequest": {
            "type": "object",
            "properties": {
                "minutesUsed": {"type": "integer"}
            },
            "required": ["minutesUsed"]
        },
        "CreateChildRequest": {
            "type": "object",
            "properties": {
                "familyId": {"type": "string"},
                "name": {"type": "string"}
            },
            "required": ["familyId", "name"]
        },
        "RegisterAppRequest": {
            "type": "object",
            "properties": {
                "familyId": {"type": "string"},
                "appId": {"type": "string"},
                "name": {"type": "string"},
                "category": {"type": "string", "enum": ["learning", "reward"]},
                "pointsPerHour": {"type": "integer"},
                "conversionRate": {"type": "number"}
            },
            "required": ["familyId", "appId", "name", "category"]
        },
        "UpdateAppRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "category": {"type": "string", "enum": ["learning", "reward"]},
                "pointsPerHour": {"type": "integer"},
                "conversionRate": {"type": "number"},
                "active": {"type": "boolean"}
            }
        },
        "UpdateSettingsRequest": {
            "type": "object",
            "properties": {
                "validationLevel": {"type": "string", "enum": ["lenient", "moderate", "strict"]},
                "dailyTimeLimitMinutes": {"type": "integer"},
                "bedtimeStart": {"type": "string", "example": "21:00"},
                "bedtimeEnd": {"type": "string", "example": "07:00"},
                "restrictedCategories": {"type": "array", "items": {"type": "string"}},
                "parentPin": {"type": "string"}
            }
        },
        "SetPinRequest": {
            "type": "object",
            "properties": {
                "currentPin": {"type": "string"},
                "newPin": {"type": "string"}
            },
            "required": ["newPin"]
        },
        "StatementRequest": {
            "type": "object",
            "properties": {
                "childId": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "from": {"type": "string", "format": "date-time"},
                "to": {"type": "string", "format": "date-time"}
            },
            "required": ["childId", "format"]
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
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
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
