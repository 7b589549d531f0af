// Package docs registers the OpenAPI document served under /swagger. It is
// maintained by hand against the handler annotations in internal/api; keep
// the two in sync when a route changes.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/admin/limits": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Forgets all counters and blocks.",
                "tags": ["admin"],
                "summary": "Clear every key",
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/admin/limits/{key}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Forgets all counters and blocks for a stored key: app:<key> for public checks, ip:<addr> for the request guard.",
                "tags": ["admin"],
                "summary": "Reset one key",
                "parameters": [
                    {"type": "string", "description": "Limit key", "name": "key", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/admin/violations": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Lists keys that entered a block cooldown, newest first.",
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Recorded blocks",
                "parameters": [
                    {"type": "string", "description": "Filter by stored key", "name": "key", "in": "query"},
                    {"type": "integer", "description": "Max items (default 50, max 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.violationsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/limits/check": {
            "post": {
                "description": "Records a call for key against a preset or a custom rule. A rejected call is still 200; inspect allowed.\nKeys are stored as app:<key>. Custom windows and blocks are capped by rate_limit.max_custom_window.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["limits"],
                "summary": "Consume one call",
                "parameters": [
                    {"description": "Check request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.checkRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.checkResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/limits/remaining": {
            "get": {
                "description": "Reports how many calls key may still make under preset without consuming one.",
                "produces": ["application/json"],
                "tags": ["limits"],
                "summary": "Remaining calls",
                "parameters": [
                    {"type": "string", "description": "Limit key", "name": "key", "in": "query", "required": true},
                    {"type": "string", "description": "Preset name (api, auth, search, submit, upload)", "name": "preset", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.remainingResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.checkRequest": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "preset": {"type": "string"},
                "rule": {"$ref": "#/definitions/api.ruleRequest"}
            }
        },
        "api.checkResponse": {
            "type": "object",
            "properties": {
                "allowed": {"type": "boolean"},
                "limit": {"type": "integer"},
                "outcome": {"type": "string"},
                "remaining": {"type": "integer"},
                "reset_at": {"type": "string"},
                "retry_after_ms": {"type": "integer"}
            }
        },
        "api.remainingResponse": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "preset": {"type": "string"},
                "remaining": {"type": "integer"}
            }
        },
        "api.ruleRequest": {
            "type": "object",
            "properties": {
                "block_duration_ms": {"type": "integer"},
                "max_requests": {"type": "integer"},
                "window_ms": {"type": "integer"}
            }
        },
        "api.violationResponse": {
            "type": "object",
            "properties": {
                "blocked_until": {"type": "string"},
                "created_at": {"type": "string"},
                "event_id": {"type": "string"},
                "id": {"type": "integer"},
                "key": {"type": "string"},
                "max_requests": {"type": "integer"},
                "preset": {"type": "string"},
                "window_ms": {"type": "integer"}
            }
        },
        "api.violationsResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/api.violationResponse"}}
            }
        },
        "response.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "retry_after_ms": {"type": "integer"},
                "status": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "trailgate API",
	Description:      "Fixed-window rate limiting for the tourism app backend.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
