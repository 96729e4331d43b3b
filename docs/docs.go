// Package docs registers the OpenAPI document served under /swagger/.
// Regenerate with `swag init -g cmd/server/main.go` after changing handler annotations.
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
        "/sessions": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Create a session with a join code",
                "parameters": [
                    {
                        "description": "Title and ordered activities",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/model.CreateSessionRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Session"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/apperr.AppError"}}
                }
            }
        },
        "/sessions/{sessionId}": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Update title, activities, status or analysis of a session",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sessionId",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Fields to change",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/model.SessionPatch"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Session"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/apperr.AppError"}}
                }
            }
        },
        "/s/{code}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["participants"],
                "summary": "Look up a session by its join code",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session code",
                        "name": "code",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.SessionView"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/apperr.AppError"}}
                }
            }
        },
        "/s/{code}/join": {
            "post": {
                "produces": ["application/json"],
                "tags": ["participants"],
                "summary": "Join an open session by code",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session code",
                        "name": "code",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.SessionJoinResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/apperr.AppError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/apperr.AppError"}}
                }
            }
        }
    },
    "definitions": {
        "apperr.AppError": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "model.CreateSessionRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string", "maxLength": 200},
                "activityIds": {"type": "array", "maxItems": 100, "items": {"type": "string"}}
            }
        },
        "model.SessionPatch": {
            "type": "object",
            "properties": {
                "title": {"type": "string", "maxLength": 200},
                "activityIds": {"type": "array", "maxItems": 100, "items": {"type": "string"}},
                "status": {"$ref": "#/definitions/model.SessionStatus"},
                "analysis": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/model.SynthesisResult"}
                }
            }
        },
        "model.SessionStatus": {
            "type": "string",
            "enum": ["DRAFT", "OPEN", "CLOSED"]
        },
        "model.Session": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "code": {"type": "string"},
                "title": {"type": "string"},
                "ownerId": {"type": "string"},
                "status": {"$ref": "#/definitions/model.SessionStatus"},
                "activityIds": {"type": "array", "items": {"type": "string"}},
                "analysis": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/model.SynthesisResult"}
                },
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "model.SessionView": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "code": {"type": "string"},
                "title": {"type": "string"},
                "status": {"$ref": "#/definitions/model.SessionStatus"},
                "handle": {"type": "string"},
                "liveActivityId": {"type": "string"}
            }
        },
        "model.SessionJoinResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "participantId": {"type": "string"},
                "handle": {"type": "string"},
                "session": {"$ref": "#/definitions/model.SessionView"}
            }
        },
        "model.SynthesisResult": {
            "type": "object",
            "properties": {
                "consensus": {"type": "string"},
                "distribution_analysis": {"type": "string"},
                "key_inferences": {"type": "array", "items": {"type": "string"}},
                "confusion_points": {"type": "array", "items": {"type": "string"}},
                "outlier_insight": {"type": "string"},
                "recommended_action": {"type": "string"}
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
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Livepoll API",
	Description:      "Live classroom polling: activities, responses, live pointer, runs, sessions and synthesis",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
