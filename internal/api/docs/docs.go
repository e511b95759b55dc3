// Package docs registers the OpenAPI document served at /swagger. Keep it in
// sync with the @-annotations on the handlers.
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
        "/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [{"description": "User registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/registerRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/authResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [{"description": "Login credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/loginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/authResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/auth/forgot-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Request a password reset",
                "parameters": [{"description": "Account email", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/forgotPasswordRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/auth/reset-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Reset password",
                "parameters": [{"description": "Reset token and new password", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/resetPasswordRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Change password",
                "parameters": [{"description": "Current and new password", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/changePasswordRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/auth/refresh-token": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Refresh session token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Logout",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/auth/profile": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current user profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["realtime"],
                "summary": "Open a realtime WebSocket connection",
                "parameters": [{"type": "string", "description": "Session token", "name": "token", "in": "query"}],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "403": {"description": "Origin not allowed"}
                }
            }
        },
        "/realtime/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["realtime"],
                "summary": "Realtime gateway stats",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}
            }
        }
    },
    "definitions": {
        "response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "errors": {"type": "array", "items": {"type": "string"}}
            }
        },
        "user": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "firstName": {"type": "string"},
                "lastName": {"type": "string"},
                "phone": {"type": "string"},
                "role": {"type": "string", "enum": ["STUDENT", "EMPLOYER", "ADMIN", "GOVERNMENT_ADMIN"]},
                "isActive": {"type": "boolean"},
                "lastLoginAt": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "authResponse": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/user"},
                "token": {"type": "string"}
            }
        },
        "registerRequest": {
            "type": "object",
            "required": ["email", "password", "firstName", "lastName", "role"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "firstName": {"type": "string", "minLength": 2},
                "lastName": {"type": "string", "minLength": 2},
                "role": {"type": "string", "enum": ["STUDENT", "EMPLOYER"]},
                "phone": {"type": "string"}
            }
        },
        "loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "forgotPasswordRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {"email": {"type": "string"}}
        },
        "resetPasswordRequest": {
            "type": "object",
            "required": ["token", "newPassword"],
            "properties": {
                "token": {"type": "string"},
                "newPassword": {"type": "string", "minLength": 6}
            }
        },
        "changePasswordRequest": {
            "type": "object",
            "required": ["currentPassword", "newPassword"],
            "properties": {
                "currentPassword": {"type": "string"},
                "newPassword": {"type": "string", "minLength": 6}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Pathfinder Identity Gateway API",
	Description:      "Account lifecycle and realtime gateway for the Pathfinder internship marketplace.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
