//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/healthz": {"get": {"summary": "Liveness probe", "responses": {"200": {"description": "ok"}}}},
        "/readyz": {"get": {"summary": "Readiness probe", "responses": {"200": {"description": "ready"}, "503": {"description": "not listening"}}}},
        "/status": {"get": {"summary": "Registered instances and acceptor state", "produces": ["application/json"],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}}},
        "/instances/{id}": {
            "post": {"summary": "Register a logging listener for a MAS instance", "produces": ["application/json"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.RegisterResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}}},
            "delete": {"summary": "Unregister a MAS instance",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}}}
        },
        "/instances/{id}/ws": {"get": {"summary": "Stream event reports for a MAS instance",
            "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
            "responses": {"101": {"description": "Switching Protocols", "schema": {"$ref": "#/definitions/types.EventMessage"}}}}}
    },
    "definitions": {
        "types.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}},
        "types.RegisterResponse": {"type": "object", "properties": {"instance_id": {"type": "integer"}, "instances": {"type": "array", "items": {"type": "integer"}}}},
        "types.StatusResponse": {"type": "object", "properties": {
            "instances": {"type": "array", "items": {"type": "integer"}},
            "acceptors": {"type": "array", "items": {"type": "object"}},
            "service_uuid": {"type": "string"},
            "uptime_seconds": {"type": "integer"},
            "server_time_unix": {"type": "integer"}}},
        "types.EventMessage": {"type": "object", "properties": {
            "instance_id": {"type": "integer"},
            "version": {"type": "string"},
            "events": {"type": "array", "items": {"type": "object"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "mnsd admin API",
	Description:      "Admin API of the MAP message notification service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// MountSwagger serves the Swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
