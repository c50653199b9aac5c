// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/api/v1/admin/login": {"post": {"tags": ["admin-auth"], "summary": "Admin login", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}, "429": {"description": "Too Many Requests"}}}},
        "/api/v1/admin/logout": {"post": {"tags": ["admin-auth"], "summary": "Admin logout", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}}},
        "/api/v1/admin/elections": {
            "get": {"tags": ["admin-elections"], "summary": "List elections", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["admin-elections"], "summary": "Create election", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/api/v1/admin/elections/{electionID}": {
            "get": {"tags": ["admin-elections"], "summary": "Get election", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "patch": {"tags": ["admin-elections"], "summary": "Update election", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/api/v1/admin/elections/{electionID}/{action}": {"post": {"tags": ["admin-elections"], "summary": "activate, close, archive, publish-results or hide-results", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}},
        "/api/v1/admin/elections/{electionID}/results": {"get": {"tags": ["admin-results"], "summary": "Election results for operators", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/admin/elections/{electionID}/candidates": {
            "get": {"tags": ["admin-candidates"], "summary": "List candidates", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["admin-candidates"], "summary": "Create candidate pair", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        },
        "/api/v1/admin/elections/{electionID}/candidates/{candidateID}": {
            "patch": {"tags": ["admin-candidates"], "summary": "Update candidate pair", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["admin-candidates"], "summary": "Delete candidate pair", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}, "409": {"description": "Conflict"}}}
        },
        "/api/v1/admin/elections/{electionID}/tokens": {
            "get": {"tags": ["admin-tokens"], "summary": "List voter tokens", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["admin-tokens"], "summary": "Generate a token batch", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/api/v1/admin/elections/{electionID}/tokens/{tokenID}/invalidate": {"post": {"tags": ["admin-tokens"], "summary": "Invalidate an unused token", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/api/v1/voter/login": {"post": {"tags": ["voter"], "summary": "Redeem a voter token", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}, "429": {"description": "Too Many Requests"}}}},
        "/api/v1/voter/logout": {"post": {"tags": ["voter"], "summary": "Voter logout", "responses": {"204": {"description": "No Content"}}}},
        "/api/v1/voter/candidates": {"get": {"tags": ["voter"], "summary": "Candidates on the voter's ballot", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/api/v1/voter/vote": {"post": {"tags": ["voter"], "summary": "Cast a vote", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}, "429": {"description": "Too Many Requests"}}}},
        "/api/v1/results": {"get": {"tags": ["results"], "summary": "Published results", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Ballot API",
	Description:      "Election lifecycle, voter tokens and vote casting.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
