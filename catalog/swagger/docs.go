// Package swagger registers the OpenAPI document served at /swagger/*.
package swagger

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
                "tags": ["auth"],
                "summary": "Register a member account",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/model.RegisterRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Exchange credentials for a bearer token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/model.LoginRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/books": {
            "get": {
                "tags": ["books"],
                "summary": "List books by title",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["books"],
                "summary": "Create a book",
                "consumes": ["multipart/form-data", "application/json"],
                "parameters": [
                    {"in": "formData", "name": "title", "type": "string", "required": true},
                    {"in": "formData", "name": "description", "type": "string"},
                    {"in": "formData", "name": "authors", "type": "array", "items": {"type": "integer"}, "collectionFormat": "multi"},
                    {"in": "formData", "name": "categories", "type": "array", "items": {"type": "integer"}, "collectionFormat": "multi"},
                    {"in": "formData", "name": "cover", "type": "file"}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}, "413": {"description": "Request Entity Too Large"}, "415": {"description": "Unsupported Media Type"}}
            }
        },
        "/books/{id}": {
            "get": {
                "tags": ["books"],
                "summary": "Get a book",
                "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "security": [{"Bearer": []}],
                "tags": ["books"],
                "summary": "Partially update a book",
                "consumes": ["multipart/form-data", "application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true},
                    {"in": "formData", "name": "title", "type": "string"},
                    {"in": "formData", "name": "description", "type": "string"},
                    {"in": "formData", "name": "cover", "type": "file"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "delete": {
                "security": [{"Bearer": []}],
                "tags": ["books"],
                "summary": "Delete a book and its cover",
                "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/books/{id}/copies": {
            "get": {
                "tags": ["books"],
                "summary": "List the copies of a book",
                "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/authors": {"get": {"tags": ["reference"], "summary": "List authors", "responses": {"200": {"description": "OK"}}}},
        "/categories": {"get": {"tags": ["reference"], "summary": "List categories", "responses": {"200": {"description": "OK"}}}},
        "/loans": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["loans"],
                "summary": "List the caller's loans, newest first",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            },
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["loans"],
                "summary": "Borrow a copy",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/model.BorrowRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/loans/{id}/return": {
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["loans"],
                "summary": "Return a loan",
                "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "model.RegisterRequest": {
            "type": "object",
            "required": ["name", "email", "password"],
            "properties": {"name": {"type": "string"}, "email": {"type": "string"}, "password": {"type": "string", "minLength": 6}}
        },
        "model.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "model.BorrowRequest": {
            "type": "object",
            "required": ["copy_id", "due_at"],
            "properties": {"copy_id": {"type": "integer"}, "due_at": {"type": "string", "example": "2030-01-31"}}
        }
    },
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Library Catalog API",
	Description:      "Books, covers, members and loans.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
