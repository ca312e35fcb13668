// Package docs holds the OpenAPI description served at /swagger.
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
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/api/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a new account",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.RegisterRequest"}}],
                "responses": {
                    "201": {"description": "Account created", "schema": {"$ref": "#/definitions/dto.AuthResponse"}},
                    "400": {"description": "Validation failed"},
                    "409": {"description": "Username taken"}
                }
            }
        },
        "/api/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Log in",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.LoginRequest"}}],
                "responses": {
                    "200": {"description": "Session started", "schema": {"$ref": "#/definitions/dto.AuthResponse"}},
                    "401": {"description": "Invalid credentials or deactivated account"}
                }
            }
        },
        "/api/logout": {
            "post": {"tags": ["Auth"], "summary": "Log out", "responses": {"200": {"description": "Session cleared"}}}
        },
        "/api/auth/refresh": {
            "post": {"tags": ["Auth"], "summary": "Refresh the session", "responses": {"200": {"description": "New tokens"}, "401": {"description": "Invalid refresh token"}}}
        },
        "/api/user": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Auth"], "summary": "Current account", "responses": {"200": {"description": "Account", "schema": {"$ref": "#/definitions/dto.UserDTO"}}, "401": {"description": "Unauthorized"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["Auth"], "summary": "Close the current account", "responses": {"200": {"description": "Account closed"}}}
        },
        "/api/usage": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Auth"], "summary": "Free message usage", "responses": {"200": {"description": "Usage"}}}
        },
        "/api/chat": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Chat"],
                "summary": "Send a message to the assistant",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.ChatRequest"}}],
                "responses": {
                    "200": {"description": "Stored exchange", "schema": {"$ref": "#/definitions/dto.ChatResponse"}},
                    "401": {"description": "Unauthorized"},
                    "403": {"description": "Free message limit reached"},
                    "500": {"description": "Assistant unavailable"}
                }
            }
        },
        "/api/chats": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Chat"], "summary": "Conversation history", "responses": {"200": {"description": "Paginated conversations"}}}
        },
        "/api/billing/plans": {
            "get": {"tags": ["Billing"], "summary": "Available plans", "responses": {"200": {"description": "Plans"}}}
        },
        "/api/billing/info": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Billing"], "summary": "Subscription status and usage", "responses": {"200": {"description": "Billing info"}}}
        },
        "/api/subscriptions/activate": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Billing"], "summary": "Activate a PayPal subscription", "responses": {"200": {"description": "Upgraded account"}, "400": {"description": "Subscription not active"}, "403": {"description": "Subscription belongs to another account"}, "409": {"description": "A newer subscription event was already applied"}}}
        },
        "/api/create-subscription-session": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Billing"], "summary": "Create Stripe checkout session", "responses": {"200": {"description": "Checkout URL"}, "503": {"description": "Stripe disabled"}}}
        },
        "/api/webhook": {
            "post": {"tags": ["Webhooks"], "summary": "Stripe webhook", "responses": {"200": {"description": "Received"}, "400": {"description": "Invalid signature"}}}
        },
        "/api/webhooks/paypal": {
            "post": {"tags": ["Webhooks"], "summary": "PayPal webhook", "responses": {"200": {"description": "Received"}, "400": {"description": "Invalid signature"}}}
        },
        "/api/admin/users": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "List accounts", "responses": {"200": {"description": "Paginated accounts"}, "403": {"description": "Admin only"}}}
        },
        "/api/admin/chats": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "List conversations", "responses": {"200": {"description": "Paginated conversations"}}}
        },
        "/api/admin/chats/export": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Export conversations to the archive bucket", "responses": {"200": {"description": "Export result"}, "503": {"description": "Archive disabled"}}}
        },
        "/api/admin/activity-logs": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Admin activity log", "responses": {"200": {"description": "Paginated entries"}}}
        }
    },
    "definitions": {
        "dto.RegisterRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "dto.LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "dto.UserDTO": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "role": {"type": "string"},
                "isActive": {"type": "boolean"},
                "messageCount": {"type": "integer"},
                "subscriptionId": {"type": "string"},
                "subscriptionStatus": {"type": "string"},
                "subscriptionProvider": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "dto.AuthResponse": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "user": {"$ref": "#/definitions/dto.UserDTO"}
            }
        },
        "dto.ChatRequest": {
            "type": "object",
            "required": ["message"],
            "properties": {
                "message": {"type": "string"},
                "history": {"type": "array", "items": {"type": "object", "properties": {"role": {"type": "string"}, "content": {"type": "string"}}}}
            }
        },
        "dto.ChatResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "userId": {"type": "integer"},
                "messages": {"type": "array", "items": {"type": "object"}},
                "createdAt": {"type": "string"},
                "remainingMessages": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "NFlow API",
	Description:      "Subscription-gated mental health chat backend.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
