// Package docs registra el documento swagger del API en swag, para que
// http-swagger lo sirva en /swagger/doc.json.
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
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"Bearer": []}],
    "paths": {
        "/health": {
            "get": {"summary": "Liveness", "responses": {"200": {"description": "ok"}}}
        },
        "/access/{ownerID}": {
            "get": {
                "tags": ["access"],
                "summary": "Resolve the caller's access state against an owner",
                "parameters": [{"$ref": "#/parameters/ownerID"}],
                "responses": {
                    "200": {"description": "state", "schema": {"$ref": "#/definitions/AccessState"}},
                    "400": {"description": "viewer equals owner"},
                    "503": {"description": "store unavailable"}
                }
            }
        },
        "/access/{ownerID}/requests": {
            "post": {
                "tags": ["access"],
                "summary": "Request access to an owner's private media",
                "parameters": [
                    {"$ref": "#/parameters/ownerID"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRequest"}}
                ],
                "responses": {
                    "201": {"description": "pending request", "schema": {"$ref": "#/definitions/AccessRequest"}},
                    "400": {"description": "invalid duration or scope"},
                    "409": {"description": "pending request or active grant already exists"},
                    "429": {"description": "too many requests"}
                }
            }
        },
        "/access/grants": {
            "post": {
                "tags": ["access"],
                "summary": "Grant access directly, without a request",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GrantAccess"}}],
                "responses": {"201": {"description": "grant", "schema": {"$ref": "#/definitions/AccessGrant"}}}
            }
        },
        "/access-requests/{requestID}/approve": {
            "post": {
                "tags": ["access"],
                "summary": "Approve a pending request (owner)",
                "parameters": [{"$ref": "#/parameters/requestID"}],
                "responses": {
                    "200": {"description": "approved request and its grant"},
                    "403": {"description": "caller is not the owner"},
                    "404": {"description": "no pending request with that id"}
                }
            }
        },
        "/access-requests/{requestID}/deny": {
            "post": {
                "tags": ["access"],
                "summary": "Deny a pending request (owner)",
                "parameters": [{"$ref": "#/parameters/requestID"}],
                "responses": {"200": {"description": "denied request", "schema": {"$ref": "#/definitions/AccessRequest"}}}
            }
        },
        "/access-requests/{requestID}/cancel": {
            "post": {
                "tags": ["access"],
                "summary": "Cancel an own pending request (requester)",
                "parameters": [{"$ref": "#/parameters/requestID"}],
                "responses": {"200": {"description": "cancelled request", "schema": {"$ref": "#/definitions/AccessRequest"}}}
            }
        },
        "/grants/{grantID}/revoke": {
            "post": {
                "tags": ["access"],
                "summary": "Revoke a grant (owner)",
                "parameters": [{"name": "grantID", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "revoked grant", "schema": {"$ref": "#/definitions/AccessGrant"}}}
            }
        },
        "/me/grants/active": {
            "get": {"tags": ["access"], "summary": "Active grants given by the caller", "responses": {"200": {"description": "grants"}}}
        },
        "/me/grants/received": {
            "get": {"tags": ["access"], "summary": "Active grants received by the caller", "responses": {"200": {"description": "grants"}}}
        },
        "/me/access-requests": {
            "get": {
                "tags": ["access"],
                "summary": "Requests addressed to the caller, newest first",
                "parameters": [{"name": "status", "in": "query", "type": "string", "enum": ["pending", "approved", "denied", "cancelled"]}],
                "responses": {"200": {"description": "requests"}}
            }
        },
        "/me/access-requests/outgoing": {
            "get": {"tags": ["access"], "summary": "Requests made by the caller", "responses": {"200": {"description": "requests"}}}
        },
        "/media": {
            "post": {
                "tags": ["media"],
                "summary": "Register a photo or video by URL",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterMedia"}}],
                "responses": {"201": {"description": "media item"}}
            }
        },
        "/media/{mediaID}": {
            "get": {
                "tags": ["media"],
                "summary": "Get one media item (private items need an active grant covering its kind)",
                "parameters": [{"name": "mediaID", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "media item"}, "403": {"description": "locked"}}
            }
        },
        "/me/media": {
            "get": {"tags": ["media"], "summary": "The caller's media", "responses": {"200": {"description": "items"}}}
        },
        "/users/{ownerID}/media": {
            "get": {
                "tags": ["media"],
                "summary": "Gallery of an owner as seen by the caller (content, waiting or locked)",
                "parameters": [{"$ref": "#/parameters/ownerID"}],
                "responses": {"200": {"description": "gallery view"}}
            }
        },
        "/shares": {
            "post": {
                "tags": ["shares"],
                "summary": "Send a private album or portfolio share",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateShare"}}],
                "responses": {
                    "201": {"description": "share"},
                    "400": {"description": "caps exceeded (12 photos, 3 videos) or invalid input"},
                    "403": {"description": "media not owned by the sender"},
                    "429": {"description": "portfolio share limit reached"}
                }
            }
        },
        "/shares/{shareID}": {
            "get": {
                "tags": ["shares"],
                "summary": "Get a share (sender or target)",
                "parameters": [{"name": "shareID", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "share"}}
            }
        },
        "/shares/{shareID}/revoke": {
            "post": {
                "tags": ["shares"],
                "summary": "Revoke a share (sender)",
                "parameters": [{"name": "shareID", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "share"}}
            }
        },
        "/me/shares/received": {
            "get": {"tags": ["shares"], "summary": "Active shares received by the caller", "responses": {"200": {"description": "shares"}}}
        },
        "/me/shares/sent": {
            "get": {"tags": ["shares"], "summary": "Shares sent by the caller", "responses": {"200": {"description": "shares"}}}
        },
        "/realtime": {
            "get": {"tags": ["realtime"], "summary": "Websocket stream of change events for the caller", "responses": {"101": {"description": "switching protocols"}}}
        }
    },
    "parameters": {
        "ownerID": {"name": "ownerID", "in": "path", "required": true, "type": "string"},
        "requestID": {"name": "requestID", "in": "path", "required": true, "type": "string"}
    },
    "definitions": {
        "AccessState": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "enum": ["none", "pending", "active"]},
                "request": {"$ref": "#/definitions/AccessRequest"},
                "grant": {"$ref": "#/definitions/AccessGrant"}
            }
        },
        "CreateRequest": {
            "type": "object",
            "required": ["duration"],
            "properties": {
                "duration": {"type": "string", "enum": ["5m", "1h", "always"]},
                "scope": {"type": "string", "enum": ["photos", "videos", "all"]},
                "message": {"type": "string", "maxLength": 500}
            }
        },
        "GrantAccess": {
            "type": "object",
            "required": ["viewer_id", "duration"],
            "properties": {
                "viewer_id": {"type": "string"},
                "duration": {"type": "string", "enum": ["5m", "1h", "always"]},
                "scope": {"type": "string", "enum": ["photos", "videos", "all"]}
            }
        },
        "AccessRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "requester_id": {"type": "string"},
                "owner_id": {"type": "string"},
                "duration": {"type": "string"},
                "scope": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "approved", "denied", "cancelled"]},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"},
                "decided_at": {"type": "string", "format": "date-time"}
            }
        },
        "AccessGrant": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "viewer_id": {"type": "string"},
                "owner_id": {"type": "string"},
                "scope": {"type": "string"},
                "status": {"type": "string", "enum": ["active", "expired", "revoked"]},
                "expires_at": {"type": "string", "format": "date-time", "x-nullable": true},
                "request_id": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"},
                "revoked_at": {"type": "string", "format": "date-time"}
            }
        },
        "RegisterMedia": {
            "type": "object",
            "required": ["kind", "url"],
            "properties": {
                "kind": {"type": "string", "enum": ["photo", "video"]},
                "url": {"type": "string"},
                "caption": {"type": "string", "maxLength": 280},
                "private": {"type": "boolean"}
            }
        },
        "CreateShare": {
            "type": "object",
            "required": ["target_id", "duration", "media_ids"],
            "properties": {
                "target_id": {"type": "string"},
                "kind": {"type": "string", "enum": ["private_album", "portfolio"]},
                "scope": {"type": "string", "enum": ["photos", "videos", "all"]},
                "duration": {"type": "string", "enum": ["5m", "1h", "always"]},
                "media_ids": {"type": "array", "items": {"type": "string"}, "maxItems": 15},
                "message": {"type": "string", "maxLength": 500}
            }
        }
    }
}`

// SwaggerInfo se puede ajustar en runtime (host, basePath) antes de servir.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "media-access API",
	Description:      "Access requests, grants and direct shares for private media.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
