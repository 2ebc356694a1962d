// Package docs holds the OpenAPI document served under -tags=swagger.
// Regenerate with swag init after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "localchat maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models": {
            "get": {
                "description": "Lists *.gguf files found in the models directory.",
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List model files",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}
                }
            }
        },
        "/model": {
            "post": {
                "description": "Validates the file name, then loads it. Without a locator the name is looked up in the models directory. Loading replaces the current model and clears the conversation.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Select and load a model",
                "parameters": [
                    {"description": "Model to load", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.LoadRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "507": {"description": "Insufficient Storage", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            },
            "delete": {
                "description": "Releases the loaded model and clears the conversation so another model can be picked.",
                "tags": ["models"],
                "summary": "Unload the model",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Session status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        },
        "/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Conversation transcript",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HistoryResponse"}}
                }
            },
            "delete": {
                "tags": ["chat"],
                "summary": "Clear the conversation",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/chat": {
            "post": {
                "description": "Appends the user message, generates a reply and appends it. With stream=true the response is NDJSON.",
                "consumes": ["application/json"],
                "produces": ["application/json", "application/x-ndjson"],
                "tags": ["chat"],
                "summary": "Send a message",
                "parameters": [
                    {"description": "User message", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ChatResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ChatRequest": {
            "type": "object",
            "properties": {
                "stream": {"type": "boolean", "example": true},
                "text": {"type": "string", "example": "Write a haiku about the ocean."}
            }
        },
        "types.ChatResponse": {
            "type": "object",
            "properties": {
                "turn": {"$ref": "#/definitions/types.Turn"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 415},
                "error": {"type": "string", "example": "\"model.bin\" is not a .gguf file"},
                "kind": {"type": "string", "example": "invalid_file_type"}
            }
        },
        "types.HistoryResponse": {
            "type": "object",
            "properties": {
                "turns": {"type": "array", "items": {"$ref": "#/definitions/types.Turn"}}
            }
        },
        "types.LoadRequest": {
            "type": "object",
            "properties": {
                "locator": {"type": "string", "example": "/home/user/models/tinyllama-1.1b-chat.Q4_K_M.gguf"},
                "name": {"type": "string", "example": "tinyllama-1.1b-chat.Q4_K_M.gguf"},
                "size_bytes": {"type": "integer", "example": 668788096}
            }
        },
        "types.LoadedModel": {
            "type": "object",
            "properties": {
                "architecture": {"type": "string", "example": "llama"},
                "context_length": {"type": "integer", "example": 2048},
                "display_size": {"type": "string", "example": "637.81 MB"},
                "locator": {"type": "string", "example": "/home/user/models/tinyllama-1.1b-chat.Q4_K_M.gguf"},
                "model_name": {"type": "string", "example": "TinyLlama"},
                "name": {"type": "string", "example": "tinyllama-1.1b-chat.Q4_K_M.gguf"},
                "size_bytes": {"type": "integer", "example": 668788096},
                "template": {"type": "string", "example": "chatml"}
            }
        },
        "types.ModelFile": {
            "type": "object",
            "properties": {
                "display_size": {"type": "string", "example": "637.81 MB"},
                "mod_time_unix": {"type": "integer", "example": 1700000000},
                "name": {"type": "string", "example": "tinyllama-1.1b-chat.Q4_K_M.gguf"},
                "path": {"type": "string", "example": "/home/user/models/tinyllama-1.1b-chat.Q4_K_M.gguf"},
                "size_bytes": {"type": "integer", "example": 668788096}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "dir": {"type": "string", "example": "~/models/llm"},
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.ModelFile"}}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "budget_mb": {"type": "integer", "example": 8192},
                "engine_built": {"type": "boolean", "example": true},
                "est_mb": {"type": "integer", "example": 894},
                "generations_total": {"type": "integer", "example": 12},
                "inflight": {"type": "integer", "example": 1},
                "max_queue_depth": {"type": "integer", "example": 8},
                "model": {"$ref": "#/definitions/types.LoadedModel"},
                "queue_len": {"type": "integer", "example": 0},
                "reason": {"type": "string"},
                "server_time_unix": {"type": "integer", "example": 1700000000},
                "session_id": {"type": "string", "example": "3f2c1a9e-8d4b-4c7e-9a51-2b6f0e7d1c3a"},
                "state": {"type": "string", "example": "ready"},
                "turns": {"type": "integer", "example": 4},
                "uptime_seconds": {"type": "integer", "example": 3600}
            }
        },
        "types.Turn": {
            "type": "object",
            "properties": {
                "at_unix_ms": {"type": "integer", "example": 1700000000123},
                "role": {"type": "string", "example": "assistant"},
                "seq": {"type": "integer", "example": 2},
                "text": {"type": "string", "example": "Hello! How can I help?"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "localchat API",
	Description:      "HTTP API for chatting with a local GGUF model.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
