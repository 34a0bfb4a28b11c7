// Package swagger holds the OpenAPI description of the HTTP bridge.
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
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "in": "header",
            "name": "X-API-Key"
        }
    },
    "security": [
        {
            "ApiKeyAuth": []
        }
    ],
    "paths": {
        "/sync": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Full sync",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Device books",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/model.BookRecord"
                            }
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                }
            }
        },
        "/sync/books": {
            "get": {
                "tags": [
                    "sync"
                ],
                "summary": "List device books",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Device books",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/model.BookRecord"
                            }
                        }
                    }
                }
            }
        },
        "/sync/books/{id}": {
            "get": {
                "tags": [
                    "sync"
                ],
                "summary": "Get one device book",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Device book",
                        "schema": {
                            "$ref": "#/definitions/model.BookRecord"
                        }
                    },
                    "404": {
                        "description": "Unknown book",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "integer"
                    }
                ]
            }
        },
        "/sync/summary": {
            "get": {
                "tags": [
                    "sync"
                ],
                "summary": "Match quality counts",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Summary",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/sync/app": {
            "get": {
                "tags": [
                    "sync"
                ],
                "summary": "Reader app version",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "App info",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "500": {
                        "description": "Unreadable preferences",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                }
            }
        },
        "/sync/plan": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Preview metadata writes",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Plan",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "ids",
                                "direction"
                            ],
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                },
                                "direction": {
                                    "type": "string",
                                    "enum": [
                                        "export",
                                        "import"
                                    ]
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/metadata/export": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Export library metadata to the device",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch report",
                        "schema": {
                            "$ref": "#/definitions/syncer.BatchReport"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "409": {
                        "description": "Device busy or cancelled",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "504": {
                        "description": "App did not answer",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "ids"
                            ],
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/metadata/import": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Import device metadata into the library",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch report",
                        "schema": {
                            "$ref": "#/definitions/syncer.BatchReport"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "409": {
                        "description": "Device busy or cancelled",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "504": {
                        "description": "App did not answer",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "ids"
                            ],
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/collections": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Update device collections",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch report",
                        "schema": {
                            "$ref": "#/definitions/syncer.BatchReport"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "409": {
                        "description": "Device busy or cancelled",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "504": {
                        "description": "App did not answer",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "ids",
                                "mode"
                            ],
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                },
                                "mode": {
                                    "type": "string",
                                    "enum": [
                                        "export",
                                        "import",
                                        "synchronize",
                                        "clear"
                                    ]
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/collections/maintenance": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Rename or delete a device collection",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch report",
                        "schema": {
                            "$ref": "#/definitions/syncer.BatchReport"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "409": {
                        "description": "Device busy or cancelled",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "504": {
                        "description": "App did not answer",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "action",
                                "name"
                            ],
                            "properties": {
                                "action": {
                                    "type": "string",
                                    "enum": [
                                        "rename",
                                        "delete"
                                    ]
                                },
                                "name": {
                                    "type": "string"
                                },
                                "new_name": {
                                    "type": "string"
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/flags/set": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Set reading flags",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch report",
                        "schema": {
                            "$ref": "#/definitions/syncer.BatchReport"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "409": {
                        "description": "Device busy or cancelled",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "504": {
                        "description": "App did not answer",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "ids",
                                "mask"
                            ],
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                },
                                "mask": {
                                    "type": "integer",
                                    "minimum": 1,
                                    "maximum": 7
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/flags/clear": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Clear reading flags",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch report",
                        "schema": {
                            "$ref": "#/definitions/syncer.BatchReport"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "409": {
                        "description": "Device busy or cancelled",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "504": {
                        "description": "App did not answer",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "ids",
                                "mask"
                            ],
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                },
                                "mask": {
                                    "type": "integer",
                                    "minimum": 1,
                                    "maximum": 7
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/books/delete": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Delete books from the device",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch report",
                        "schema": {
                            "$ref": "#/definitions/syncer.BatchReport"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "409": {
                        "description": "Device busy or cancelled",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "504": {
                        "description": "App did not answer",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "ids"
                            ],
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/annotations": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Fetch device highlights",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch report",
                        "schema": {
                            "$ref": "#/definitions/syncer.BatchReport"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "409": {
                        "description": "Device busy or cancelled",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "504": {
                        "description": "App did not answer",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "ids"
                            ],
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/deepview": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Generate Deep View content",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch report",
                        "schema": {
                            "$ref": "#/definitions/syncer.BatchReport"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "409": {
                        "description": "Device busy or cancelled",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "504": {
                        "description": "App did not answer",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "ids"
                            ],
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/deepview/order": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Set the Deep View sort order",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch report",
                        "schema": {
                            "$ref": "#/definitions/syncer.BatchReport"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "409": {
                        "description": "Device busy or cancelled",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "500": {
                        "description": "Sync failure",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    },
                    "504": {
                        "description": "App did not answer",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "required": [
                                "ids",
                                "order"
                            ],
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                },
                                "order": {
                                    "type": "string"
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/sync/disconnect": {
            "post": {
                "tags": [
                    "sync"
                ],
                "summary": "Drop the session state",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "204": {
                        "description": "Disconnected"
                    }
                }
            }
        },
        "/integrity": {
            "get": {
                "tags": [
                    "integrity"
                ],
                "summary": "Run All Integrity Checks",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Combined Report",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/integrity/device": {
            "get": {
                "tags": [
                    "integrity"
                ],
                "summary": "Check Device Folders",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Missing folders",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "500": {
                        "description": "Device unavailable",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "fix",
                        "type": "boolean"
                    }
                ]
            }
        },
        "/integrity/files": {
            "get": {
                "tags": [
                    "integrity"
                ],
                "summary": "Check App Files",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "File reports",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "500": {
                        "description": "Device unavailable",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                }
            }
        },
        "/integrity/library": {
            "get": {
                "tags": [
                    "integrity"
                ],
                "summary": "Check Library Schema",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Library report",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "500": {
                        "description": "Library unavailable",
                        "schema": {
                            "$ref": "#/definitions/Error"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "Error": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "string"
                }
            }
        },
        "syncer.BatchReport": {
            "type": "object",
            "properties": {
                "succeeded": {
                    "type": "array",
                    "items": {
                        "type": "integer"
                    }
                },
                "failed": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                },
                "warnings": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "model.BookRecord": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "title": {
                    "type": "string"
                },
                "authors": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "uuid": {
                    "type": "string"
                },
                "content_hash": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                },
                "calibre_id": {
                    "type": "integer"
                },
                "collections": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "flags": {
                    "type": "integer"
                },
                "match_quality": {
                    "type": "string",
                    "enum": [
                        "green",
                        "yellow",
                        "orange",
                        "red",
                        "white"
                    ]
                },
                "metadata_mismatches": {
                    "type": "object"
                },
                "matches": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "marvin-sync API",
	Description:      "Matches Marvin reader books against a calibre library and drives the app command exchange.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
