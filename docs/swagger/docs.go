// Package swagger holds the OpenAPI document served at /swagger/.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "QSSAGE Maintainers"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/scan": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["scan"],
                "summary": "Scan a URL decoded from a QR code",
                "parameters": [
                    {
                        "description": "URL to scan",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/app.ScanRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/app.ScanResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/ws/scan": {
            "get": {
                "tags": ["scan"],
                "summary": "Scan a URL and stream state transitions over a websocket",
                "parameters": [
                    {"type": "string", "description": "URL to scan", "name": "url", "in": "query", "required": true},
                    {"type": "string", "description": "Where the code was found", "name": "location", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols", "schema": {"$ref": "#/definitions/server.ScanEvent"}}
                }
            }
        },
        "/report": {
            "get": {
                "produces": ["application/json"],
                "tags": ["report"],
                "summary": "List reports, newest first",
                "parameters": [
                    {"type": "boolean", "description": "Only reports not yet dispatched", "name": "pending", "in": "query"},
                    {"type": "integer", "description": "Maximum number of reports", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/store.ReportRecord"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["report"],
                "summary": "Submit a report manually",
                "parameters": [
                    {
                        "description": "Report",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/server.ReportRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/store.ReportRecord"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/report/{id}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["report"],
                "summary": "Delete a report",
                "parameters": [
                    {"type": "string", "description": "Report ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.OKResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/dispatch/manual": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["dispatch"],
                "summary": "Mail the selected reports to the administrator",
                "parameters": [
                    {
                        "description": "Report IDs",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/server.DispatchRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.DispatchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "503": {"description": "Mail not configured", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/dispatch/backup": {
            "post": {
                "produces": ["application/json"],
                "tags": ["dispatch"],
                "summary": "Export all reports to CSV and PDF",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dispatch.BackupResult"}}
                }
            }
        }
    },
    "definitions": {
        "app.ScanRequest": {
            "type": "object",
            "properties": {
                "url": {"type": "string", "example": "http://203.0.113.7/login"},
                "location": {"type": "string", "example": "Seoul Station exit 2"}
            }
        },
        "app.ScanResult": {
            "type": "object",
            "properties": {
                "scan_id": {"type": "string"},
                "url": {"type": "string"},
                "safe": {"type": "boolean"},
                "risk": {"type": "string", "enum": ["SAFE", "SUSPICIOUS", "DANGEROUS"]},
                "reason": {"type": "string"},
                "assessment": {"type": "object"},
                "chain": {"type": "array", "items": {"type": "string"}},
                "navigation_error": {"type": "string"},
                "report_queued": {"type": "boolean"},
                "elapsed_ms": {"type": "integer"}
            }
        },
        "dispatch.BackupResult": {
            "type": "object",
            "properties": {
                "csv_path": {"type": "string"},
                "pdf_path": {"type": "string"},
                "count": {"type": "integer"},
                "mailed": {"type": "boolean"}
            }
        },
        "server.DispatchRequest": {
            "type": "object",
            "properties": {
                "ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "server.DispatchResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "sent": {"type": "integer"}
            }
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "url is required"}
            }
        },
        "server.LatLng": {
            "type": "object",
            "properties": {
                "lat": {"type": "number", "example": 37.5547},
                "lng": {"type": "number", "example": 126.9707}
            }
        },
        "server.OKResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"}
            }
        },
        "server.ReportRequest": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "note": {"type": "string"},
                "location": {"$ref": "#/definitions/server.LatLng"}
            }
        },
        "server.ScanEvent": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["state", "result", "error"]},
                "scan_id": {"type": "string"},
                "state": {"type": "string"},
                "result": {"$ref": "#/definitions/app.ScanResult"},
                "error": {"type": "string"}
            }
        },
        "store.ReportRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "url": {"type": "string"},
                "location": {"type": "string"},
                "latitude": {"type": "number"},
                "longitude": {"type": "number"},
                "note": {"type": "string"},
                "source": {"type": "string", "enum": ["scan", "manual"]},
                "risk": {"type": "string"},
                "score": {"type": "integer"},
                "reasons": {"type": "array", "items": {"type": "string"}},
                "detected_at": {"type": "string"},
                "dispatched": {"type": "boolean"},
                "dispatched_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "QSSAGE API",
	Description:      "QR-code URL phishing scanner: scan, report and dispatch endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
