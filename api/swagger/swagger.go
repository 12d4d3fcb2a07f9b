package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Luminar Sync API",
        "description": "Attendance ledger and SGE reconciliation service",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Attendance", "description": "Local per-period attendance ledger"},
        {"name": "Sync", "description": "Push, verify, delete and inspect remote SGE records"},
        {"name": "Account", "description": "Per-user SGE credentials"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List attendance records for a class over a date range",
                "parameters": [
                    {"name": "class_id", "in": "query", "type": "string", "required": true},
                    {"name": "from", "in": "query", "type": "string", "required": true},
                    {"name": "to", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Attendance"],
                "summary": "Create or replace one period's attendance record",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/{id}": {
            "delete": {
                "tags": ["Attendance"],
                "summary": "Delete one attendance record from the local ledger",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/sync/push": {
            "post": {
                "tags": ["Sync"],
                "summary": "Push pending attendance groups to SGE",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SyncBatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Remote credentials not configured"}
                }
            }
        },
        "/sync/verify": {
            "post": {
                "tags": ["Sync"],
                "summary": "Cross-check local sync markers against SGE",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SyncBatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/delete": {
            "post": {
                "tags": ["Sync"],
                "summary": "Delete remote SGE records for the selected groups",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SyncBatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/status": {
            "get": {
                "tags": ["Sync"],
                "summary": "Derived sync status per group, from local markers only",
                "parameters": [
                    {"name": "class_id", "in": "query", "type": "string", "required": true},
                    {"name": "from", "in": "query", "type": "string", "required": true},
                    {"name": "to", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/divergence": {
            "get": {
                "tags": ["Sync"],
                "summary": "Per-student divergence report for one group",
                "parameters": [
                    {"name": "class_id", "in": "query", "type": "string", "required": true},
                    {"name": "subject_id", "in": "query", "type": "string", "required": true},
                    {"name": "date", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/mappings": {
            "get": {
                "tags": ["Sync"],
                "summary": "Confirmed identity dictionaries for the caller's account",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/account": {
            "get": {
                "tags": ["Account"],
                "summary": "Current sync account, password masked",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Account"],
                "summary": "Store or replace remote credentials",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertAccountRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "UpsertAttendanceRequest": {
            "type": "object",
            "required": ["class_id", "subject_id", "date", "period", "roster"],
            "properties": {
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "date": {"type": "string", "example": "2026-03-10"},
                "period": {"type": "integer", "minimum": 1},
                "roster": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "student_id": {"type": "string"},
                            "student_name": {"type": "string"},
                            "present": {"type": "boolean"},
                            "note": {"type": "string"}
                        }
                    }
                },
                "lesson_notes": {"type": "string"}
            }
        },
        "SyncBatchRequest": {
            "type": "object",
            "required": ["class_id", "from", "to"],
            "properties": {
                "class_id": {"type": "string"},
                "from": {"type": "string", "example": "2026-03-01"},
                "to": {"type": "string", "example": "2026-03-31"}
            }
        },
        "UpsertAccountRequest": {
            "type": "object",
            "required": ["sge_user", "sge_password", "academic_year"],
            "properties": {
                "sge_user": {"type": "string"},
                "sge_password": {"type": "string"},
                "academic_year": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
