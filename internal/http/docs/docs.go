// Package docs registers the OpenAPI document served by /swagger.
// Keep it in sync with the godoc annotations on internal/http/handlers.
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
        "/requests": {
            "post": {
                "description": "Validates the submission, issues a protocol and computes the base deadline. A repeated Idempotency-Key replays the original protocol.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Citizen"],
                "summary": "Submit a records request",
                "operationId": "submitRequest",
                "parameters": [
                    {"type": "string", "description": "Client retry key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Submission", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SubmitRequestBody"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.SubmitResponse"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/requests/{protocol}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Citizen"],
                "summary": "Look up a request by protocol",
                "operationId": "lookupRequest",
                "parameters": [{"type": "string", "description": "Protocol", "name": "protocol", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.RequestSummary"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/requests/{protocol}/appeals": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Citizen"],
                "summary": "File an appeal (citizen)",
                "operationId": "citizenAppeal",
                "parameters": [
                    {"type": "string", "description": "Protocol", "name": "protocol", "in": "path", "required": true},
                    {"description": "Appeal", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.FileAppealBody"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Appeal"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/requests": {
            "get": {
                "description": "Supports weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "List requests (paginated)",
                "operationId": "listRequests",
                "parameters": [
                    {"type": "string", "description": "Status filter", "name": "status", "in": "query"},
                    {"type": "string", "description": "Text search", "name": "q", "in": "query"},
                    {"type": "integer", "description": "Page (1-based)", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListRequestsResponse"}},
                    "304": {"description": "Not modified"},
                    "400": {"description": "Bad filter", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/requests/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Request detail",
                "operationId": "getRequest",
                "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.RequestDetail"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/requests/{id}/events": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Audit trail of a request",
                "operationId": "requestEvents",
                "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.EventsResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/requests/{id}/start": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Mark a pending request as in progress",
                "operationId": "startProcessing",
                "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Request"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/requests/{id}/responses": {
            "post": {
                "description": "kind=extension_requested extends the deadline once; any other kind answers the request.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Record a staff response",
                "operationId": "recordResponse",
                "parameters": [
                    {"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true},
                    {"description": "Response", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RecordResponseBody"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.RecordResponseResult"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/requests/{id}/archive": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Archive a responded request",
                "operationId": "archiveRequest",
                "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Request"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/requests/{id}/appeals": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "File an appeal (staff)",
                "operationId": "fileAppeal",
                "parameters": [
                    {"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true},
                    {"description": "Appeal", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.FileAppealBody"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Appeal"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/appeals/{id}/decision": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Decide an open appeal",
                "operationId": "decideAppeal",
                "parameters": [
                    {"type": "string", "description": "Appeal ID", "name": "id", "in": "path", "required": true},
                    {"description": "Decision", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.DecideAppealBody"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Appeal"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Already decided", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/statistics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Dashboard statistics",
                "operationId": "getStatistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Statistics"}}
                }
            }
        },
        "/admin/reports/requests.xlsx": {
            "get": {
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["Admin"],
                "summary": "Spreadsheet export",
                "operationId": "exportRequests",
                "parameters": [
                    {"type": "string", "description": "Status filter", "name": "status", "in": "query"},
                    {"type": "string", "description": "Search text", "name": "q", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Workbook", "schema": {"type": "file"}},
                    "400": {"description": "Bad filter", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string"},
                "field": {"type": "string", "example": "requester.email"}
            }
        },
        "handlers.RequesterBody": {
            "type": "object",
            "required": ["name", "email"],
            "properties": {
                "name": {"type": "string", "example": "Maria da Silva"},
                "email": {"type": "string", "example": "maria@example.org"},
                "phone": {"type": "string"},
                "document": {"type": "string", "example": "123.456.789-09"}
            }
        },
        "handlers.SubmitRequestBody": {
            "type": "object",
            "required": ["subject", "description"],
            "properties": {
                "requester": {"$ref": "#/definitions/handlers.RequesterBody"},
                "subject": {"type": "string"},
                "description": {"type": "string"},
                "receipt_channel": {"type": "string", "enum": ["email", "in_person", "mail"]}
            }
        },
        "handlers.SubmitResponse": {
            "type": "object",
            "properties": {
                "protocol": {"type": "string", "example": "ESIC-2024-000001"},
                "submitted_at": {"type": "string", "format": "date-time"},
                "base_deadline": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.RecordResponseBody": {
            "type": "object",
            "required": ["kind", "content"],
            "properties": {
                "kind": {"type": "string", "enum": ["granted", "partially_granted", "denied", "information_not_held", "forwarded", "extension_requested"]},
                "content": {"type": "string"},
                "legal_basis": {"type": "string", "example": "Art. 23, VIII"}
            }
        },
        "handlers.RecordResponseResult": {
            "type": "object",
            "properties": {
                "response": {"$ref": "#/definitions/domain.Response"},
                "request": {"$ref": "#/definitions/domain.Request"}
            }
        },
        "handlers.FileAppealBody": {
            "type": "object",
            "required": ["reason"],
            "properties": {
                "reason": {"type": "string"},
                "instance": {"type": "integer", "minimum": 1, "maximum": 3}
            }
        },
        "handlers.DecideAppealBody": {
            "type": "object",
            "required": ["decision", "rationale"],
            "properties": {
                "decision": {"type": "string", "enum": ["granted", "partially_granted", "denied"]},
                "rationale": {"type": "string"}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "has_next": {"type": "boolean"}
            }
        },
        "handlers.ListRequestsResponse": {
            "type": "object",
            "properties": {
                "requests": {"type": "array", "items": {"$ref": "#/definitions/services.RequestListItem"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.EventsResponse": {
            "type": "object",
            "properties": {
                "events": {"type": "array", "items": {"$ref": "#/definitions/domain.RequestEvent"}}
            }
        },
        "deadline.ForRequest": {
            "type": "object",
            "properties": {
                "effective_deadline": {"type": "string", "format": "date-time"},
                "days_remaining": {"type": "integer"},
                "near_deadline": {"type": "boolean"},
                "overdue": {"type": "boolean"}
            }
        },
        "services.ResponseView": {
            "type": "object",
            "properties": {
                "kind": {"type": "string"},
                "content": {"type": "string"},
                "legal_basis": {"type": "string"},
                "responded_at": {"type": "string", "format": "date-time"}
            }
        },
        "services.AppealView": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "instance": {"type": "integer"},
                "reason": {"type": "string"},
                "filed_at": {"type": "string", "format": "date-time"},
                "decision": {"type": "string"},
                "decision_rationale": {"type": "string"},
                "decided_at": {"type": "string", "format": "date-time"}
            }
        },
        "services.RequestSummary": {
            "type": "object",
            "properties": {
                "protocol": {"type": "string"},
                "subject": {"type": "string"},
                "receipt_channel": {"type": "string"},
                "status": {"type": "string"},
                "submitted_at": {"type": "string", "format": "date-time"},
                "base_deadline": {"type": "string", "format": "date-time"},
                "extended_deadline": {"type": "string", "format": "date-time"},
                "responded_at": {"type": "string", "format": "date-time"},
                "deadline": {"$ref": "#/definitions/deadline.ForRequest"},
                "responses": {"type": "array", "items": {"$ref": "#/definitions/services.ResponseView"}},
                "appeals": {"type": "array", "items": {"$ref": "#/definitions/services.AppealView"}}
            }
        },
        "services.RequestListItem": {
            "type": "object",
            "allOf": [{"$ref": "#/definitions/domain.Request"}],
            "properties": {
                "deadline": {"$ref": "#/definitions/deadline.ForRequest"}
            }
        },
        "services.RequestDetail": {
            "type": "object",
            "allOf": [{"$ref": "#/definitions/domain.Request"}],
            "properties": {
                "deadline": {"$ref": "#/definitions/deadline.ForRequest"},
                "responses": {"type": "array", "items": {"$ref": "#/definitions/domain.Response"}},
                "appeals": {"type": "array", "items": {"$ref": "#/definitions/domain.Appeal"}}
            }
        },
        "services.Statistics": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "count_by_status": {"type": "object", "additionalProperties": {"type": "integer"}},
                "response_rate": {"type": "number"},
                "near_deadline_count": {"type": "integer"},
                "overdue_count": {"type": "integer"},
                "open_appeals": {"type": "integer"},
                "responses_by_kind": {"type": "object", "additionalProperties": {"type": "integer"}},
                "generated_at": {"type": "string", "format": "date-time"}
            }
        },
        "domain.Request": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "protocol": {"type": "string"},
                "requester_name": {"type": "string"},
                "requester_email": {"type": "string"},
                "requester_phone": {"type": "string"},
                "requester_document": {"type": "string"},
                "subject": {"type": "string"},
                "description": {"type": "string"},
                "receipt_channel": {"type": "string", "enum": ["email", "in_person", "mail"]},
                "status": {"type": "string", "enum": ["pending", "in_progress", "responded", "extension_requested", "under_appeal", "archived"]},
                "submitted_at": {"type": "string", "format": "date-time"},
                "base_deadline": {"type": "string", "format": "date-time"},
                "extended_deadline": {"type": "string", "format": "date-time"},
                "responded_at": {"type": "string", "format": "date-time"},
                "archived_at": {"type": "string", "format": "date-time"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "domain.Response": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "request_id": {"type": "string"},
                "kind": {"type": "string"},
                "content": {"type": "string"},
                "legal_basis": {"type": "string"},
                "responder_id": {"type": "string"},
                "responded_at": {"type": "string", "format": "date-time"},
                "created_at": {"type": "string", "format": "date-time"}
            }
        },
        "domain.Appeal": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "request_id": {"type": "string"},
                "instance": {"type": "integer"},
                "reason": {"type": "string"},
                "filed_at": {"type": "string", "format": "date-time"},
                "decision": {"type": "string", "enum": ["granted", "partially_granted", "denied"]},
                "decision_rationale": {"type": "string"},
                "decided_at": {"type": "string", "format": "date-time"},
                "decided_by": {"type": "string"}
            }
        },
        "domain.RequestEvent": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "request_id": {"type": "string"},
                "event": {"type": "string"},
                "from_status": {"type": "string"},
                "to_status": {"type": "string"},
                "actor_id": {"type": "string"},
                "note": {"type": "string"},
                "at": {"type": "string", "format": "date-time"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "e-SIC API",
	Description:      "Records requests under the Access to Information Law: submission, deadlines, responses and appeals.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
