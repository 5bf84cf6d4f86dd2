// Package docs registra no swag o documento OpenAPI servido em /swagger.
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
        "/users/register": {
            "post": {
                "tags": ["users"],
                "summary": "Registra um novo operador",
                "parameters": [{"in": "body", "name": "registration", "required": true, "schema": {"$ref": "#/definitions/domain.UserRegistration"}}],
                "responses": {
                    "201": {"description": "Operador criado"},
                    "400": {"description": "Payload inválido", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}},
                    "409": {"description": "Email já cadastrado", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/users/login": {
            "post": {
                "tags": ["users"],
                "summary": "Autentica um operador e retorna um JWT",
                "parameters": [{"in": "body", "name": "credentials", "required": true, "schema": {"$ref": "#/definitions/user.LoginRequest"}}],
                "responses": {
                    "200": {"description": "Token emitido"},
                    "401": {"description": "Credenciais inválidas", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/stock": {
            "get": {
                "tags": ["stock"],
                "summary": "Lista posições de estoque",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "item_id", "type": "integer"},
                    {"in": "query", "name": "size_id", "type": "integer"},
                    {"in": "query", "name": "location_id", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"},
                    {"in": "query", "name": "offset", "type": "integer"}
                ],
                "responses": {"200": {"description": "Posições"}}
            }
        },
        "/stock/{itemId}/{sizeId}/{locationId}": {
            "get": {
                "tags": ["stock"],
                "summary": "Busca uma posição de estoque (com ETag)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "itemId", "type": "integer", "required": true},
                    {"in": "path", "name": "sizeId", "type": "integer", "required": true},
                    {"in": "path", "name": "locationId", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Posição"},
                    "404": {"description": "Posição inexistente", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/stock/adjust": {
            "post": {
                "tags": ["stock"],
                "summary": "Ajusta o estoque (ADD, REMOVE, DAMAGE, REPAIR)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "header", "name": "If-Match", "type": "string"},
                    {"in": "body", "name": "adjustment", "required": true, "schema": {"$ref": "#/definitions/stock.AdjustRequest"}}
                ],
                "responses": {
                    "200": {"description": "Posição ajustada"},
                    "412": {"description": "ETag obsoleta", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}},
                    "422": {"description": "Regra de quantidade violada", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/stock/adjust/batch": {
            "post": {
                "tags": ["stock"],
                "summary": "Ajusta várias posições, cada uma independente",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Todos os itens aplicados"}, "207": {"description": "Resultado parcial"}}
            }
        },
        "/stock/transfer": {
            "post": {
                "tags": ["stock"],
                "summary": "Transfere estoque bom entre locais",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Transferência aplicada"}, "422": {"description": "Estoque insuficiente"}}
            }
        },
        "/stock/reserve": {
            "post": {"tags": ["stock"], "summary": "Reserva quantidade disponível", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Posição"}}}
        },
        "/stock/release": {
            "post": {"tags": ["stock"], "summary": "Libera quantidade reservada", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Posição"}}}
        },
        "/stock/low": {
            "get": {
                "tags": ["stock"],
                "summary": "Posições abaixo do limite com sugestão de reposição",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "threshold", "type": "integer"}],
                "responses": {"200": {"description": "Posições"}}
            }
        },
        "/movements": {
            "get": {
                "tags": ["movements"],
                "summary": "Lê o livro de movimentações",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "item_id", "type": "integer"},
                    {"in": "query", "name": "type", "type": "string"},
                    {"in": "query", "name": "from", "type": "string", "format": "date-time"},
                    {"in": "query", "name": "to", "type": "string", "format": "date-time"},
                    {"in": "query", "name": "cursor", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {"200": {"description": "Página de movimentações"}}
            }
        },
        "/purchase-orders": {
            "get": {
                "tags": ["purchase-orders"],
                "summary": "Lista pedidos de compra",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "status", "type": "string"},
                    {"in": "query", "name": "location_id", "type": "integer"}
                ],
                "responses": {"200": {"description": "Pedidos"}}
            },
            "post": {
                "tags": ["purchase-orders"],
                "summary": "Cria um pedido de compra",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "header", "name": "Idempotency-Key", "type": "string"}],
                "responses": {"201": {"description": "Pedido criado"}, "400": {"description": "Referência inexistente"}}
            }
        },
        "/purchase-orders/batch": {
            "patch": {
                "tags": ["purchase-orders"],
                "summary": "Atualiza vários pedidos, cada um independente",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Todos aplicados"}, "207": {"description": "Resultado parcial"}}
            }
        },
        "/purchase-orders/{id}": {
            "get": {
                "tags": ["purchase-orders"],
                "summary": "Busca um pedido (com ETag)",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}],
                "responses": {"200": {"description": "Pedido"}, "404": {"description": "Pedido inexistente"}}
            },
            "patch": {
                "tags": ["purchase-orders"],
                "summary": "Atualiza departamento e observações de um pedido pendente",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true},
                    {"in": "header", "name": "If-Match", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "Pedido"}, "412": {"description": "ETag obsoleta"}, "428": {"description": "If-Match ausente"}}
            }
        },
        "/purchase-orders/{id}/confirm": {
            "post": {
                "tags": ["purchase-orders"],
                "summary": "Confirma o pedido e dá entrada no estoque (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true},
                    {"in": "header", "name": "If-Match", "type": "string", "required": true},
                    {"in": "header", "name": "Idempotency-Key", "type": "string"}
                ],
                "responses": {"200": {"description": "Pedido confirmado"}, "409": {"description": "Pedido já revisado"}, "412": {"description": "ETag obsoleta"}}
            }
        },
        "/purchase-orders/{id}/deny": {
            "post": {
                "tags": ["purchase-orders"],
                "summary": "Nega o pedido (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true},
                    {"in": "header", "name": "If-Match", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "Pedido negado"}, "409": {"description": "Pedido já revisado"}}
            }
        }
    },
    "definitions": {
        "domain.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 422},
                "category": {"type": "string", "example": "INSUFFICIENT_STOCK"},
                "message": {"type": "string"}
            }
        },
        "domain.UserRegistration": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "name": {"type": "string"}, "password": {"type": "string"}}
        },
        "user.LoginRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "stock.AdjustRequest": {
            "type": "object",
            "properties": {
                "item_id": {"type": "integer"},
                "size_id": {"type": "integer"},
                "location_id": {"type": "integer"},
                "type": {"type": "string", "example": "ADD"},
                "quantity": {"type": "integer"},
                "reason": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo guarda os metadados exportados do documento.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "LastStock API",
	Description:      "Estoque de formas de calçado e pedidos de compra.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
