// Package docs registers the settlement-core OpenAPI spec with swaggo/swag
// so internal/api can serve it through swaggo/http-swagger, the way the
// teacher's docs package is imported purely for its init side effect.
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
        "/orders": {
            "post": {
                "summary": "Create an order",
                "responses": {
                    "201": { "description": "created" }
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "summary": "Fetch an order",
                "responses": {
                    "200": { "description": "ok" }
                }
            },
            "patch": {
                "summary": "Advance an order through its lifecycle",
                "responses": {
                    "200": { "description": "ok" }
                }
            }
        },
        "/orders/{id}/escrow": {
            "post": {
                "summary": "Lock escrow for an order",
                "responses": {
                    "200": { "description": "ok" }
                }
            },
            "patch": {
                "summary": "Release escrow for an order",
                "responses": {
                    "200": { "description": "ok" }
                }
            }
        },
        "/orders/{id}/dispute": {
            "post": {
                "summary": "Open a dispute on an order",
                "responses": {
                    "201": { "description": "created" }
                }
            }
        },
        "/reconciliation": {
            "get": {
                "summary": "Compare stored balances against ledger-derived balances",
                "responses": {
                    "200": { "description": "ok" }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported settlement-core Swagger metadata.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "settlementcore API",
	Description:      "P2P crypto/fiat settlement lifecycle, escrow, ledger, and dispute API.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
