// Package swagger 注册 /swagger/doc.json 的 OpenAPI 文档
// handler 上的 @Router 注释变化后用 swag init -g cmd/wallet-server/main.go -o docs/swagger 重新生成
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
		"/joint/requests": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Joint"
				],
				"summary": "发起联合签名请求",
				"parameters": [
					{
						"description": "request",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/request.CreateSignRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Response"
						}
					}
				},
				"consumes": [
					"application/json"
				]
			}
		},
		"/joint/requests/{id}": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Joint"
				],
				"summary": "查询联合签名请求",
				"parameters": [
					{
						"type": "string",
						"description": "id",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Response"
						}
					}
				}
			}
		},
		"/joint/requests/{id}/responses": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Joint"
				],
				"summary": "参与者答复 (签名或拒绝)",
				"parameters": [
					{
						"type": "string",
						"description": "id",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "request",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/request.SignResponseRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Response"
						}
					}
				},
				"consumes": [
					"application/json"
				]
			}
		},
		"/joint/requests/{id}/aggregate": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Joint"
				],
				"summary": "聚合已完成的请求",
				"parameters": [
					{
						"type": "string",
						"description": "id",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Response"
						}
					}
				}
			}
		},
		"/transactions/build": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Transaction"
				],
				"summary": "构建并编码交易",
				"parameters": [
					{
						"description": "request",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/request.DraftRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Response"
						}
					}
				},
				"consumes": [
					"application/json"
				]
			}
		},
		"/transactions/submit": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Transaction"
				],
				"summary": "提交已签名的交易组",
				"parameters": [
					{
						"description": "request",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/request.SubmitRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Response"
						}
					}
				},
				"consumes": [
					"application/json"
				]
			}
		},
		"/transactions/execute": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Transaction"
				],
				"summary": "构建、签名并提交",
				"parameters": [
					{
						"description": "request",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/request.ExecuteRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Response"
						}
					}
				},
				"consumes": [
					"application/json"
				]
			}
		},
		"/hardware/sessions/{txid}": {
			"delete": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Hardware"
				],
				"summary": "取消进行中的硬件签名会话",
				"parameters": [
					{
						"type": "string",
						"description": "txid",
						"name": "txid",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Response"
						}
					}
				}
			}
		},
		"/monitors": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Monitor"
				],
				"summary": "注册资产状态观察",
				"parameters": [
					{
						"description": "request",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/request.RegisterMonitorRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Response"
						}
					}
				},
				"consumes": [
					"application/json"
				]
			}
		},
		"/monitors/{txid}": {
			"delete": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Monitor"
				],
				"summary": "取消交易的观察",
				"parameters": [
					{
						"type": "string",
						"description": "txid",
						"name": "txid",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Response"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"response.Response": {
			"type": "object",
			"properties": {
				"code": {
					"type": "integer"
				},
				"msg": {
					"type": "string"
				},
				"data": {}
			}
		},
		"request.DraftRequest": {
			"type": "object",
			"required": [
				"kind",
				"sender"
			],
			"properties": {
				"kind": {
					"type": "string",
					"enum": [
						"value_transfer",
						"asset_transfer",
						"asset_opt_in",
						"asset_opt_out",
						"asset_removal",
						"key_registration"
					]
				},
				"sender": {
					"type": "string"
				},
				"receiver": {
					"type": "string"
				},
				"amount": {
					"type": "string",
					"example": "1.5"
				},
				"asset_id": {
					"type": "integer"
				},
				"asset_decimals": {
					"type": "integer",
					"maximum": 19,
					"minimum": 0
				},
				"note": {
					"type": "string"
				},
				"locked_note": {
					"type": "string"
				},
				"close_to": {
					"type": "string"
				},
				"opt_in_top_up": {
					"type": "boolean"
				},
				"max_amount": {
					"type": "boolean"
				},
				"vote_key": {
					"type": "string"
				},
				"selection_key": {
					"type": "string"
				},
				"state_proof_key": {
					"type": "string"
				},
				"vote_first": {
					"type": "integer"
				},
				"vote_last": {
					"type": "integer"
				},
				"key_dilution": {
					"type": "integer"
				},
				"offline": {
					"type": "boolean"
				}
			}
		},
		"request.KeyRequest": {
			"type": "object",
			"required": [
				"type"
			],
			"properties": {
				"type": {
					"type": "string",
					"enum": [
						"local",
						"hd",
						"hardware"
					]
				},
				"address": {
					"type": "string"
				},
				"wallet_id": {
					"type": "string"
				},
				"account": {
					"type": "integer"
				},
				"change": {
					"type": "integer"
				},
				"index": {
					"type": "integer"
				},
				"device_name": {
					"type": "string"
				},
				"account_index": {
					"type": "integer"
				}
			}
		},
		"request.ExecuteRequest": {
			"type": "object",
			"properties": {
				"draft": {
					"$ref": "#/definitions/request.DraftRequest"
				},
				"key": {
					"$ref": "#/definitions/request.KeyRequest"
				}
			}
		},
		"request.SubmitRequest": {
			"type": "object",
			"required": [
				"transactions"
			],
			"properties": {
				"transactions": {
					"type": "array",
					"items": {
						"type": "string",
						"format": "byte"
					}
				}
			}
		},
		"request.CreateSignRequest": {
			"type": "object",
			"required": [
				"participants",
				"proposer",
				"threshold",
				"transaction"
			],
			"properties": {
				"proposer": {
					"type": "string"
				},
				"participants": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"threshold": {
					"type": "integer",
					"minimum": 1
				},
				"deadline": {
					"type": "string",
					"format": "date-time"
				},
				"transaction": {
					"type": "string",
					"format": "byte"
				}
			}
		},
		"request.SignResponseRequest": {
			"type": "object",
			"required": [
				"participant"
			],
			"properties": {
				"participant": {
					"type": "string"
				},
				"signed": {
					"type": "boolean"
				},
				"signature": {
					"type": "string",
					"format": "byte"
				}
			}
		},
		"request.RegisterMonitorRequest": {
			"type": "object",
			"required": [
				"account",
				"asset_id",
				"transition",
				"tx_id"
			],
			"properties": {
				"account": {
					"type": "string"
				},
				"asset_id": {
					"type": "integer"
				},
				"transition": {
					"type": "string",
					"enum": [
						"opt_in",
						"opt_out"
					]
				},
				"tx_id": {
					"type": "string"
				}
			}
		}
	}
}`

// SwaggerInfo 服务信息，Host 可在启动时覆盖
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Wallet Signer API",
	Description:      "Algorand build / sign / submit pipeline",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
