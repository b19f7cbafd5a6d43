// Package swagger registers the OpenAPI description of the JSON API served
// under /swagger. Keep it in step with the annotations on the handlers in
// internal/posting.
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
		"/postings": {
			"get": {
				"description": "Returns every posting, newest first, with freshly issued image URLs.",
				"produces": [
					"application/json"
				],
				"tags": [
					"postings"
				],
				"summary": "List postings",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/response.Envelope"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "array",
											"items": {
												"$ref": "#/definitions/posting.Posting"
											}
										}
									}
								}
							]
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			},
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"description": "Creates a posting with 1 to 10 images.",
				"consumes": [
					"multipart/form-data"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"postings"
				],
				"summary": "Create posting",
				"parameters": [
					{
						"type": "string",
						"description": "Title (max 255 characters)",
						"name": "title",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Description (max 5000 characters)",
						"name": "description",
						"in": "formData"
					},
					{
						"type": "file",
						"description": "Images (JPEG, PNG, GIF or WebP, max 5MB each, at most 10)",
						"name": "images[]",
						"in": "formData",
						"required": true
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/response.Envelope"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/posting.createdPostingData"
										}
									}
								}
							]
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"422": {
						"description": "Unprocessable Entity",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			}
		},
		"/postings/{id}": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"postings"
				],
				"summary": "Get posting",
				"parameters": [
					{
						"type": "integer",
						"description": "Posting ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/response.Envelope"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/posting.Posting"
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			},
			"put": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"description": "Replaces title and description, deletes the listed images and then adds the new ones.",
				"consumes": [
					"multipart/form-data"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"postings"
				],
				"summary": "Update posting",
				"parameters": [
					{
						"type": "integer",
						"description": "Posting ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"description": "Title (max 255 characters)",
						"name": "title",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Description (max 5000 characters)",
						"name": "description",
						"in": "formData"
					},
					{
						"type": "file",
						"description": "Images (JPEG, PNG, GIF or WebP, max 5MB each, at most 10)",
						"name": "images[]",
						"in": "formData",
						"required": false
					},
					{
						"type": "array",
						"items": {
							"type": "integer"
						},
						"collectionFormat": "multi",
						"description": "Image IDs to delete",
						"name": "delete_images[]",
						"in": "formData"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/response.Envelope"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/posting.Posting"
										}
									}
								}
							]
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"422": {
						"description": "Unprocessable Entity",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"description": "Deletes the posting, its images and their stored objects.",
				"produces": [
					"application/json"
				],
				"tags": [
					"postings"
				],
				"summary": "Delete posting",
				"parameters": [
					{
						"type": "integer",
						"description": "Posting ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			}
		},
		"/postings/{id}/images": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"multipart/form-data"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"postings"
				],
				"summary": "Add images to posting",
				"parameters": [
					{
						"type": "integer",
						"description": "Posting ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "file",
						"description": "Images (JPEG, PNG, GIF or WebP, max 5MB each, at most 10)",
						"name": "images[]",
						"in": "formData",
						"required": true
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/response.Envelope"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/posting.addedImagesData"
										}
									}
								}
							]
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"422": {
						"description": "Unprocessable Entity",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"postings"
				],
				"summary": "Delete all posting images",
				"parameters": [
					{
						"type": "integer",
						"description": "Posting ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/response.Envelope"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/posting.deletedImagesData"
										}
									}
								}
							]
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			}
		},
		"/postings/{id}/images/{imageId}": {
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"description": "Deletes one image through its posting. Images of other postings are rejected with 403.",
				"produces": [
					"application/json"
				],
				"tags": [
					"postings"
				],
				"summary": "Delete posting image",
				"parameters": [
					{
						"type": "integer",
						"description": "Posting ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"description": "Image ID",
						"name": "imageId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			}
		},
		"/gallery": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"gallery"
				],
				"summary": "List gallery images",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/response.Envelope"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "array",
											"items": {
												"$ref": "#/definitions/posting.Image"
											}
										}
									}
								}
							]
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			},
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"description": "Stores one image that belongs to no posting.",
				"consumes": [
					"multipart/form-data"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"gallery"
				],
				"summary": "Upload gallery image",
				"parameters": [
					{
						"type": "string",
						"description": "Title (max 255 characters)",
						"name": "title",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Description (max 5000 characters)",
						"name": "description",
						"in": "formData"
					},
					{
						"type": "file",
						"description": "Image",
						"name": "image",
						"in": "formData",
						"required": true
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/response.Envelope"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/posting.Image"
										}
									}
								}
							]
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"422": {
						"description": "Unprocessable Entity",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			}
		},
		"/gallery/{id}": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"gallery"
				],
				"summary": "Get gallery image",
				"parameters": [
					{
						"type": "integer",
						"description": "Image ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/response.Envelope"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/posting.Image"
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"gallery"
				],
				"summary": "Delete gallery image",
				"parameters": [
					{
						"type": "integer",
						"description": "Image ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/response.Envelope"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"response.Envelope": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"message": {
					"type": "string"
				},
				"data": {},
				"errors": {
					"type": "object",
					"additionalProperties": {
						"type": "array",
						"items": {
							"type": "string"
						}
					}
				}
			}
		},
		"posting.Image": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer",
					"example": 7
				},
				"posting_id": {
					"type": "integer",
					"x-nullable": true
				},
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"path": {
					"type": "string"
				},
				"url": {
					"type": "string"
				},
				"original_name": {
					"type": "string"
				},
				"mime_type": {
					"type": "string",
					"example": "image/jpeg"
				},
				"size": {
					"type": "integer"
				},
				"created_at": {
					"type": "string"
				},
				"updated_at": {
					"type": "string"
				}
			}
		},
		"posting.Posting": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer",
					"example": 3
				},
				"title": {
					"type": "string",
					"example": "Trip"
				},
				"description": {
					"type": "string"
				},
				"created_at": {
					"type": "string"
				},
				"updated_at": {
					"type": "string"
				},
				"images": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/posting.Image"
					}
				}
			}
		},
		"posting.imageSummary": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer",
					"example": 7
				},
				"path": {
					"type": "string",
					"example": "images/posting-3/1700000000_a.jpg"
				},
				"url": {
					"type": "string",
					"example": "https://s3.example.com/gallery/images/posting-3/1700000000_a.jpg"
				},
				"original_name": {
					"type": "string",
					"example": "a.jpg"
				}
			}
		},
		"posting.createdPostingData": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer",
					"example": 3
				},
				"title": {
					"type": "string",
					"example": "Trip"
				},
				"description": {
					"type": "string",
					"example": ""
				},
				"images": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/posting.imageSummary"
					}
				}
			}
		},
		"posting.addedImagesData": {
			"type": "object",
			"properties": {
				"posting_id": {
					"type": "integer",
					"example": 3
				},
				"images": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/posting.imageSummary"
					}
				}
			}
		},
		"posting.deletedImagesData": {
			"type": "object",
			"properties": {
				"deleted": {
					"type": "integer",
					"example": 4
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and the JWT token. Only required when JWT_SECRET is set.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Gallery API",
	Description:      "Postings with images kept in object storage.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
