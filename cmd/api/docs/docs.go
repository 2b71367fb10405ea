// Package docs holds the OpenAPI document served under /swagger.
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
        "/topics": {
            "get": {
                "description": "Returns every topic with the number of questions available",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "quiz"
                ],
                "summary": "List quiz topics",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.TopicsResponse"
                        }
                    },
                    "500": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/options": {
            "get": {
                "description": "Returns the embedding models and similarity metrics a quiz can use",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "quiz"
                ],
                "summary": "List evaluation options",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.OptionsResponse"
                        }
                    }
                }
            }
        },
        "/quiz/start": {
            "post": {
                "description": "Picks questions from a topic and returns a session token for the following calls",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "quiz"
                ],
                "summary": "Start a quiz",
                "parameters": [
                    {
                        "description": "Quiz settings",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.StartQuizRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.StartQuizResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/middleware.ValidationErrorResponse"
                        }
                    },
                    "422": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/quiz/current": {
            "get": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Returns the session summary with the current question, or no question once the quiz is complete",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "quiz"
                ],
                "summary": "Get the current question",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.SessionResponse"
                        }
                    },
                    "401": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/quiz/submit": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Scores the answer against the current question; a question earns at most one point",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "quiz"
                ],
                "summary": "Submit an answer",
                "parameters": [
                    {
                        "description": "Answer",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.SubmitAnswerRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.SubmitAnswerResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/middleware.ValidationErrorResponse"
                        }
                    },
                    "401": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/quiz/next": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "quiz"
                ],
                "summary": "Advance to the next question",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.SessionResponse"
                        }
                    },
                    "401": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/quiz/retry": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Allows another answer to the current question without crediting it twice",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "quiz"
                ],
                "summary": "Retry the current question",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.SessionResponse"
                        }
                    },
                    "401": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/quiz/finish": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Returns the final score and clears the session",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "quiz"
                ],
                "summary": "Finish the quiz",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.FinishQuizResponse"
                        }
                    },
                    "401": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "dto.TopicResponse": {
            "type": "object",
            "properties": {
                "topic": {
                    "type": "string"
                },
                "question_count": {
                    "type": "integer"
                }
            }
        },
        "dto.TopicsResponse": {
            "type": "object",
            "properties": {
                "topics": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.TopicResponse"
                    }
                }
            }
        },
        "dto.ModelOption": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "dimension": {
                    "type": "integer"
                },
                "default": {
                    "type": "boolean"
                }
            }
        },
        "dto.MetricOption": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "threshold": {
                    "type": "number"
                },
                "lower_is_better": {
                    "type": "boolean"
                },
                "default": {
                    "type": "boolean"
                }
            }
        },
        "dto.OptionsResponse": {
            "type": "object",
            "properties": {
                "models": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.ModelOption"
                    }
                },
                "metrics": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.MetricOption"
                    }
                },
                "default_count": {
                    "type": "integer"
                },
                "max_count": {
                    "type": "integer"
                }
            }
        },
        "dto.StartQuizRequest": {
            "type": "object",
            "properties": {
                "topic": {
                    "type": "string"
                },
                "count": {
                    "type": "integer"
                },
                "model": {
                    "type": "string"
                },
                "metric": {
                    "type": "string"
                }
            }
        },
        "dto.SubmitAnswerRequest": {
            "type": "object",
            "properties": {
                "answer": {
                    "type": "string"
                }
            }
        },
        "dto.QuestionResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "prompt": {
                    "type": "string"
                },
                "position": {
                    "type": "integer"
                },
                "total": {
                    "type": "integer"
                }
            }
        },
        "dto.SessionResponse": {
            "type": "object",
            "properties": {
                "session_id": {
                    "type": "string"
                },
                "topic": {
                    "type": "string"
                },
                "state": {
                    "type": "string"
                },
                "index": {
                    "type": "integer"
                },
                "total": {
                    "type": "integer"
                },
                "score": {
                    "type": "integer"
                },
                "model": {
                    "type": "string"
                },
                "metric": {
                    "type": "string"
                },
                "answered": {
                    "type": "boolean"
                },
                "question": {
                    "$ref": "#/definitions/dto.QuestionResponse"
                }
            }
        },
        "dto.StartQuizResponse": {
            "type": "object",
            "properties": {
                "session_token": {
                    "type": "string"
                },
                "expires_at": {
                    "type": "string"
                },
                "session": {
                    "$ref": "#/definitions/dto.SessionResponse"
                }
            }
        },
        "dto.EvaluationResponse": {
            "type": "object",
            "properties": {
                "similarity": {
                    "type": "number"
                },
                "distance": {
                    "type": "number"
                },
                "correct": {
                    "type": "boolean"
                },
                "credited": {
                    "type": "boolean"
                },
                "canonical_answer": {
                    "type": "string"
                },
                "metric": {
                    "type": "string"
                },
                "model": {
                    "type": "string"
                },
                "fallback": {
                    "type": "boolean"
                }
            }
        },
        "dto.SubmitAnswerResponse": {
            "type": "object",
            "properties": {
                "evaluation": {
                    "$ref": "#/definitions/dto.EvaluationResponse"
                },
                "session": {
                    "$ref": "#/definitions/dto.SessionResponse"
                }
            }
        },
        "dto.FinishQuizResponse": {
            "type": "object",
            "properties": {
                "session_id": {
                    "type": "string"
                },
                "topic": {
                    "type": "string"
                },
                "score": {
                    "type": "integer"
                },
                "total": {
                    "type": "integer"
                },
                "completed": {
                    "type": "boolean"
                }
            }
        },
        "domain.ValidationError": {
            "type": "object",
            "properties": {
                "field": {
                    "type": "string"
                },
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "value": {}
            }
        },
        "middleware.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "details": {
                    "type": "object",
                    "additionalProperties": true
                }
            }
        },
        "middleware.ValidationErrorResponse": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "errors": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.ValidationError"
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "description": "Type 'Bearer SESSION_TOKEN' with the token returned by /quiz/start.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8090",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "Quiz Sense API",
	Description:      "Short-answer quizzes scored by semantic similarity between the answer and a reference answer.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
