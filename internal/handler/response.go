package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/careflow-api/internal/middleware"
	"github.com/jwalitptl/careflow-api/internal/model"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// OK writes the success envelope with a 200.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

// Created writes the success envelope with a 201.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}

// Fail attaches the error to the context for the error middleware to
// render.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

// FailBinding wraps a binding failure into a validation error.
func FailBinding(c *gin.Context, err error) {
	_ = c.Error(apperrors.NewValidation(err.Error()))
}

// Actor returns the authenticated caller. When auth middleware did not
// run, the request fails as unauthorized.
func Actor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		Fail(c, apperrors.NewAuthorization("authentication required"))
	}
	return actor, ok
}
