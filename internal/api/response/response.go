package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/welldanyogia/ephemera-backend/internal/errors"
	"github.com/welldanyogia/ephemera-backend/internal/signal"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// PostsPage is one page of the post stream. NextCursor is null on the
// last page.
type PostsPage struct {
	Posts      []signal.Signal `json:"posts"`
	NextCursor *string         `json:"nextCursor"`
}

// Success returns a successful response with data
func Success(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// Created returns a 201 Created response
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// Page returns a page of posts
func Page(c echo.Context, posts []signal.Signal, nextCursor *string) error {
	if posts == nil {
		posts = []signal.Signal{}
	}
	return c.JSON(http.StatusOK, PostsPage{Posts: posts, NextCursor: nextCursor})
}

// Error returns an error response with the status of the error's category.
// Internal errors never expose their text.
func Error(c echo.Context, err error) error {
	return c.JSON(apperrors.HTTPStatus(err), ErrorResponse{
		Success: false,
		Error:   apperrors.PublicMessage(err),
		Code:    apperrors.GetErrorCode(err),
	})
}

// BadRequest returns a 400 Bad Request response
func BadRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.CodeInvalidInput,
	})
}

// NotFound returns a 404 Not Found response
func NotFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.CodeNotFound,
	})
}

// InternalError returns a 500 Internal Server Error response
func InternalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.CodeInternalError,
	})
}
