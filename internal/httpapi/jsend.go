package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// jsend response envelopes: "success" carries data, "fail" carries a
// client-correctable problem, "error" is a server-side failure.

type jsendSuccess struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type jsendFail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type jsendError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, jsendSuccess{Status: "success", Data: data})
}

func fail(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, jsendFail{Status: "fail", Message: message, Data: data})
}

func failValidation(c echo.Context, fields map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{"fields": fields})
}

func failNotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, jsendError{Status: "error", Message: message})
}
