package switchboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/sagarc03/switchboard/filesystem"
)

// ErrorResponse is the JSON body of every error the server generates.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError sends a JSON error response.
func WriteError(c *Context, status int, code, message string) error {
	body, err := json.Marshal(ErrorResponse{Error: code, Message: message})
	if err != nil {
		return fmt.Errorf("encode error response: %w", err)
	}
	c.Response.StatusCode = status
	c.Response.ContentType = "application/json"
	return c.Response.Send(body)
}

// WriteJSON sends v as a JSON response with the given status.
func WriteJSON(c *Context, status int, v any) error {
	c.Response.StatusCode = status
	return c.Response.SendJSON(v)
}

// HandleError maps err onto an error response.
func HandleError(c *Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return WriteError(c, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, ErrInvalidInput), errors.Is(err, filesystem.ErrInvalidPath):
		return WriteError(c, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, ErrUnauthorized):
		return WriteError(c, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		return WriteError(c, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
