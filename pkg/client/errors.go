package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/SumantSagar73/certify/server/blob"
	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/storage"
	"github.com/SumantSagar73/certify/server/storage/models"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotSignedIn  = errors.New("not signed in")
)

// APIError is a non-2xx response. It unwraps to the matching sentinel.
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("certify: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return certificates.ErrForbidden
	case http.StatusNotFound:
		return storage.ErrNotFound
	case http.StatusConflict:
		return storage.ErrConflict
	case http.StatusRequestEntityTooLarge:
		return blob.ErrTooLarge
	case http.StatusUnprocessableEntity:
		return &models.ValidationError{Field: e.Field, Message: e.Message}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Err   string `json:"err"`
		Field string `json:"field"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Err == "" {
		payload.Err = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: payload.Err, Field: payload.Field}
}
