package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Response codes. The HTTP status of an error response is code/100.
const (
	CodeOK                = 0
	CodeValidation        = 40000
	CodeUnauthorized      = 40100
	CodeNotFound          = 40400
	CodeInvalidTransition = 40900
	CodeInsufficientStock = 42201
	CodeBomNotDefined     = 42202
	CodeInternal          = 50000
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var (
	ErrValidation                 = errors.New("validation failed")
	ErrNotFound                   = errors.New("not found")
	ErrInvalidTransition          = errors.New("invalid order transition")
	ErrInsufficientStock          = errors.New("insufficient stock")
	ErrBomNotDefined              = errors.New("bill of materials not defined")
	ErrOrderCreationRejected      = errors.New("production order rejected")
	ErrProductionStartFailed      = errors.New("production start failed")
	ErrProductionCompletionFailed = errors.New("production completion failed")
)

// InsufficientStockError names the first material that cannot cover its requirement.
type InsufficientStockError struct {
	MaterialID   int64           `json:"materialId"`
	MaterialName string          `json:"materialName,omitempty"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: required %s, available %s",
		e.Label(), e.Required.String(), e.Available.String())
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Label is the material name when known, otherwise its id.
func (e *InsufficientStockError) Label() string {
	if e.MaterialName != "" {
		return e.MaterialName
	}
	return fmt.Sprintf("material #%d", e.MaterialID)
}

// OrderCreationRejectedError keeps the backend's message verbatim.
type OrderCreationRejectedError struct {
	Message string
}

func (e *OrderCreationRejectedError) Error() string {
	return "production order rejected: " + e.Message
}

func (e *OrderCreationRejectedError) Is(target error) bool {
	return target == ErrOrderCreationRejected
}

// TransitionFailedError is a start/complete failure without a more specific cause.
type TransitionFailedError struct {
	Action  Action
	Message string
}

func (e *TransitionFailedError) Error() string {
	return fmt.Sprintf("%s production failed: %s", e.Action, e.Message)
}

func (e *TransitionFailedError) Is(target error) bool {
	switch e.Action {
	case ActionStart:
		return target == ErrProductionStartFailed
	case ActionComplete:
		return target == ErrProductionCompletionFailed
	}
	return false
}

// APIError is any other coded failure reported by the backend.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch e.Code {
	case CodeValidation:
		return target == ErrValidation
	case CodeNotFound:
		return target == ErrNotFound
	case CodeInvalidTransition:
		return target == ErrInvalidTransition
	}
	return false
}

// ErrorFromResponse rebuilds the typed error a backend response describes.
func ErrorFromResponse(status int, resp ErrorResponse) error {
	switch resp.Code {
	case CodeInsufficientStock:
		var detail InsufficientStockError
		if len(resp.Data) > 0 && json.Unmarshal(resp.Data, &detail) == nil {
			return &detail
		}
		return fmt.Errorf("%w: %s", ErrInsufficientStock, resp.Message)
	case CodeBomNotDefined:
		return fmt.Errorf("%w: %s", ErrBomNotDefined, resp.Message)
	}
	return &APIError{Status: status, Code: resp.Code, Message: resp.Message}
}
