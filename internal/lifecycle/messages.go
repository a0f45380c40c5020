package lifecycle

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
)

// UserMessage renders err the way an operator should read it. Insufficient
// stock names the material and both quantities.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var stockErr *model.InsufficientStockError
	var rejected *model.OrderCreationRejectedError
	var failed *model.TransitionFailedError
	switch {
	case errors.As(err, &stockErr):
		return fmt.Sprintf("Not enough %s in stock: %s required, %s available. Purchase more before starting production.",
			stockErr.Label(), stockErr.Required.String(), stockErr.Available.String())
	case errors.Is(err, model.ErrInsufficientStock):
		return "Not enough raw material in stock to start production."
	case errors.Is(err, model.ErrBomNotDefined):
		return "This product has no components defined. Define its bill of materials first."
	case errors.As(err, &rejected):
		return "Failed to create production order: " + rejected.Message
	case errors.Is(err, ErrActionInFlight):
		return "Please wait for the current request on this order to finish."
	case errors.Is(err, ErrInvalidCommand):
		return err.Error()
	case errors.Is(err, model.ErrInvalidTransition):
		return "This order can no longer perform that action. Its current status has been reloaded."
	case errors.As(err, &failed) && failed.Action == model.ActionComplete:
		return "Error completing production: " + failed.Message
	case errors.As(err, &failed):
		return "Failed to start production: " + failed.Message
	case errors.Is(err, model.ErrNotFound):
		return "Production order not found."
	}
	return "Request failed: " + err.Error()
}
