package checkout

import (
	"fmt"

	"github.com/craftline/storefront/internal/inventory"
)

// ValidationError covers missing or malformed request fields.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError covers unknown products referenced by the cart.
type NotFoundError struct{ Msg string }

func (e *NotFoundError) Error() string { return e.Msg }

// StockError carries the itemized validator result so the UI can prompt a
// cart correction.
type StockError struct{ Result inventory.CheckResult }

func (e *StockError) Error() string {
	n := 0
	for _, it := range e.Result.Items {
		if !it.Available {
			n++
		}
	}
	return fmt.Sprintf("stock validation failed for %d item(s)", n)
}
