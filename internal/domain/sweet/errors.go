package sweet

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("sweet: not found")
	ErrDuplicateName     = errors.New("sweet: a sweet with this name already exists")
	ErrOutOfStock        = errors.New("sweet: out of stock")
	ErrInsufficientStock = errors.New("sweet: insufficient stock")
	ErrValidation        = errors.New("sweet: validation failed")
	ErrStoreUnavailable  = errors.New("sweet: store unavailable")
	// ErrConcurrentChange means the stored record no longer matches the state a write was computed from.
	ErrConcurrentChange = errors.New("sweet: changed concurrently")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sweet: invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// InsufficientStockError reports how much is actually left so callers can retry with less.
type InsufficientStockError struct {
	Available decimal.Decimal
	Unit      Unit
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("sweet: only %s %s available", e.Available.String(), e.Unit)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// StockError explains why a decrement was refused given the stock that is currently stored.
func StockError(available decimal.Decimal, unit Unit) error {
	if !available.IsPositive() {
		return ErrOutOfStock
	}
	return &InsufficientStockError{Available: available, Unit: unit}
}

// Unavailable tags an infrastructure failure so it maps to ErrStoreUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
