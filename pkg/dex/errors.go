package dex

import "errors"

// Error kinds for every rejection path. Callers distinguish them with
// errors.Is; the API layer maps each kind to its own HTTP status.
var (
	// ErrValidation covers malformed input caught at the gateway boundary.
	// Requests failing validation never reach the book or the store.
	ErrValidation = errors.New("invalid request")

	// Book rejections.
	ErrNotFound           = errors.New("order not found")
	ErrNotOwner           = errors.New("not the order owner")
	ErrDuplicateID        = errors.New("duplicate order id")
	ErrInsufficientAmount = errors.New("reduction exceeds order amount")

	// Execute rejections.
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientLiquidity = errors.New("requested amount exceeds remaining order amount")
	ErrInsufficientFunds     = errors.New("buyer balance below required payment")
	ErrInsufficientAsset     = errors.New("seller balance below requested amount")

	// ErrOracleUnavailable is returned when the balance oracle cannot be
	// reached. The book is never mutated in that case, so execute may be
	// retried as-is.
	ErrOracleUnavailable = errors.New("balance oracle unavailable")

	// Persistence failures. A mutation whose save fails is rolled back and
	// reported with ErrPersistence; a book file that exists but cannot be
	// decoded is ErrCorruptState and is never silently replaced.
	ErrPersistence  = errors.New("order book persistence failed")
	ErrCorruptState = errors.New("order book file corrupt")
)
