package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	ErrCustomerNotFound = errors.New("customer not found")
	ErrUnverifiedRoute  = errors.New("routing requires a verified customer")
)
