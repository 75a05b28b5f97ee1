package errors

import "fmt"

// ErrorCode represents a phishlabel error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrInvalidState   ErrorCode = "INVALID_STATE"   // 409
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrNoInput        ErrorCode = "NO_INPUT"        // 404
	ErrMalformedRow   ErrorCode = "MALFORMED_ROW"   // 422
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// LabelError represents a structured error with code, status, and details.
type LabelError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *LabelError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *LabelError {
	return &LabelError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidState creates a 409 error for an action the session cannot take in its current state.
func NewInvalidState(state, action string) *LabelError {
	return &LabelError{
		Code:    ErrInvalidState,
		Status:  409,
		Message: fmt.Sprintf("cannot %s while %s", action, state),
		Details: map[string]any{"state": state, "action": action},
	}
}

// NewNotFound creates a 404 error for a missing entity.
func NewNotFound(identifier string) *LabelError {
	return &LabelError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error when an input file does not exist.
func NewFileNotFound(path string) *LabelError {
	return &LabelError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNoInput creates a 404 error when no progress files exist in a directory.
func NewNoInput(dir string) *LabelError {
	return &LabelError{
		Code:    ErrNoInput,
		Status:  404,
		Message: fmt.Sprintf("no annotation progress files found in %s", dir),
		Details: map[string]any{"dir": dir},
	}
}

// NewMalformedRow creates a 422 error for a row whose value cannot be coerced.
// Row numbers are 1-based and count the header line, matching what a spreadsheet shows.
func NewMalformedRow(file string, row int, column, value string) *LabelError {
	return &LabelError{
		Code:    ErrMalformedRow,
		Status:  422,
		Message: fmt.Sprintf("%s: row %d: invalid %s value %q", file, row, column, value),
		Details: map[string]any{"file": file, "row": row, "column": column, "value": value},
	}
}

// NewCancelled creates an error for an operation stopped by context cancellation.
func NewCancelled(op string) *LabelError {
	return &LabelError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *LabelError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &LabelError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a LabelError with the given code.
func Is(err error, code ErrorCode) bool {
	if lErr, ok := err.(*LabelError); ok {
		return lErr.Code == code
	}
	return false
}
