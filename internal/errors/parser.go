package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo is a parsed, client-safe rendering of a low-level error
type ErrorInfo struct {
	Code    string
	Message string
}

// IsDuplicateKey reports whether err is a unique-constraint violation.
// Covers postgres ("duplicate key value violates unique constraint") and
// the sqlite driver used in tests ("UNIQUE constraint failed").
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique constraint failed")
}

// ParseError converts a low-level error into a client-safe code and message.
// Sensitive internals stay out of the response; the raw error goes to the log.
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{Code: InternalServerError, Message: "An internal error occurred"}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{Code: ResourceNotFound, Message: notFoundMessage(context)}
	}

	if IsDuplicateKey(err) {
		return duplicateKeyInfo(err.Error())
	}

	msg := strings.ToLower(err.Error())

	// foreign key violations
	if strings.Contains(msg, "foreign key constraint") {
		return ErrorInfo{Code: ResourceNotFound, Message: "A referenced record does not exist"}
	}

	// connectivity problems with the database or blob store
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout") {
		return ErrorInfo{
			Code:    InternalStorageError,
			Message: "A backing service is unreachable. Please try again later",
		}
	}

	return ErrorInfo{Code: InternalServerError, Message: defaultMessage(context)}
}

// ParseAndRespond parses a low-level error and writes the standard error body.
func ParseAndRespond(c interface{ JSON(int, interface{}) }, statusCode int, err error, context string) {
	errorInfo := ParseError(err, context)
	c.JSON(statusCode, ErrorResponse{
		Error:   errorInfo.Code,
		Message: errorInfo.Message,
	})
}

func duplicateKeyInfo(errStr string) ErrorInfo {
	errLower := strings.ToLower(errStr)

	if strings.Contains(errLower, "id_number") {
		return ErrorInfo{
			Code:    VerificationDuplicateIDNumber,
			Message: "This ID number has already been submitted",
		}
	}
	if strings.Contains(errLower, "email") {
		return ErrorInfo{
			Code:    AuthEmailAlreadyExists,
			Message: "This email is already registered",
		}
	}
	return ErrorInfo{
		Code:    ResourceAlreadyExists,
		Message: "A record with the same value already exists",
	}
}

func notFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "submission") || strings.Contains(contextLower, "verification") {
		return "Submission not found"
	}
	if strings.Contains(contextLower, "user") {
		return "User not found"
	}
	return "The requested record was not found"
}

func defaultMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "create") || strings.Contains(contextLower, "submit") {
		return "Submission failed. Please try again later"
	}
	if strings.Contains(contextLower, "update") || strings.Contains(contextLower, "transition") {
		return "Update failed. Please try again later"
	}
	return "An internal error occurred. Please try again later"
}
