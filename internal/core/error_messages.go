package core

// error_messages.go maps technical errors to user-friendly messages with
// codes for support reference.
//
// # Error Codes Reference
//
// Import errors are resolved by type; infrastructure errors that only reach
// the engine as text are resolved by pattern.
//
//	FILE001  file too large           ErrFileTooLarge
//	FILE003  undecodable text         *DecodeError
//	FILE004  no file in the request   "no file provided"
//	FILE005  empty file               ErrEmptyFile
//	HDR001   header column count      *HeaderColumnCountError
//	HDR002   header names             *HeaderMismatchError
//	ROW001   rejected rows            *RowErrors
//	DUP001   skipped duplicates       *DuplicateCountError
//	UPL002   import busy              ErrImportBusy
//	UPL004   cancelled                context.Canceled
//	UPL005   timed out                context.DeadlineExceeded
//	REQ001   bad query parameter      "invalid query parameter"
//	DB001    duplicate key            "duplicate key"
//	DB003    foreign key              "foreign key constraint", "violates foreign key"
//	DB004    connection refused       "connection refused"
//	DB005    connection reset         "connection reset"
//	DB006    timeout                  "timeout"
//	ERR000   anything else; check the application logs
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

const headerAction = "Use the header Date,Name,Amount,Category,Asset,Note"

var (
	msgFileTooLarge = UserMessage{"File exceeds maximum size limit", "Split the file into smaller chunks", "FILE001"}
	msgDecode       = UserMessage{"File contains characters that could not be read", "Save the file as UTF-8 and try again", "FILE003"}
	msgEmptyFile    = UserMessage{"The file is empty", "Please import a CSV file with a header and data rows", "FILE005"}
	msgHeaderCount  = UserMessage{"The header row has the wrong number of columns", headerAction, "HDR001"}
	msgHeaderNames  = UserMessage{"The header row does not match the expected columns", headerAction, "HDR002"}
	msgRowErrors    = UserMessage{"Some rows could not be imported", "Fix the listed rows and import the file again", "ROW001"}
	msgDuplicates   = UserMessage{"Some rows were already imported and were skipped", "No action needed; the remaining rows were imported", "DUP001"}
	msgBusy         = UserMessage{"Another import is running", "Please wait a moment and try again", "UPL002"}
	msgCanceled     = UserMessage{"Request was cancelled", "Please try again", "UPL004"}
	msgDeadline     = UserMessage{"Request timed out", "Try importing a smaller file or try again later", "UPL005"}
)

// typedMessage resolves errors produced by this package. The aggregate
// import outcomes come first: a RowErrors may wrap any cause.
func typedMessage(err error) (UserMessage, bool) {
	var (
		rowErrs   *RowErrors
		dupErr    *DuplicateCountError
		decodeErr *DecodeError
		countErr  *HeaderColumnCountError
		headerErr *HeaderMismatchError
	)

	switch {
	case errors.As(err, &rowErrs):
		return msgRowErrors, true
	case errors.As(err, &dupErr):
		return msgDuplicates, true
	case errors.Is(err, ErrFileTooLarge):
		return msgFileTooLarge, true
	case errors.As(err, &decodeErr):
		return msgDecode, true
	case errors.Is(err, ErrEmptyFile):
		return msgEmptyFile, true
	case errors.As(err, &countErr):
		return msgHeaderCount, true
	case errors.As(err, &headerErr):
		return msgHeaderNames, true
	case errors.Is(err, ErrImportBusy):
		return msgBusy, true
	case errors.Is(err, context.Canceled):
		return msgCanceled, true
	case errors.Is(err, context.DeadlineExceeded):
		return msgDeadline, true
	}
	return UserMessage{}, false
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns cover errors from the request layer and the database driver.
// "timeout" is last since driver errors embed it in longer messages.
var errorPatterns = []errorPattern{
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV file to import", "FILE004"}},
	{"invalid query parameter", UserMessage{"Invalid query parameter", "Check the request parameters and try again", "REQ001"}},
	{"duplicate key", UserMessage{"A record with this ID already exists", "Please try again", "DB001"}},
	{"foreign key constraint", UserMessage{"Referenced record does not exist", "Ensure the referenced asset or category exists", "DB003"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Ensure the referenced asset or category exists", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try importing a smaller file or try again later", "DB006"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Errors of
// this package are matched by type, anything else by pattern, and the
// ERR000 fallback is returned when neither matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if msg, ok := typedMessage(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
