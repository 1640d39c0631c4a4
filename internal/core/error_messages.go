package core

// error_messages.go maps technical errors to messages users can act on.
//
// Codes by category, quoted by users when they report a problem:
//
//	FILE001 file too large          FILE002 unreadable or unsupported file
//	FILE003 encoding problem        FILE004 no file in the request
//	FILE005 file without data rows
//	VAL001  value cannot be converted to the requested type
//	VAL002  unknown display type    VAL003 malformed request body
//	DATA001 nothing uploaded yet    DATA002 column not in the dataset
//	UPL001  too many uploads        UPL002 request cancelled
//	UPL003  request timed out
//	DB001   storage unreachable     DB002  storage busy
//	RATE001 rate limited
//	ERR000  anything else; check the logs for the technical error

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/dataview/internal/schema"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Reference for support
}

var (
	msgFileTooLarge = UserMessage{
		Message: "The file is larger than the upload limit.",
		Action:  "Split the file or raise UPLOAD_MAX_FILE_SIZE",
		Code:    "FILE001",
	}
	msgBadFile = UserMessage{
		Message: "The file could not be read.",
		Action:  "Upload a comma-separated CSV or an .xlsx workbook",
		Code:    "FILE002",
	}
	msgNoFile = UserMessage{
		Message: "No file was provided.",
		Action:  "Send the file in the multipart field \"file\"",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The file has no data rows.",
		Action:  "Upload a file with a header row and at least one data row",
		Code:    "FILE005",
	}
	msgConversion = UserMessage{
		Message: "Some values cannot be converted to the selected type.",
		Action:  "Pick a type that fits every value in the column",
		Code:    "VAL001",
	}
	msgUnknownType = UserMessage{
		Message: "Unknown column type.",
		Action:  "Use one of: Text, Float, Integer, Date, TimeDelta, Boolean, Category, Complex",
		Code:    "VAL002",
	}
	msgBadRequest = UserMessage{
		Message: "The request body is not valid.",
		Action:  "Send a JSON object such as {\"column_types\": {\"age\": \"Integer\"}}",
		Code:    "VAL003",
	}
	msgNoData = UserMessage{
		Message: "No dataset has been uploaded yet.",
		Action:  "Upload a file first",
		Code:    "DATA001",
	}
	msgUnknownColumn = UserMessage{
		Message: "The column does not exist in the dataset.",
		Action:  "Reload the data and try again",
		Code:    "DATA002",
	}
	msgTooManyUploads = UserMessage{
		Message: "The server is busy processing other uploads.",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}
	msgCancelled = UserMessage{
		Message: "The request was cancelled.",
		Action:  "Please try again",
		Code:    "UPL002",
	}
	msgTimeout = UserMessage{
		Message: "The request timed out.",
		Action:  "Try a smaller file or try again later",
		Code:    "UPL003",
	}
)

// errorPattern maps a lowercase substring of an error to a message. Used
// for errors that arrive from drivers without a sentinel to match.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are tried in order; the first match wins.
var errorPatterns = []errorPattern{
	{"encoding error", UserMessage{
		Message: "The file contains invalid characters.",
		Action:  "Save the file as UTF-8",
		Code:    "FILE003",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to reach the database.",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}},
	{"connection reset", UserMessage{
		Message: "The database connection was interrupted.",
		Action:  "Please try again",
		Code:    "DB001",
	}},
	{"database is locked", UserMessage{
		Message: "The database is busy.",
		Action:  "Please try again",
		Code:    "DB002",
	}},
	{"deadlock", UserMessage{
		Message: "The database is busy.",
		Action:  "Please try again",
		Code:    "DB002",
	}},
	{"timeout", msgTimeout},
	{"rate limit", UserMessage{
		Message: "Too many requests.",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred.",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Known sentinels and error types are matched with errors.Is/As first,
// then the error text is matched case-insensitively against errorPatterns.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var convErr *ConversionError
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return msgFileTooLarge
	case errors.Is(err, ErrNoFile):
		return msgNoFile
	case errors.Is(err, ErrEmptyFile):
		return msgEmptyFile
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, errMalformedFile):
		return msgBadFile
	case errors.As(err, &convErr):
		return msgConversion
	case errors.Is(err, schema.ErrUnknownDisplayType):
		return msgUnknownType
	case errors.Is(err, ErrBadRequest):
		return msgBadRequest
	case errors.Is(err, ErrNoData):
		return msgNoData
	case errors.Is(err, ErrUnknownColumn):
		return msgUnknownColumn
	case errors.Is(err, ErrTooManyUploads):
		return msgTooManyUploads
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
