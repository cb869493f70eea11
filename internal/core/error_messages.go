package core

// # Error Codes Reference
//
// This file maps engine errors to operator-facing messages with codes that
// show up in run summaries, the HTTP API and the logs. An operator can quote
// the code when asking why a file stayed in its input folder.
//
// Typed errors are mapped by kind first; anything else falls back to
// case-insensitive pattern matching on the error text.
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Schema registry unavailable: validation is skipped for this run
//	         Action: Check the schema file path and its JSON/YAML syntax
//
// # Classification Errors (CLS001-CLS099)
//
//	CLS001 - No schema matches the file
//	         Action: Rename the file with its type prefix or fix its header row
//
//	CLS002 - Unknown type
//	         Action: Add the type to the schema file or correct the file name
//	         Patterns: "unknown type"
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Column count does not match the schema
//	         Action: Remove extra columns or add the missing ones
//
//	COL002 - Column name does not match the schema
//	         Action: Fix the header at the reported position
//
// # Encoding Errors (ENC001-ENC099)
//
//	ENC001 - File text is corrupted by a wrong encoding
//	         Action: Export the file again as UTF-8
//
// # Date Warnings (DATE001)
//
//	DATE001 - A date value could not be converted and was kept as text
//	          Action: Review the reported cell in the source file
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Empty file
//	FILE002 - Header row missing after skipped rows
//	FILE003 - File could not be read or written
//
// # Transport Errors (UPL001-UPL099)
//
//	UPL001 - Upload to object storage failed
//	         Patterns: "upload"
//	UPL002 - Storage bucket unavailable
//	         Patterns: "bucket"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused: history store unreachable
//	DB002 - Timeout
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Run was cancelled
//	         Patterns: "context canceled"
//	REQ002 - Run timed out
//	         Patterns: "context deadline exceeded"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check the logs for the technical error

import (
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

// kindMessages maps typed engine errors by Kind.
var kindMessages = map[string]UserMessage{
	KindSchemaLoad: {
		Message: "Schema registry unavailable, validation skipped",
		Action:  "Check the schema file path and its JSON/YAML syntax",
		Code:    "SCH001",
	},
	KindClassification: {
		Message: "No schema matches the file",
		Action:  "Rename the file with its type prefix or fix its header row",
		Code:    "CLS001",
	},
	KindColumnCount: {
		Message: "Column count does not match the schema",
		Action:  "Remove extra columns or add the missing ones",
		Code:    "COL001",
	},
	KindColumnName: {
		Message: "Column name does not match the schema",
		Action:  "Fix the header at the reported position",
		Code:    "COL002",
	},
	KindCorruptEncoding: {
		Message: "File text is corrupted by a wrong encoding",
		Action:  "Export the file again as UTF-8",
		Code:    "ENC001",
	},
	KindDateFallback: {
		Message: "A date value could not be converted and was kept as text",
		Action:  "Review the reported cell in the source file",
		Code:    "DATE001",
	},
	KindEmptyFile: {
		Message: "The file is empty",
		Action:  "Export the file again with its header and data rows",
		Code:    "FILE001",
	},
	KindHeaderRow: {
		Message: "Header row missing after skipped rows",
		Action:  "Check filas_omitir and fila_nombres_columna for this type",
		Code:    "FILE002",
	},
	KindIO: {
		Message: "File could not be read or written",
		Action:  "Check that the file is not open elsewhere and the folder is writable",
		Code:    "FILE003",
	},
}

var unknownTypeMessage = UserMessage{
	Message: "Unknown type",
	Action:  "Add the type to the schema file or correct the file name",
	Code:    "CLS002",
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps untyped error text (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "unknown type",
		msg:     unknownTypeMessage,
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Run was cancelled",
			Action:  "Start the run again when ready",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Run timed out",
			Action:  "Try again with fewer input files",
			Code:    "REQ002",
		},
	},
	{
		pattern: "bucket",
		msg: UserMessage{
			Message: "Storage bucket unavailable",
			Action:  "Check the bucket name and credentials",
			Code:    "UPL002",
		},
	},
	{
		pattern: "upload",
		msg: UserMessage{
			Message: "Upload to object storage failed",
			Action:  "Check the storage endpoint, then run again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the history database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the technical error",
	Code:    "ERR000",
}

// MapError converts an error to an operator-facing message. Typed engine
// errors are mapped by Kind; other errors by the first matching pattern.
//
// Example:
//
//	msg := MapError(&ColumnCountError{TypeID: "CLI", Expected: 3, Actual: 2})
//	// msg.Code == "COL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if errors.Is(err, ErrUnknownType) {
		return unknownTypeMessage
	}
	if msg, ok := kindMessages[Kind(err)]; ok {
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

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with its operator-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
