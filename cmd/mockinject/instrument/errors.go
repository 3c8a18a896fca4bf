// Package instrument - Error type for instrumentation.
//
// Errors include file position (file:line:column) and, where one exists, a
// suggestion for fixing the input.
//
// Example output:
//
//	account.go:12:6: method Deposit has an unsupported receiver
//
//	Suggestion: Declare the receiver as *Account
package instrument

import (
	"fmt"
	"go/token"
)

// InstrumentationError represents an error during instrumentation with
// context.
//
// Fields:
//   - File: Source file path where error occurred
//   - Line: Line number (1-indexed)
//   - Column: Column number (1-indexed)
//   - Message: Human-readable error description
//   - Suggestion: Optional hint for fixing the error
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type InstrumentationError struct {
	File       string // Source file path
	Line       int    // Line number (1-indexed)
	Column     int    // Column number (1-indexed)
	Message    string // Error message
	Suggestion string // Optional suggestion for fixing (empty if none)
}

// Error implements the error interface.
//
// Format: file:line:column: message, followed by the suggestion on its own
// paragraph when one is set.
func (e *InstrumentationError) Error() string {
	result := fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// NewInstrumentationError creates an error positioned at pos.
func NewInstrumentationError(fset *token.FileSet, pos token.Pos, msg string) *InstrumentationError {
	position := fset.Position(pos)
	return &InstrumentationError{
		File:    position.Filename,
		Line:    position.Line,
		Column:  position.Column,
		Message: msg,
	}
}

// NewInstrumentationErrorWithSuggestion creates a positioned error with a
// suggestion.
func NewInstrumentationErrorWithSuggestion(fset *token.FileSet, pos token.Pos, msg, suggestion string) *InstrumentationError {
	err := NewInstrumentationError(fset, pos, msg)
	err.Suggestion = suggestion
	return err
}
