package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/enrollments"
	"github.com/Othello1111/edx-platform/internal/runtime"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario or validation failure
	ExitCommandError = 2 // Bad arguments, unreadable config, missing database
)

// Error codes reported in JSON error responses.
const (
	ErrCodeNotFound  = "E_NOT_FOUND"
	ErrCodeInvalid   = "E_INVALID"
	ErrCodeConflict  = "E_CONFLICT"
	ErrCodeForbidden = "E_FORBIDDEN"
	ErrCodeInternal  = "E_INTERNAL"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode classifies domain errors for JSON output.
func errorCode(err error) string {
	switch {
	case errors.Is(err, blockstore.ErrBundleNotFound),
		errors.Is(err, blockstore.ErrVersionNotFound),
		errors.Is(err, blockstore.ErrDraftNotFound),
		errors.Is(err, blockstore.ErrDefinitionNotFound),
		errors.Is(err, runtime.ErrBlockNotFound),
		errors.Is(err, runtime.ErrContextNotFound),
		errors.Is(err, runtime.ErrUnknownBlockType),
		errors.Is(err, enrollments.ErrUserNotFound),
		errors.Is(err, enrollments.ErrEnrollmentNotFound):
		return ErrCodeNotFound
	case errors.Is(err, blockstore.ErrDraftExists),
		errors.Is(err, runtime.ErrRevisionChanged),
		errors.Is(err, enrollments.ErrDuplicateUser),
		errors.Is(err, enrollments.ErrDuplicateEnrollment):
		return ErrCodeConflict
	case errors.Is(err, runtime.ErrPermissionDenied):
		return ErrCodeForbidden
	case errors.Is(err, enrollments.ErrInvalidStatus),
		errors.Is(err, enrollments.ErrInvalidEnrollment),
		errors.Is(err, runtime.ErrInvalidFieldValue):
		return ErrCodeInvalid
	}
	return ErrCodeInternal
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope for every command's output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Texter is implemented by results with a human-readable rendering.
type Texter interface {
	Text(w io.Writer)
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	if t, ok := data.(Texter); ok {
		t.Text(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err through the formatter and returns the ExitError the
// command should return.
func (f *OutputFormatter) Fail(code int, message string, err error) error {
	if outErr := f.Error(errorCode(err), fmt.Sprintf("%s: %v", message, err), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(code, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// With JSON output it goes to ErrWriter so stdout stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// newLogger builds the text logger commands hand to the stores and the
// runtime. Verbose forces debug level.
func newLogger(w io.Writer, level slog.Level, verbose bool) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
