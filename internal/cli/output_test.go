package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/enrollments"
	"github.com/Othello1111/edx-platform/internal/runtime"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"bundle": "lib1"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"bundle": "lib1"}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeNotFound, "bundle not found", map[string]string{"slug": "x"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "bundle not found", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

type textResult struct{ n int }

func (r textResult) Text(w io.Writer) { fmt.Fprintf(w, "n=%d\n", r.n) }

func TestOutputFormatter_TextUsesTexter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(textResult{n: 3}))
	assert.Equal(t, "n=3\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success("plain"))
	assert.Equal(t, "plain\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeInvalid, "bad status", "status=foo"))
			assert.Contains(t, buf.String(), "Error [E_INVALID]: bad status")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: status=foo")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail(ExitFailure, "lookup failed", fmt.Errorf("slug x: %w", blockstore.ErrBundleNotFound))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, blockstore.ErrBundleNotFound)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "lookup failed: slug x: bundle not found", resp.Error.Message)
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("loading %s", "a.yaml")
	assert.Empty(t, out.String())
	assert.Equal(t, "loading a.yaml\n", diag.String())

	formatter.Verbose = false
	formatter.VerboseLog("dropped")
	assert.NotContains(t, diag.String(), "dropped")
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{blockstore.ErrDraftNotFound, ErrCodeNotFound},
		{fmt.Errorf("x: %w", runtime.ErrBlockNotFound), ErrCodeNotFound},
		{enrollments.ErrUserNotFound, ErrCodeNotFound},
		{enrollments.ErrDuplicateEnrollment, ErrCodeConflict},
		{blockstore.ErrDraftExists, ErrCodeConflict},
		{runtime.ErrRevisionChanged, ErrCodeConflict},
		{runtime.ErrPermissionDenied, ErrCodeForbidden},
		{enrollments.ErrInvalidStatus, ErrCodeInvalid},
		{errors.New("disk full"), ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("x")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad"))))
}

func TestNewLogger_VerboseForcesDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	newLogger(buf, slog.LevelWarn, false).Info("hidden")
	assert.Empty(t, buf.String())

	newLogger(buf, slog.LevelWarn, true).Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}
