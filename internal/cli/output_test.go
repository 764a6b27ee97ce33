package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/matchstick/internal/errs"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"id": "save-0001"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("insufficient_funds", "purchase rejected", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "insufficient_funds", resp.Error.Code)
	assert.Equal(t, "purchase rejected", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"need": "50", "have": "12"}
	err := formatter.Error(ErrCodeGeneric, "rejected", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("Balance valid")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Balance valid")
}

type greeting string

func (g greeting) WriteText(w io.Writer) { fmt.Fprintf(w, "hello %s\n", string(g)) }

func TestOutputFormatter_TextSuccessUsesTextWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(greeting("world")))
	assert.Equal(t, "hello world\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("not_found", "save not found", map[string]string{"id": "x"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [not_found]")
	assert.Contains(t, buf.String(), "save not found")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("not_found", "save not found", map[string]string{"id": "x"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    buf,
				ErrWriter: errBuf,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Loading %s", "save-0001")

			assert.Empty(t, buf.String())
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "Loading save-0001")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	cause := errs.Validation(errs.CodeInsufficientFunds, "not enough money", "need", "50")
	err := formatter.Fail(ExitFailure, "buy_auto_clicker rejected", cause)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, cause)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "insufficient_funds", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "buy_auto_clicker rejected")
	assert.NotNil(t, resp.Error.Details)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", errs.Validation(errs.CodeNotFound, "missing"), "not_found"},
		{"wrapped validation", fmt.Errorf("load: %w", errs.Validation(errs.CodeInvalidAmount, "zero")), "invalid_amount"},
		{"integrity", &errs.IntegrityError{RecordID: "save-1", Want: "a", Got: "b"}, ErrCodeIntegrity},
		{"transient", errs.Transient("save", errors.New("disk full")), ErrCodeStorage},
		{"other", errors.New("boom"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	plain := NewExitError(ExitCommandError, "bad flag")
	assert.Equal(t, "bad flag", plain.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(plain))

	cause := errors.New("no such file")
	wrapped := WrapExitError(ExitFailure, "failed to read", cause)
	assert.Equal(t, "failed to read: no such file", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("unclassified")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("outer: %w", plain)))
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    ErrCodeBalance,
		Message: "1 problem(s) in balance.yaml",
		Details: []string{"new_game.auto_sell.percentage: invalid value"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, ErrCodeBalance, decoded.Code)
	assert.Equal(t, "1 problem(s) in balance.yaml", decoded.Message)
}
