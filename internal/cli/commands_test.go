package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/matchstick/internal/config"
	"github.com/roach88/matchstick/internal/game"
	"github.com/roach88/matchstick/internal/persistence"
)

// response mirrors CLIResponse with the payload left raw.
type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// execute runs the root command against db and returns stdout.
func execute(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func executeJSON(t *testing.T, db string, args ...string) (response, error) {
	t.Helper()
	out, err := execute(t, db, append(args, "--format", "json")...)
	var resp response
	if out != "" {
		require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	}
	return resp, err
}

func decodeData(t *testing.T, resp response, v any) {
	t.Helper()
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "matchstick.db")
}

func listSaves(t *testing.T, db string) []persistence.Info {
	t.Helper()
	resp, err := executeJSON(t, db, "saves", "list")
	require.NoError(t, err)
	var list []persistence.Info
	decodeData(t, resp, &list)
	return list
}

func TestInvoke_ProduceThenStatus(t *testing.T) {
	db := tempDB(t)

	resp, err := executeJSON(t, db, "invoke", "produce", "--args", `{"clicks": 1}`)
	require.NoError(t, err)
	var res InvokeResult
	decodeData(t, resp, &res)
	assert.Equal(t, "produce", res.Action)
	assert.Equal(t, "1", res.Result["produced"])
	assert.Contains(t, res.Notifications, "Achievement unlocked: First Match")
	assert.NotEmpty(t, res.SaveID)

	resp, err = executeJSON(t, db, "status")
	require.NoError(t, err)
	var sum game.Summary
	decodeData(t, resp, &sum)
	assert.Equal(t, "1", sum.Matchsticks)
	assert.Equal(t, "1", sum.TotalProduced)
	assert.Equal(t, 1, sum.Achievements)
}

func TestInvoke_TextOutput(t *testing.T) {
	out, err := execute(t, tempDB(t), "invoke", "produce")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ produce")
	assert.Contains(t, out, "produced: 1")
	assert.Contains(t, out, "saved as ")
}

func TestInvoke_RejectedActionLeavesSavesUntouched(t *testing.T) {
	db := tempDB(t)

	resp, err := executeJSON(t, db, "invoke", "sell", "--args", `{"amount": 5}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "insufficient_resources", resp.Error.Code)

	assert.Empty(t, listSaves(t, db))
}

func TestInvoke_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown action", []string{"invoke", "juggle"}},
		{"malformed args", []string{"invoke", "produce", "--args", "{clicks"}},
		{"wrong argument type", []string{"invoke", "buy_facility", "--args", `{"id": 7}`}},
		{"missing action", []string{"invoke"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tempDB(t), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestNew_CreatesManualSave(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, db, "invoke", "produce")
	require.NoError(t, err)

	resp, err := executeJSON(t, db, "new", "--name", "Fresh start")
	require.NoError(t, err)
	var info persistence.Info
	decodeData(t, resp, &info)
	assert.Equal(t, "Fresh start", info.Name)
	assert.False(t, info.IsAutoSave)

	list := listSaves(t, db)
	require.Len(t, list, 2)
	assert.Equal(t, info.ID, list[0].ID, "newest first")

	resp, err = executeJSON(t, db, "status")
	require.NoError(t, err)
	var sum game.Summary
	decodeData(t, resp, &sum)
	assert.Equal(t, "0", sum.Matchsticks)
}

func TestSaves_ShowAndDelete(t *testing.T) {
	db := tempDB(t)
	resp, err := executeJSON(t, db, "new", "--name", "Keep")
	require.NoError(t, err)
	var info persistence.Info
	decodeData(t, resp, &info)

	resp, err = executeJSON(t, db, "saves", "show", info.ID)
	require.NoError(t, err)
	var detail SaveDetail
	decodeData(t, resp, &detail)
	assert.Equal(t, info.ID, detail.Info.ID)
	assert.Equal(t, info.Checksum, detail.Info.Checksum)

	out, err := execute(t, db, "saves", "show", info.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Keep")
	assert.Contains(t, out, "manual")

	_, err = executeJSON(t, db, "saves", "delete", info.ID)
	require.NoError(t, err)
	assert.Empty(t, listSaves(t, db))

	resp, err = executeJSON(t, db, "saves", "show", info.ID)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)

	resp, err = executeJSON(t, db, "saves", "delete", info.ID)
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestSaves_ListEmptyText(t *testing.T) {
	out, err := execute(t, tempDB(t), "saves", "list")
	require.NoError(t, err)
	assert.Equal(t, "No saves.\n", out)
}

func TestExportImport_RoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			src, dst := tempDB(t), tempDB(t)
			_, err := execute(t, src, "new", "--name", "Exported")
			require.NoError(t, err)
			_, err = execute(t, dst, "new", "--name", "Replaced")
			require.NoError(t, err)

			bundle := filepath.Join(t.TempDir(), "saves.bundle")
			args := []string{"export", bundle}
			if compress {
				args = append(args, "--compress")
			}
			resp, err := executeJSON(t, src, args...)
			require.NoError(t, err)
			var exported TransferResult
			decodeData(t, resp, &exported)
			assert.Equal(t, 1, exported.Saves)

			resp, err = executeJSON(t, dst, "import", bundle)
			require.NoError(t, err)
			var imported TransferResult
			decodeData(t, resp, &imported)
			assert.Equal(t, 1, imported.Saves)

			list := listSaves(t, dst)
			require.Len(t, list, 1)
			assert.Equal(t, "Exported", list[0].Name)
		})
	}
}

func TestExport_Stdout(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, db, "new")
	require.NoError(t, err)

	out, err := execute(t, db, "export", "-")
	require.NoError(t, err)

	b, err := persistence.ReadBundle(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, persistence.BundleFormat, b.Format)
	assert.Len(t, b.Saves, 1)
}

func TestImport_RejectsInvalidBundle(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, db, "new", "--name", "Survivor")
	require.NoError(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"format":"something-else","version":1}`), 0o644))

	resp, err := executeJSON(t, db, "import", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_bundle", resp.Error.Code)

	list := listSaves(t, db)
	require.Len(t, list, 1)
	assert.Equal(t, "Survivor", list[0].Name)
}

func TestImport_MissingFile(t *testing.T) {
	_, err := execute(t, tempDB(t), "import", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBalanceShow(t *testing.T) {
	out, err := execute(t, tempDB(t), "balance", "show")
	require.NoError(t, err)
	assert.Equal(t, string(config.DefaultYAML()), out)
}

func TestBalanceValidate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.yaml")
	require.NoError(t, os.WriteFile(valid, config.DefaultYAML(), 0o644))
	invalid := filepath.Join(dir, "invalid.yaml")
	broken := strings.Replace(string(config.DefaultYAML()), "percentage: 50", "percentage: 150", 1)
	require.NoError(t, os.WriteFile(invalid, []byte(broken), 0o644))

	t.Run("built-in", func(t *testing.T) {
		out, err := execute(t, tempDB(t), "balance", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "✓ built-in")
	})

	t.Run("valid file", func(t *testing.T) {
		resp, err := executeJSON(t, tempDB(t), "balance", "validate", valid)
		require.NoError(t, err)
		var report BalanceReport
		decodeData(t, resp, &report)
		assert.Equal(t, valid, report.Path)
		assert.NotZero(t, report.Achievements)
	})

	t.Run("balance flag", func(t *testing.T) {
		out, err := execute(t, tempDB(t), "--balance", valid, "balance", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, valid)
	})

	t.Run("invalid file", func(t *testing.T) {
		resp, err := executeJSON(t, tempDB(t), "balance", "validate", invalid)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeBalance, resp.Error.Code)
		details, err := json.Marshal(resp.Error.Details)
		require.NoError(t, err)
		assert.Contains(t, string(details), "percentage")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, tempDB(t), "balance", "validate", filepath.Join(dir, "missing.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestStatus_UsesBalanceFlag(t *testing.T) {
	_, err := execute(t, tempDB(t), "--balance", filepath.Join(t.TempDir(), "missing.yaml"), "status")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPlay_ShortSessionAutosaves(t *testing.T) {
	db := tempDB(t)

	resp, err := executeJSON(t, db, "play", "--duration", "100ms")
	require.NoError(t, err)
	var sum game.Summary
	decodeData(t, resp, &sum)
	assert.Equal(t, 1, sum.Phase)

	list := listSaves(t, db)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsAutoSave)
}

func TestPlay_RejectsNegativeFlags(t *testing.T) {
	for _, args := range [][]string{
		{"play", "--duration", "-1s"},
		{"play", "--clicks", "-2"},
	} {
		_, err := execute(t, tempDB(t), args...)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err), "%v", args)
	}
}
