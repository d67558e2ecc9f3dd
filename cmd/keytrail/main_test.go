package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const script = `# two sessions
{"ts": 0, "room": "R1", "frame_ms": 20, "events": [{"key": "a", "action": "press"}]}
{"ts": 16, "room": "R1", "frame_ms": 20, "events": [{"key": "A", "action": "release"}]}
{"ts": 40, "room": "R1", "frame_ms": 20, "events": [{"code": 112, "action": "press"}]}
{"close": {"root": "Raid", "boss": "Golem", "difficulty": "Hard"}}
not json
{"ts": 100, "room": "R2", "events": [{"key": "B"}]}
`

func setupEnv(t *testing.T) (dataDir, configPath string) {
	t.Helper()
	dataDir = t.TempDir()
	t.Setenv("KEYTRAIL_DATA_DIR", dataDir)
	t.Setenv("KEYTRAIL_LOG_LEVEL", "error")
	t.Setenv("KEYTRAIL_EXPORT_ROOT", filepath.Join(dataDir, "export"))
	return dataDir, filepath.Join(dataDir, "config.toml")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRecordThenInspect(t *testing.T) {
	dataDir, configPath := setupEnv(t)

	out, err := execute(t, script, "--config", configPath, "record")
	require.NoError(t, err)
	assert.Contains(t, out, "2 session(s) saved")

	logs, err := filepath.Glob(filepath.Join(dataDir, "sessions", "*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	out, err = execute(t, "", "--config", configPath, "last", "--json")
	require.NoError(t, err)
	var last savedLogJSON
	require.NoError(t, json.Unmarshal([]byte(out), &last))
	assert.Equal(t, "Other", last.Info.RootFolder, "second session closed at end of input")

	out, err = execute(t, "", "--config", configPath, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Raid/Golem/Hard")
	assert.Contains(t, out, "Other/Unknown/None")

	out, err = execute(t, "", "--config", configPath, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "all saved logs intact")
}

func TestDecrypt(t *testing.T) {
	dataDir, configPath := setupEnv(t)

	_, err := execute(t, script, "--config", configPath, "record")
	require.NoError(t, err)

	out, err := execute(t, "", "--config", configPath, "list", "-n", "0")
	require.NoError(t, err)
	require.Contains(t, out, "Raid/Golem/Hard")

	var raidLog string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Raid/Golem/Hard") {
			fields := strings.Fields(line)
			raidLog = fields[len(fields)-1]
		}
	}
	require.NotEmpty(t, raidLog)
	require.True(t, strings.HasPrefix(raidLog, dataDir))

	out, err = execute(t, "", "--config", configPath, "decrypt", raidLog)
	require.NoError(t, err)
	assert.Contains(t, out, "+0|A|+|")
	assert.Contains(t, out, "+16|A|-|")
	assert.Contains(t, out, "+24|F1|+|")
	assert.Contains(t, out, "|50|")

	out, err = execute(t, "", "--config", configPath, "decrypt", "--json", raidLog)
	require.NoError(t, err)
	assert.Contains(t, out, `"key":"F1"`)
	assert.Contains(t, out, `"transition":"release"`)
}

func TestDecryptReportsForeignLines(t *testing.T) {
	_, configPath := setupEnv(t)
	path := filepath.Join(t.TempDir(), "foreign.log")
	require.NoError(t, os.WriteFile(path, []byte("plain text\n"), 0600))

	out, err := execute(t, "", "--config", configPath, "decrypt", path)
	require.Error(t, err)
	assert.Contains(t, out, "line 1:")
}

func TestExport(t *testing.T) {
	dataDir, configPath := setupEnv(t)

	_, err := execute(t, "", "--config", configPath, "export")
	require.Error(t, err, "nothing saved yet")

	_, err = execute(t, script, "--config", configPath, "record")
	require.NoError(t, err)

	out, err := execute(t, "", "--config", configPath, "export")
	require.NoError(t, err)
	dest := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(dest, filepath.Join(dataDir, "export", "Other", "Unknown", "None")), dest)
	_, err = os.Stat(dest)
	assert.NoError(t, err)
}

func TestConfigCommands(t *testing.T) {
	_, configPath := setupEnv(t)

	out, err := execute(t, "", "--config", configPath, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "created")
	_, err = os.Stat(configPath)
	require.NoError(t, err)

	out, err = execute(t, "", "--config", configPath, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = execute(t, "", "--config", configPath, "config", "show", "--format", "json")
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Contains(t, shown, "warnings")

	out, err = execute(t, "", "--config", configPath, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "warning: config: cipher.passphrase")
	assert.Contains(t, out, ": ok")
}

func TestRecordSanitizesKeyNames(t *testing.T) {
	dataDir, configPath := setupEnv(t)

	_, err := execute(t, `{"ts": 0, "room": "R1", "events": [{"key": "Pipe|Key"}]}`+"\n", "--config", configPath, "record")
	require.NoError(t, err)

	logs, err := filepath.Glob(filepath.Join(dataDir, "sessions", "*.log"))
	require.NoError(t, err)
	require.Len(t, logs, 1)

	out, err := execute(t, "", "--config", configPath, "decrypt", "--json", logs[0])
	require.NoError(t, err)
	assert.Contains(t, out, `"key":"Pipe/Key"`)
}

func TestReportConfigErrors(t *testing.T) {
	var buf bytes.Buffer
	r := &runner{log: slog.New(slog.NewTextHandler(&buf, nil))}

	errs := make(chan error)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.reportConfigErrors(ctx, errs)
	}()

	errs <- errors.New("reload config: recording.log_dir is required")
	cancel()
	<-done

	assert.Contains(t, buf.String(), "config change rejected")
	assert.Contains(t, buf.String(), "log_dir is required")
}
