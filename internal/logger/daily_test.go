package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestFileName(t *testing.T) {
	day := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "faucet-test-2026-03-10.log", FileName("faucet", "test", day))
}

func TestDailyWriter_RotatesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	stale := filepath.Join(dir, "faucet-test-2026-03-01.log")
	recent := filepath.Join(dir, "faucet-test-2026-03-08.log")
	other := filepath.Join(dir, "other-test-2026-03-01.log")
	for _, p := range []string{stale, recent, other} {
		require.NoError(t, os.WriteFile(p, []byte("{}\n"), 0o644))
	}

	w, err := newDailyWriter(dir, "faucet", "test", 5*24*time.Hour, clock)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)

	now = now.Add(24 * time.Hour)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	day1, err := os.ReadFile(filepath.Join(dir, "faucet-test-2026-03-10.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(day1))

	day2, err := os.ReadFile(filepath.Join(dir, "faucet-test-2026-03-11.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(day2))

	assert.NoFileExists(t, stale)
	assert.FileExists(t, recent)
	assert.FileExists(t, other)
}

func TestFileEncoderConfig_WritesTimestampAndMessage(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDailyWriter(dir, "faucet", "test", 0)
	require.NoError(t, err)

	l := zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(FileEncoderConfig()), w, zapcore.DebugLevel))
	l.Info("payout sent", zap.String("txid", "abc"))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, FileName("faucet", "test", time.Now())))
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "payout sent", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "abc", entry["txid"])

	ts, ok := entry["timestamp"].(string)
	require.True(t, ok)
	_, err = time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)
}
