package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/pixelbridge/internal/config"
	"github.com/vango-dev/pixelbridge/internal/errors"
	"github.com/vango-dev/pixelbridge/internal/logging"
	"github.com/vango-dev/pixelbridge/internal/patternsim"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestConfigPrint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  address: 10.0.0.9:81\n"), 0644))

	out, err := execute(t, "config", "print", "--config", path)
	require.NoError(t, err)

	cfg, err := config.Parse([]byte(out))
	require.NoError(t, err, "printed config must parse:\n%s", out)
	assert.Equal(t, "10.0.0.9:81", cfg.Source.Address)
	assert.Equal(t, "http://10.0.0.9", cfg.Source.Origin)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte("grid:\n  pixels: 8\n  columns: 4\n"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("display:\n  actuator: spi\n"), 0644))

	out, err := execute(t, "config", "validate", "--config", good)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration ok")

	_, err = execute(t, "config", "validate", "--config", bad)
	assert.True(t, errors.HasCode(err, errors.CodeUnknownActuator), "got %v", err)
}

func TestRun_RejectsInvalidFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := execute(t, "run", "--config", path)
	assert.True(t, errors.HasCode(err, errors.CodeConfigNotFound), "got %v", err)

	cfgPath := filepath.Join(t.TempDir(), "ok.yaml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0644))
	_, err = execute(t, "run", "--config", cfgPath, "--source", "no-port")
	assert.True(t, errors.HasCode(err, errors.CodeInvalidAddress), "got %v", err)
}

func TestSimulate_RejectsBadFPS(t *testing.T) {
	for _, fps := range []string{"0", "2000000000"} {
		_, err := execute(t, "simulate", "--fps", fps)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidFlag), "fps %s: got %v", fps, err)
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunBridge_PaintsFramesFromSimulator(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	sim := patternsim.New(patternsim.Config{FPS: 100}, logging.Discard())
	srv := httptest.NewServer(sim)
	defer srv.Close()

	cfg := config.New()
	cfg.SetSource(strings.TrimPrefix(srv.URL, "http://"))
	cfg.Supervisor.ReconnectBackoff = config.Duration(20 * time.Millisecond)
	cfg.Metrics.Address = ""
	cfg.Log.Level = "debug"
	require.NoError(t, cfg.Validate())

	var logs syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runBridge(ctx, cfg, io.Discard, &logs) }()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "msg=paint")
	}, 3*time.Second, 10*time.Millisecond, "no frame was painted")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runBridge did not stop")
	}
	assert.Contains(t, logs.String(), "pixelbridge stopped")
}
