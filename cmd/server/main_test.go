package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Brownie44l1/digit-api/internal/config"
)

type syncBuffer struct {
	bytes.Buffer
	synced int
}

func (b *syncBuffer) Sync() error {
	b.synced++
	return nil
}

func bufferedLogger(out *syncBuffer) *zap.SugaredLogger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), out, zapcore.InfoLevel)
	return zap.New(core).Sugar()
}

func TestExitCodeFlushesLogger(t *testing.T) {
	out := &syncBuffer{}
	if code := exitCode(bufferedLogger(out), errors.New("listen tcp: address in use")); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if out.synced == 0 {
		t.Fatal("logger was not synced before exit")
	}
	if !strings.Contains(out.String(), "address in use") {
		t.Fatalf("final error not logged: %q", out.String())
	}

	out = &syncBuffer{}
	if code := exitCode(bufferedLogger(out), nil); code != 0 || out.synced == 0 {
		t.Fatalf("clean exit: code %d, synced %d", code, out.synced)
	}
}

func TestRunRequiresWeights(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Weights = filepath.Join(t.TempDir(), "weights.json")
	err := run(cfg, zap.NewNop().Sugar())
	if err == nil || !strings.Contains(err.Error(), "train and export") {
		t.Fatalf("expected missing-weights hint, got %v", err)
	}
}
