package logger

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetLogger() {
	baseLogger = nil
	initBaseLoggerOnce = sync.Once{}
}

func TestInit(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run("valid level "+level, func(t *testing.T) {
			resetLogger()
			require.NoError(t, Init(WithLevel(level)))
			assert.NotNil(t, baseLogger)
		})
	}

	t.Run("default level", func(t *testing.T) {
		resetLogger()
		require.NoError(t, Init())
		assert.True(t, baseLogger.Desugar().Core().Enabled(zapcore.InfoLevel))
		assert.False(t, baseLogger.Desugar().Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		resetLogger()
		assert.Error(t, Init(WithLevel("verbose")))
		assert.Nil(t, baseLogger)
	})

	t.Run("init only once", func(t *testing.T) {
		resetLogger()
		require.NoError(t, Init(WithLevel("debug")))
		first := baseLogger

		require.NoError(t, Init(WithLevel("error")))
		assert.Same(t, first, baseLogger)
	})
}

func TestDerive(t *testing.T) {
	resetLogger()
	require.NoError(t, Init(WithLevel("debug")))

	t.Run("stores a logger in the context", func(t *testing.T) {
		ctx := Derive(t.Context(), "wallet.name", "savings")

		l, ok := ctx.Value(ctxKey).(*zap.SugaredLogger)
		assert.True(t, ok)
		assert.NotNil(t, l)
	})

	t.Run("nested derive keeps parent logger", func(t *testing.T) {
		parent := Derive(t.Context(), "cycle.id", "abc")
		child := Derive(parent, "endpoint.index", 1)

		parentLogger := parent.Value(ctxKey).(*zap.SugaredLogger)
		childLogger := child.Value(ctxKey).(*zap.SugaredLogger)
		assert.NotSame(t, parentLogger, childLogger)
	})
}

func TestDeriveFromCtx(t *testing.T) {
	resetLogger()
	require.NoError(t, Init(WithLevel("debug")))

	t.Run("falls back to base logger", func(t *testing.T) {
		assert.Same(t, baseLogger, deriveFromCtx(t.Context()))
	})

	t.Run("uses context logger", func(t *testing.T) {
		ctx := Derive(t.Context(), "wallet.name", "savings")
		assert.Same(t, ctx.Value(ctxKey), deriveFromCtx(ctx))
	})

	t.Run("adds trace fields", func(t *testing.T) {
		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		ctx := trace.ContextWithSpanContext(t.Context(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  spanID,
		}))

		l := deriveFromCtx(ctx)
		assert.NotSame(t, baseLogger, l)
	})
}

func TestLevels(t *testing.T) {
	resetLogger()
	require.NoError(t, Init(WithLevel("debug")))

	ctx := Derive(t.Context(), "wallet.name", "savings")
	assert.NotPanics(t, func() {
		Debug(ctx, "debug message", "key", "value")
		Info(ctx, "info message")
		Warn(ctx, "warn message", "key", nil)
		Error(ctx, "error message", "key1", "value1", "key2")
	})

	assert.Panics(t, func() {
		Panic(ctx, "panic message")
	})
}

func TestSync(t *testing.T) {
	t.Run("after init", func(t *testing.T) {
		resetLogger()
		require.NoError(t, Init())
		assert.NotPanics(t, func() { _ = Sync() })
	})

	t.Run("without init panics", func(t *testing.T) {
		resetLogger()
		assert.Panics(t, func() { _ = Sync() })
	})
}

func TestFatal(t *testing.T) {
	if os.Getenv("TEST_FATAL_SUBPROCESS") == "1" {
		_ = Init(WithLevel("debug"))
		Fatal(Derive(context.Background(), "wallet.name", "savings"), "fatal error for test")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFatal")
	cmd.Env = append(os.Environ(), "TEST_FATAL_SUBPROCESS=1")

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok, "the subprocess should exit with a non-zero status")
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, stdout.String(), `"level":"fatal"`)
	assert.Contains(t, stdout.String(), `"wallet.name":"savings"`)
}
