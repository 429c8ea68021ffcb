package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedZap(t *testing.T) (*ZapLogger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapLogger(zap.New(core)), logs
}

func TestZapLogger_Levels(t *testing.T) {
	log, logs := newObservedZap(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "wrn", entries[2].Message)
	assert.EqualValues(t, 2, entries[1].ContextMap()["b"])
}

func TestZapLogger_RedactsSensitiveKeys(t *testing.T) {
	log, logs := newObservedZap(t)

	log.With("service", "users").Info(context.Background(), "login", "email", "a@b.c", "password", "hunter2", "PIN", "1234")

	fields := logs.AllUntimed()[0].ContextMap()
	assert.Equal(t, "users", fields["service"])
	assert.Equal(t, "a@b.c", fields["email"])
	assert.Equal(t, "[redacted]", fields["password"])
	assert.Equal(t, "[redacted]", fields["PIN"])
}

func TestNew_Formats(t *testing.T) {
	l, err := New("json")
	require.NoError(t, err)
	assert.IsType(t, &SlogLogger{}, l)

	l, err = New("zap")
	require.NoError(t, err)
	assert.IsType(t, &ZapLogger{}, l)

	_, err = New("xml")
	require.Error(t, err)
}

type syncCounter struct{ syncs int }

func (s *syncCounter) Write(p []byte) (int, error) { return len(p), nil }
func (s *syncCounter) Sync() error                 { s.syncs++; return nil }

func TestSync(t *testing.T) {
	out := &syncCounter{}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(out), zapcore.DebugLevel)

	require.NoError(t, Sync(NewZapLogger(zap.New(core))))
	assert.Equal(t, 1, out.syncs)

	assert.NoError(t, Sync(Nop()))
}
