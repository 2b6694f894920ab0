package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestAppLogger_LevelFallsBackToInfo(t *testing.T) {
	l := NewAppLogger(&Config{LogLevel: "verbose"})
	assert.Equal(t, zapcore.InfoLevel, l.getLoggerLevel())

	l = NewAppLogger(&Config{LogLevel: "debug"})
	assert.Equal(t, zapcore.DebugLevel, l.getLoggerLevel())
}

func TestAppLogger_InitAndWith(t *testing.T) {
	l := NewAppLogger(&Config{DevMode: true})
	l.InitLogger()
	require.NotNil(t, l.Logger())

	child := l.With(zap.String("owner", "user-1"))
	require.NotNil(t, child)
	assert.NotSame(t, l.Logger(), child.Logger())
	child.Infof("run %d", 1)
}

func TestNewAppLogger_NilConfig(t *testing.T) {
	l := NewAppLogger(nil)
	l.InitLogger()
	assert.NotNil(t, l.Logger())
}
