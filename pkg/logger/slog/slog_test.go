package slog_test

import (
	"bytes"
	"fmt"
	"testing"

	rawslog "log/slog"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/docmodel/docmodel.go/pkg/logger/slog"
)

type testMethod struct {
	fn    func(msg string, args ...any)
	level rawslog.Level
}

type testLogJSON struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Key   any    `json:"somekey"`
}

func TestLogger(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})

	// level needs to be set to debug to log all
	handler := rawslog.NewJSONHandler(buffer, &rawslog.HandlerOptions{Level: rawslog.LevelDebug})
	logger := slog.New(handler)

	testMethods := []testMethod{
		{fn: logger.Error, level: rawslog.LevelError},
		{fn: logger.Warn, level: rawslog.LevelWarn},
		{fn: logger.Info, level: rawslog.LevelInfo},
		{fn: logger.Debug, level: rawslog.LevelDebug},
	}

	for _, v := range testMethods {
		t.Run(fmt.Sprintf("testing %s", v.level.String()), func(t *testing.T) {
			v.fn("test log value", "somekey", "someval")
			require.Greater(t, buffer.Len(), 0)

			var entry testLogJSON
			require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))
			require.Equal(t, v.level.String(), entry.Level)
			require.Equal(t, "test log value", entry.Msg)
			require.Equal(t, "someval", entry.Key)
			buffer.Reset()
		})
	}
}
