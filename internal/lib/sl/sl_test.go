package sl

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	attr := Err(errors.New("something went wrong"))

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.NotPanics(t, func() {
		attr := Err(nil)
		assert.Equal(t, "<nil>", attr.Value.String())
	})
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		env        string
		debug      bool
		jsonFormat bool
	}{
		{env: envLocal, debug: true, jsonFormat: false},
		{env: envDev, debug: true, jsonFormat: true},
		{env: envProd, debug: false, jsonFormat: true},
		{env: "unknown", debug: false, jsonFormat: true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			log := newLogger(tt.env, &buf)

			assert.Equal(t, tt.debug, log.Enabled(context.Background(), slog.LevelDebug))

			log.Info("hello")
			assert.Equal(t, tt.jsonFormat, strings.HasPrefix(buf.String(), "{"))
		})
	}
}
