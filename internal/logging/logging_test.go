package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedactToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "empty", token: "", want: ""},
		{name: "short", token: "abc", want: "***"},
		{name: "sanctum", token: "12|Hq7s9dKw0PzXbA3mN5rT", want: "***bA3mN5rT"},
		{name: "trimmed", token: "  0123456789  ", want: "***23456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactToken(tt.token))
		})
	}
}

func TestOpenLogFile_Disabled(t *testing.T) {
	file, err := OpenLogFile("  ")
	require.NoError(t, err)
	assert.Nil(t, file)

	base := zap.NewNop()
	assert.Same(t, base, AttachFileLogger(base, nil, false))
}

func TestAttachFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "facturas.log")
	file, err := OpenLogFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	logger := AttachFileLogger(zap.NewNop(), file, false)
	logger.Debug("hidden")
	logger.Info("session saved", zap.String("token", RedactToken("12|abcdefghijkl")))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"session saved"`)
	assert.Contains(t, string(data), `"token":"***efghijkl"`)
	assert.NotContains(t, string(data), "hidden")
}
