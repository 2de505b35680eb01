package mediasoupclient

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDebugEnabled(t *testing.T) {
	testCases := []struct {
		patterns string
		scope    string
		enabled  bool
	}{
		{"", "Room", false},
		{"*", "Room", true},
		{"Room", "Room", true},
		{"Room", "Transport", false},
		{"Room,Transport", "Transport", true},
		{"*,-Transport", "Transport", false},
		{"*,-Transport", "Producer", true},
		{"-Transport,*", "Transport", true},
		{" Room , Peer ", "Peer", true},
		{"Trans*", "Transport", true},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.enabled, debugEnabled(tc.patterns, tc.scope), "%q %q", tc.patterns, tc.scope)
	}
}

func TestNewLogger(t *testing.T) {
	t.Setenv("DEBUG", "Room")

	var buf bytes.Buffer
	impl := defaultLoggerImpl
	defaultLoggerImpl = zerolog.New(&buf)
	t.Cleanup(func() { defaultLoggerImpl = impl })

	NewLogger("Room").V(1).Info("room debug")
	NewLogger("Transport").V(1).Info("transport debug")
	NewLogger("Transport").Info("transport info")

	output := buf.String()
	assert.Contains(t, output, "room debug")
	assert.Contains(t, output, "transport info")
	assert.NotContains(t, output, "transport debug")
}
