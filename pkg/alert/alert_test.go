package alert

import (
	"bytes"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"

	"github.com/soundprediction/medinsight/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsAlerter(t *testing.T) {
	assert.IsType(t, &LogAlerter{}, New(config.AlertConfig{}, nil))
	assert.IsType(t, &EmailAlerter{}, New(config.AlertConfig{
		Enabled: true, SMTPHost: "smtp.local", To: []string{"ops@example.com"},
	}, nil))
}

func TestEmailAlerterSends(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	a := NewEmailAlerter(config.AlertConfig{
		Enabled: true, SMTPHost: "smtp.local", SMTPPort: 2525,
		From: "bot@example.com", To: []string{"ops@example.com", "oncall@example.com"},
	})
	a.send = func(addr string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		return nil
	}

	require.NoError(t, a.Alert("Circuit open", "embedding breaker tripped"))
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.True(t, strings.HasPrefix(string(gotMsg), "To: ops@example.com,oncall@example.com\r\n"))
	assert.Contains(t, string(gotMsg), "Subject: Circuit open")
}

func TestEmailAlerterWrapsError(t *testing.T) {
	a := NewEmailAlerter(config.AlertConfig{Enabled: true, SMTPHost: "smtp.local"})
	a.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := a.Alert("s", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send alert email")
}

func TestLogAlerter(t *testing.T) {
	var buf bytes.Buffer
	a := NewLogAlerter(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, a.Alert("Circuit open", "chat generator"))
	assert.Contains(t, buf.String(), "ALERT: Circuit open")
	assert.Contains(t, buf.String(), "chat generator")
}
