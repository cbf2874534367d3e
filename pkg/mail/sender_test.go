package mail

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/go-mail-me/pkg/config"
	"github.com/telekom/go-mail-me/pkg/system"
)

func TestNewSender(t *testing.T) {
	logger := system.NewTestLogger()

	tests := []struct {
		name        string
		cfg         config.Config
		description string
	}{
		{
			name: "basic configuration",
			cfg: config.Config{
				Host:          "smtp.example.com",
				Port:          587,
				Username:      "test@example.com",
				Password:      "password123",
				SenderAddress: "noreply@example.com",
				SenderName:    "Test Sender",
			},
			description: "Should create sender with basic SMTP configuration",
		},
		{
			name: "insecure skip verify",
			cfg: config.Config{
				Host:               "smtp.internal.com",
				Port:               25,
				Username:           "internal@company.com",
				Password:           "internal123",
				InsecureSkipVerify: true,
				SenderAddress:      "internal@company.com",
			},
			description: "Should create sender with TLS verification disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := NewSender(tt.cfg, logger)
			require.NotNil(t, sender, tt.description)
			assert.Implements(t, (*Sender)(nil), sender)
			assert.Equal(t, tt.cfg.Host, sender.GetHost())
			assert.Equal(t, tt.cfg.Port, sender.GetPort())
		})
	}
}

func TestSender_SendConnectionRefusedIsTransient(t *testing.T) {
	logger := system.NewTestLogger()
	// Port 1 on localhost refuses connections; the failure must come back
	// classified as retryable.
	sender := NewSender(config.Config{
		Host:          "localhost",
		Port:          1,
		Username:      "test@example.com",
		Password:      "test123",
		SenderAddress: "sender@example.com",
	}, logger)

	err := sender.Send([]string{"recipient@example.com"}, testMessage())
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.True(t, terr.Transient, "connection refusal should be retryable")
}
