package mailer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bchfaucet/internal/config"
)

func TestSMTPSender_Build(t *testing.T) {
	s := NewSMTPSender(config.MailConfig{From: "noreply@bch-faucet.dev", Port: 587})

	m, err := s.Build(Message{
		To:      []string{"a@example.com", "b@example.com"},
		ReplyTo: "sender@example.com",
		Subject: "hello",
		HTML:    "<h3>hi</h3>",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "noreply@bch-faucet.dev")
	assert.Contains(t, raw, "a@example.com")
	assert.Contains(t, raw, "b@example.com")
	assert.Contains(t, raw, "Subject: hello")
	assert.Contains(t, raw, "text/html")
}

func TestSMTPSender_BuildRejectsBadRecipient(t *testing.T) {
	s := NewSMTPSender(config.MailConfig{From: "noreply@bch-faucet.dev"})
	_, err := s.Build(Message{To: []string{"not an address"}, Subject: "x"})
	assert.Error(t, err)
}
