package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderStripsHeaderInjection(t *testing.T) {
	m := NewSmtpMailer(SmtpConfig{Host: "localhost", Port: 25, From: "planner@example.com"})

	raw := string(m.render(Message{
		To:      "a@x.com\r\nBcc: evil@x.com",
		Subject: "You're invited",
		Body:    "line one\nline two",
	}))

	assert.Contains(t, raw, "To: a@x.comBcc: evil@x.com\r\n")
	assert.NotContains(t, raw, "\r\nBcc:")
	assert.Contains(t, raw, "Subject: You're invited\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nline one\r\nline two"))
}

func TestLogMailerRecordsMessages(t *testing.T) {
	m := NewLogMailer()

	assert.NoError(t, m.Send(context.Background(), Message{To: "a@x.com", Subject: "one"}))
	assert.NoError(t, m.Send(context.Background(), Message{To: "b@x.com", Subject: "two"}))

	sent := m.Sent()
	assert.Len(t, sent, 2)
	assert.Equal(t, "b@x.com", sent[1].To)
}
