package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufarm/edufarm/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(core.NewTestConfig(), nopLogger{})

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "amani@test.test"}}, Subject: "Hi", BodyStr: "hello"},
		&core.EmailMessage{Subject: "nobody", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "amani@test.test"}}, Subject: "empty"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].TextContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_Format(t *testing.T) {
	conf := core.NewTestConfig()
	svc := &consoleService{from: conf.DefaultFromEmail(), subjPrefix: "[EduFarm] ", logger: nopLogger{}}

	body, err := svc.format(core.EmailMessage{
		To:          []mail.Address{{Name: "Amani", Address: "amani@test.test"}},
		Subject:     "Graded",
		TextContent: "text body",
		HTMLContent: "<p>html body</p>",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: [EduFarm] Graded\r\n")
	assert.Contains(t, body, `To: "Amani" <amani@test.test>`)
	assert.Contains(t, body, "text body")
	assert.True(t, strings.Contains(body, "<p>html body</p>"))
}

func TestSendgridService_Prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, nopLogger{}).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Amani", Address: "amani@test.test"}},
		Subject:     "Graded",
		TextContent: "text body",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[EduFarm] Graded", m.Personalizations[0].Subject)
	assert.Equal(t, "amani@test.test", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
