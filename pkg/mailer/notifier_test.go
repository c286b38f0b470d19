package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-account-identity/pkg/helpers"
	mailtpl "github.com/oksasatya/go-account-identity/pkg/mailer/templates"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishJSON(ctx context.Context, body any) error {
	return m.Called(ctx, body).Error(0)
}

type mockSender struct{ mock.Mock }

func (m *mockSender) Send(ctx context.Context, to, subject, text, html string) error {
	return m.Called(ctx, to, subject, text, html).Error(0)
}

var brand = mailtpl.Brand{AppName: "identity", CompanyName: "Athena Chat"}

func TestQueueNotifier_PublishesVerifyJob(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishJSON", mock.Anything, mock.MatchedBy(func(b any) bool {
		job, ok := b.(EmailJob)
		return ok && job.To == "a@x.com" && job.Template == mailtpl.VerifyEmail &&
			job.Data["VerifyURL"] == "http://h/confirm?token=t"
	})).Return(nil)

	err := NewQueueNotifier(pub, brand).SendConfirmation(context.Background(), "a@x.com", "Alice", "http://h/confirm?token=t")

	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestQueueNotifier_PropagatesPublishError(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishJSON", mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	err := NewQueueNotifier(pub, brand).SendConfirmation(context.Background(), "a@x.com", "Alice", "l")
	assert.EqualError(t, err, "channel closed")
}

func TestDirectNotifier_RendersAndSends(t *testing.T) {
	s := &mockSender{}
	s.On("Send", mock.Anything, "a@x.com", "Email Verification",
		mock.MatchedBy(func(text string) bool { return strings.Contains(text, "http://h/c?token=t") }),
		mock.AnythingOfType("string")).Return(nil)

	err := NewDirectNotifier(s, brand).SendConfirmation(context.Background(), "a@x.com", "Alice", "http://h/c?token=t")

	require.NoError(t, err)
	s.AssertExpectations(t)
}

func TestLogNotifier_NeverFails(t *testing.T) {
	n := NewLogNotifier(helpers.NewDiscardLogger())
	assert.NoError(t, n.SendConfirmation(context.Background(), "a@x.com", "Alice", "l"))
}

func TestEmailJob_RenderRaw(t *testing.T) {
	subject, text, html, err := EmailJob{To: "a@x.com", Subject: "s", Text: "t"}.Render()
	require.NoError(t, err)
	assert.Equal(t, "s", subject)
	assert.Equal(t, "t", text)
	assert.Empty(t, html)
}

func TestEmailJob_RenderTemplateFillsEmail(t *testing.T) {
	job := EmailJob{To: "a@x.com", Template: mailtpl.VerifyEmail, Data: map[string]any{"VerifyURL": "http://v"}}
	subject, text, _, err := job.Render()
	require.NoError(t, err)
	assert.Equal(t, "Email Verification", subject)
	assert.Contains(t, text, "http://v")
	assert.Equal(t, "a@x.com", job.Data["Email"])
}
