package mailer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	mailtpl "github.com/oksasatya/go-account-identity/pkg/mailer/templates"
)

// JSONPublisher is satisfied by helpers.RabbitPublisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueNotifier enqueues confirmation emails for cmd/email_worker.
type QueueNotifier struct {
	Pub   JSONPublisher
	Brand mailtpl.Brand
}

func NewQueueNotifier(pub JSONPublisher, brand mailtpl.Brand) *QueueNotifier {
	return &QueueNotifier{Pub: pub, Brand: brand}
}

func (n *QueueNotifier) SendConfirmation(ctx context.Context, to, name, link string) error {
	job := ConfirmationJob(n.Brand, to, name, link)
	return n.Pub.PublishJSON(ctx, job)
}

// DirectNotifier renders and sends in the request path.
type DirectNotifier struct {
	Sender Sender
	Brand  mailtpl.Brand
}

func NewDirectNotifier(s Sender, brand mailtpl.Brand) *DirectNotifier {
	return &DirectNotifier{Sender: s, Brand: brand}
}

func (n *DirectNotifier) SendConfirmation(ctx context.Context, to, name, link string) error {
	subject, text, html, err := ConfirmationJob(n.Brand, to, name, link).Render()
	if err != nil {
		return err
	}
	return n.Sender.Send(ctx, to, subject, text, html)
}

// LogNotifier only logs the link. Used in development and when sending is disabled.
type LogNotifier struct {
	Logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) SendConfirmation(_ context.Context, to, _ string, link string) error {
	n.Logger.WithFields(logrus.Fields{"to": to, "link": link}).Info("confirmation email not sent; delivery disabled")
	return nil
}

// ConfirmationJob builds the verify_email job for an address.
func ConfirmationJob(brand mailtpl.Brand, to, name, link string) EmailJob {
	data := mailtpl.NewVerifyEmailData(brand, name, to, link, mailtpl.WithTime(time.Now()))
	return EmailJob{To: to, Template: mailtpl.VerifyEmail, Data: data}
}
