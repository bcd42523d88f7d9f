// Package notify delivers account e-mails. The portal ships without an SMTP
// integration, so the only notifier writes the message to the log where an
// operator (or a log shipper) can pick the link up.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrlokans/roadwatch/internal/logger"
)

// Message is an outgoing account e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// ConfirmationMessage builds the sign-up confirmation e-mail.
func ConfirmationMessage(email, link string) (Message, error) {
	if email == "" {
		return Message{}, fmt.Errorf("confirmation message: missing recipient")
	}
	if _, err := url.ParseRequestURI(link); err != nil {
		return Message{}, fmt.Errorf("confirmation message: bad link: %w", err)
	}
	return Message{
		To:      email,
		Subject: "Confirm your RoadWatch account",
		Body: "Welcome to RoadWatch!\n\n" +
			"Follow the link below to confirm your e-mail address:\n\n" +
			link + "\n\n" +
			"If you did not create an account, you can ignore this message.\n",
	}, nil
}

// LogNotifier writes messages to the structured log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Component("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("outgoing e-mail")
	return nil
}

// ConsoleNotifier prints messages in a readable block, for local development.
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

func (n *ConsoleNotifier) Notify(_ context.Context, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.out, "----- e-mail -----\nTo: %s\nSubject: %s\n\n%s------------------\n",
		msg.To, msg.Subject, msg.Body)
	return err
}
