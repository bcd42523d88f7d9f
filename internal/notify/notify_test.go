package notify

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestConfirmationMessage(t *testing.T) {
	msg, err := ConfirmationMessage("driver@example.com", "http://localhost:8188/auth/confirm?token=abc")
	if err != nil {
		t.Fatalf("ConfirmationMessage() error = %v", err)
	}
	if msg.To != "driver@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Body, "/auth/confirm?token=abc") {
		t.Errorf("body does not carry the link: %q", msg.Body)
	}

	if _, err := ConfirmationMessage("", "http://localhost/x"); err == nil {
		t.Error("expected error for missing recipient")
	}
	if _, err := ConfirmationMessage("driver@example.com", "not a link"); err == nil {
		t.Error("expected error for bad link")
	}
}

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewConsoleNotifier(&buf)

	err := n.Notify(context.Background(), Message{To: "a@b.co", Subject: "Hi", Body: "body\n"})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"To: a@b.co", "Subject: Hi", "body"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier().Notify(context.Background(), Message{To: "a@b.co"}); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
}
