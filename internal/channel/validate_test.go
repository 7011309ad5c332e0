package channel

import (
	"testing"
	"time"
)

func validMessage() IncomingMessage {
	return IncomingMessage{
		ID:          "wamid.123",
		ChannelType: TypeWhatsApp,
		InstanceID:  "inst-1",
		Sender:      Sender{ID: "5215550001", Name: "Ana"},
		Content:     Content{Type: ContentText, Text: "hola"},
		Timestamp:   time.Now(),
	}
}

func TestValidateAccepts(t *testing.T) {
	if errs := Validate(validMessage()); len(errs) != 0 {
		t.Fatalf("expected valid message, got %v", errs)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*IncomingMessage)
	}{
		{"missing id", func(m *IncomingMessage) { m.ID = "" }},
		{"blank id", func(m *IncomingMessage) { m.ID = "   " }},
		{"missing instance", func(m *IncomingMessage) { m.InstanceID = "" }},
		{"missing sender", func(m *IncomingMessage) { m.Sender.ID = "" }},
		{"missing content type", func(m *IncomingMessage) { m.Content.Type = "" }},
		{"empty text", func(m *IncomingMessage) { m.Content.Text = "  " }},
		{"media without descriptor", func(m *IncomingMessage) {
			m.Content = Content{Type: ContentImage}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := validMessage()
			tc.mutate(&msg)
			if errs := Validate(msg); len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
		})
	}
}

func TestValidateMediaWithDescriptor(t *testing.T) {
	msg := validMessage()
	msg.Content = Content{Type: ContentImage, Media: &Media{URL: "https://cdn.example/x.jpg", MimeType: "image/jpeg"}}
	if errs := Validate(msg); len(errs) != 0 {
		t.Fatalf("expected media message to validate, got %v", errs)
	}
}
