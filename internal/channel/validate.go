package channel

import "strings"

// Validate checks that an incoming message carries everything the pipeline
// needs before any state is touched. It returns the list of problems found;
// an empty slice means the message is processable.
func Validate(msg IncomingMessage) []string {
	var errs []string

	if strings.TrimSpace(msg.ID) == "" {
		errs = append(errs, "message id is required")
	}
	if strings.TrimSpace(msg.InstanceID) == "" {
		errs = append(errs, "instance id is required")
	}
	if strings.TrimSpace(msg.Sender.ID) == "" {
		errs = append(errs, "sender id is required")
	}
	if msg.Content.Type == "" {
		errs = append(errs, "content type is required")
	}
	if msg.Content.Type == ContentText && strings.TrimSpace(msg.Content.Text) == "" {
		errs = append(errs, "text content is empty")
	}
	if msg.Content.Type != ContentText && msg.Content.Media == nil && strings.TrimSpace(msg.Content.Text) == "" {
		errs = append(errs, "media descriptor is missing")
	}

	return errs
}
