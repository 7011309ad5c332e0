package pipeline

import (
	"time"

	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/nlu"
)

// Suppression reasons recorded in audit entries and metrics when gating
// blocks an auto-reply.
const (
	SuppressNone                 = ""
	SuppressAutoReplyDisabled    = "auto_reply_disabled"
	SuppressUnknownIntent        = "unknown_intent"
	SuppressOutsideBusinessHours = "outside_business_hours"
)

// ShouldAutoReply decides whether the pipeline composes an automatic
// response for this message. Emergencies always get a reply. An unknown
// intent with no actionable entities replies only when the instance's
// reply-to-unknown policy allows it. Everything else is gated by the
// instance's business hours, evaluated at now in the instance timezone.
func ShouldAutoReply(cfg channel.InstanceConfig, intent nlu.Intent, entities nlu.Entities, now time.Time) (bool, string) {
	if intent == nlu.IntentEmergency {
		return true, SuppressNone
	}
	if !cfg.AutoReplyEnabled {
		return false, SuppressAutoReplyDisabled
	}
	if intent == nlu.IntentUnknown && entities.IsEmpty() && !cfg.ReplyToUnknown {
		return false, SuppressUnknownIntent
	}
	if !cfg.BusinessHours.Open(now) {
		return false, SuppressOutsideBusinessHours
	}
	return true, SuppressNone
}
