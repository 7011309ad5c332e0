package nlu

import (
	"context"
	"regexp"
	"strings"
)

// KeywordNLU is a deterministic keyword-and-regex fallback used when no
// model backend is configured (local development, demos) and as the safety
// net implementation in tests. It understands the Spanish and English
// phrasings our tenants' patients actually use.
type KeywordNLU struct{}

// NewKeywordNLU returns the rule-based classifier/extractor.
func NewKeywordNLU() *KeywordNLU {
	return &KeywordNLU{}
}

var (
	emergencyKeywords = []string{
		"emergencia", "urgencia", "urgente", "dolor de pecho", "no puedo respirar",
		"desmayo", "accidente", "sangrado", "infarto",
		"emergency", "chest pain", "can't breathe", "cannot breathe", "unconscious", "bleeding",
	}
	bookingKeywords = []string{
		"agendar", "reservar", "quiero una cita", "necesito una cita", "sacar cita", "pedir cita",
		"book", "schedule an appointment", "make an appointment", "new appointment",
	}
	inquiryKeywords = []string{
		"mi cita", "mis citas", "cuándo es", "cuando es", "qué citas", "que citas",
		"my appointment", "my appointments", "upcoming appointment",
	}
	reschedulingKeywords = []string{
		"reagendar", "cambiar mi cita", "mover mi cita", "otra fecha",
		"reschedule", "move my appointment", "change my appointment",
	}
	cancellationKeywords = []string{
		"cancelar", "anular", "cancel",
	}
	greetingKeywords = []string{
		"hola", "buenos días", "buenos dias", "buenas tardes", "buenas noches",
		"hello", "hi ", "hey", "good morning", "good afternoon",
	}

	specialties = []string{
		"cardiología", "cardiologia", "dermatología", "dermatologia",
		"pediatría", "pediatria", "ginecología", "ginecologia",
		"traumatología", "traumatologia", "oftalmología", "oftalmologia",
		"medicina general", "odontología", "odontologia", "neurología", "neurologia",
		"cardiology", "dermatology", "pediatrics", "gynecology", "ophthalmology",
		"general medicine", "dentistry", "neurology",
	}

	isoDateRe   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`)
	clockRe     = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	phoneRe     = regexp.MustCompile(`\+?\d{10,13}`)
)

// Classify matches the message against keyword lists in priority order.
// Emergency outranks everything; a bare greeting only wins when nothing
// actionable was asked for.
func (k *KeywordNLU) Classify(_ context.Context, req Request) (Intent, error) {
	text := strings.ToLower(req.Text)

	if containsAny(text, emergencyKeywords) {
		return IntentEmergency, nil
	}
	if containsAny(text, reschedulingKeywords) {
		return IntentRescheduling, nil
	}
	if containsAny(text, cancellationKeywords) {
		return IntentCancellation, nil
	}
	if containsAny(text, bookingKeywords) || (strings.Contains(text, "cita") && !containsAny(text, inquiryKeywords)) {
		return IntentAppointmentBooking, nil
	}
	if containsAny(text, inquiryKeywords) {
		return IntentAppointmentInquiry, nil
	}
	if containsAny(text, greetingKeywords) {
		return IntentGreeting, nil
	}
	return IntentUnknown, nil
}

// Extract pulls specialties, dates, clock times and phone numbers with
// regexes and the known specialty list.
func (k *KeywordNLU) Extract(_ context.Context, req Request, intent Intent) (Entities, error) {
	text := strings.ToLower(req.Text)
	var entities Entities

	for _, s := range specialties {
		if strings.Contains(text, s) {
			entities.Specialty = s
			break
		}
	}
	if m := isoDateRe.FindString(text); m != "" {
		entities.PreferredDate = m
	} else if m := slashDateRe.FindString(text); m != "" {
		entities.PreferredDate = m
	}
	if m := clockRe.FindString(text); m != "" {
		entities.PreferredTime = m
	}
	if m := phoneRe.FindString(req.Text); m != "" {
		entities.Phone = m
	}
	if intent == IntentEmergency {
		entities.Urgency = UrgencyEmergency
	}

	return entities, nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
