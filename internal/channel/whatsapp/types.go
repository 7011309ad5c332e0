// Package whatsapp implements the WhatsApp channel adapter over an
// Evolution-style gateway API.
package whatsapp

// envelope is the provider webhook wrapper: the event name, the gateway
// instance that received it, and the event-specific payload.
type envelope struct {
	Event    string    `json:"event"`
	Instance string    `json:"instance"`
	Data     eventData `json:"data"`
}

type eventData struct {
	Key              messageKey      `json:"key"`
	PushName         string          `json:"pushName,omitempty"`
	Message          *messageContent `json:"message,omitempty"`
	MessageTimestamp int64           `json:"messageTimestamp,omitempty"`
}

type messageKey struct {
	ID        string `json:"id"`
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
}

type messageContent struct {
	Conversation string           `json:"conversation,omitempty"`
	ExtendedText *extendedText    `json:"extendedTextMessage,omitempty"`
	Image        *mediaMessage    `json:"imageMessage,omitempty"`
	Audio        *mediaMessage    `json:"audioMessage,omitempty"`
	Document     *mediaMessage    `json:"documentMessage,omitempty"`
	Location     *locationMessage `json:"locationMessage,omitempty"`
}

type extendedText struct {
	Text string `json:"text"`
}

type mediaMessage struct {
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type locationMessage struct {
	Latitude  float64 `json:"degreesLatitude"`
	Longitude float64 `json:"degreesLongitude"`
	Name      string  `json:"name,omitempty"`
}

// sendTextRequest is the gateway's outbound text payload.
type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendResponse struct {
	Key    *messageKey `json:"key,omitempty"`
	Status string      `json:"status,omitempty"`
	Error  *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
