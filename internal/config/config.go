package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	// Inbound queue
	InboundQueueURL    string
	ReceiveWaitSeconds int
	ReceiveBatchSize   int

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// NLU (Bedrock)
	BedrockModelID string
	NLUTimeout     time.Duration
	NLUMaxTokens   int
	NLUTemperature float64

	// Redis context cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Appointment service
	AppointmentServiceURL   string
	AppointmentServiceToken string
	BookingTimeout          time.Duration

	// Channel provider (WhatsApp business messaging gateway)
	WhatsAppAPIBaseURL string
	WhatsAppAPIKey     string

	// Default auto-reply policy, overridable per channel instance
	AutoReplyEnabled   bool
	ReplyToUnknown     bool
	BusinessHoursStart string
	BusinessHoursEnd   string
	BusinessHoursTZ    string

	// Staff escalation notifications
	EscalationFromEmail string
	EscalationToEmail   string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		InboundQueueURL:    getEnv("INBOUND_QUEUE_URL", ""),
		ReceiveWaitSeconds: getEnvAsInt("RECEIVE_WAIT_SECONDS", 2),
		ReceiveBatchSize:   getEnvAsInt("RECEIVE_BATCH_SIZE", 5),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		NLUTimeout:     getEnvAsDuration("NLU_TIMEOUT", 10*time.Second),
		NLUMaxTokens:   getEnvAsInt("NLU_MAX_TOKENS", 512),
		NLUTemperature: getEnvAsFloat("NLU_TEMPERATURE", 0.2),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AppointmentServiceURL:   getEnv("APPOINTMENT_SERVICE_URL", ""),
		AppointmentServiceToken: getEnv("APPOINTMENT_SERVICE_TOKEN", ""),
		BookingTimeout:          getEnvAsDuration("BOOKING_TIMEOUT", 15*time.Second),

		WhatsAppAPIBaseURL: getEnv("WHATSAPP_API_BASE_URL", ""),
		WhatsAppAPIKey:     getEnv("WHATSAPP_API_KEY", ""),

		AutoReplyEnabled:   getEnvAsBool("AUTO_REPLY_ENABLED", true),
		ReplyToUnknown:     getEnvAsBool("REPLY_TO_UNKNOWN", true),
		BusinessHoursStart: getEnv("BUSINESS_HOURS_START", ""),
		BusinessHoursEnd:   getEnv("BUSINESS_HOURS_END", ""),
		BusinessHoursTZ:    getEnv("BUSINESS_HOURS_TZ", "UTC"),

		EscalationFromEmail: getEnv("ESCALATION_FROM_EMAIL", ""),
		EscalationToEmail:   getEnv("ESCALATION_TO_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
