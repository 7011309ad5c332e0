package channel

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/medicita/medicita-platform/internal/schedule"
)

// ErrNotConfigured marks a lookup for an instance nobody provisioned.
var ErrNotConfigured = errors.New("channel: instance not configured")

// ConfigStore loads per-instance channel configuration from PostgreSQL.
type ConfigStore struct {
	db *sql.DB
}

// NewConfigStore creates an instance config store.
func NewConfigStore(db *sql.DB) *ConfigStore {
	if db == nil {
		panic("channel: db cannot be nil")
	}
	return &ConfigStore{db: db}
}

// hoursRow is the stored business-hours shape: one window per weekday,
// Sunday first, plus the instance timezone.
type hoursRow struct {
	Timezone string      `json:"timezone"`
	Windows  []windowRow `json:"windows"`
}

type windowRow struct {
	Weekday int    `json:"weekday"`
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Get loads the configuration for one channel instance.
func (s *ConfigStore) Get(ctx context.Context, channelType Type, instanceID string) (InstanceConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT org_id, auto_reply_enabled, reply_to_unknown, business_hours,
			   ai_model, ai_temperature, ai_max_tokens, ai_timeout_seconds, ai_custom_prompt
		FROM channel_instances
		WHERE channel_type = $1 AND instance_id = $2
	`, channelType, instanceID)

	var (
		cfg            InstanceConfig
		hoursJSON      []byte
		timeoutSeconds int
		customPrompt   sql.NullString
	)
	err := row.Scan(
		&cfg.OrgID, &cfg.AutoReplyEnabled, &cfg.ReplyToUnknown, &hoursJSON,
		&cfg.AI.Model, &cfg.AI.Temperature, &cfg.AI.MaxTokens, &timeoutSeconds, &customPrompt,
	)
	if err == sql.ErrNoRows {
		return InstanceConfig{}, fmt.Errorf("%w: %s/%s", ErrNotConfigured, channelType, instanceID)
	}
	if err != nil {
		return InstanceConfig{}, fmt.Errorf("channel: load instance config: %w", err)
	}

	cfg.Channel = channelType
	cfg.InstanceID = instanceID
	cfg.AI.Timeout = time.Duration(timeoutSeconds) * time.Second
	cfg.AI.CustomPrompt = customPrompt.String

	if len(hoursJSON) > 0 {
		hours, err := decodeHours(hoursJSON)
		if err != nil {
			return InstanceConfig{}, err
		}
		cfg.BusinessHours = hours
	}

	return cfg, nil
}

func decodeHours(raw []byte) (*schedule.BusinessHours, error) {
	var stored hoursRow
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("channel: decode business hours: %w", err)
	}
	if len(stored.Windows) == 0 {
		return nil, nil
	}

	windows := make(map[time.Weekday]schedule.Window, len(stored.Windows))
	for _, w := range stored.Windows {
		start, err := schedule.ParseClock(w.Start)
		if err != nil {
			return nil, fmt.Errorf("channel: decode business hours: %w", err)
		}
		end, err := schedule.ParseClock(w.End)
		if err != nil {
			return nil, fmt.Errorf("channel: decode business hours: %w", err)
		}
		windows[time.Weekday(w.Weekday)] = schedule.Window{
			Enabled:      w.Enabled,
			StartMinutes: start,
			EndMinutes:   end,
		}
	}

	hours, err := schedule.New(windows, stored.Timezone)
	if err != nil {
		return nil, fmt.Errorf("channel: decode business hours: %w", err)
	}
	return hours, nil
}
