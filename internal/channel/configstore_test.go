package channel

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	hoursJSON := `{"timezone":"America/Mexico_City","windows":[
		{"weekday":1,"enabled":true,"start":"09:00","end":"18:00"},
		{"weekday":2,"enabled":true,"start":"09:00","end":"18:00"}
	]}`

	rows := sqlmock.NewRows([]string{
		"org_id", "auto_reply_enabled", "reply_to_unknown", "business_hours",
		"ai_model", "ai_temperature", "ai_max_tokens", "ai_timeout_seconds", "ai_custom_prompt",
	}).AddRow("org-1", true, false, []byte(hoursJSON), "anthropic.claude-3-haiku", 0.2, 512, 10, nil)

	mock.ExpectQuery("SELECT org_id, auto_reply_enabled").
		WithArgs(TypeWhatsApp, "inst-1").
		WillReturnRows(rows)

	store := NewConfigStore(db)
	cfg, err := store.Get(context.Background(), TypeWhatsApp, "inst-1")
	require.NoError(t, err)

	assert.Equal(t, "org-1", cfg.OrgID)
	assert.Equal(t, "inst-1", cfg.InstanceID)
	assert.Equal(t, TypeWhatsApp, cfg.Channel)
	assert.True(t, cfg.AutoReplyEnabled)
	assert.False(t, cfg.ReplyToUnknown)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 512, cfg.AI.MaxTokens)

	require.NotNil(t, cfg.BusinessHours)
	monday := time.Date(2024, 2, 5, 12, 0, 0, 0, time.UTC)
	assert.True(t, cfg.BusinessHours.Open(monday))
	sunday := time.Date(2024, 2, 4, 12, 0, 0, 0, time.UTC)
	assert.False(t, cfg.BusinessHours.Open(sunday))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigStoreGetMissingInstance(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT org_id, auto_reply_enabled").
		WithArgs(TypeWhatsApp, "missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"org_id", "auto_reply_enabled", "reply_to_unknown", "business_hours",
			"ai_model", "ai_temperature", "ai_max_tokens", "ai_timeout_seconds", "ai_custom_prompt",
		}))

	store := NewConfigStore(db)
	_, err = store.Get(context.Background(), TypeWhatsApp, "missing")
	assert.ErrorContains(t, err, "not configured")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigStoreGetNoHours(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"org_id", "auto_reply_enabled", "reply_to_unknown", "business_hours",
		"ai_model", "ai_temperature", "ai_max_tokens", "ai_timeout_seconds", "ai_custom_prompt",
	}).AddRow("org-1", true, true, nil, "anthropic.claude-3-haiku", 0.2, 512, 10, "Eres el asistente de la clínica.")

	mock.ExpectQuery("SELECT org_id, auto_reply_enabled").
		WithArgs(TypeWebchat, "inst-2").
		WillReturnRows(rows)

	store := NewConfigStore(db)
	cfg, err := store.Get(context.Background(), TypeWebchat, "inst-2")
	require.NoError(t, err)

	assert.Nil(t, cfg.BusinessHours)
	assert.Equal(t, "Eres el asistente de la clínica.", cfg.AI.CustomPrompt)
}
