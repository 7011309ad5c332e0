package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/worker"
	"github.com/medicita/medicita-platform/pkg/logging"
)

type fakePublisher struct {
	jobs []worker.Job
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, job worker.Job) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "job-1", nil
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(&strings.Builder{}, "error")
}

func newTestRouter(pub *fakePublisher) http.Handler {
	return New(&Config{
		Logger:  testLogger(),
		Webhook: NewWebhookHandler(pub, testLogger()),
	})
}

const whatsappEnvelope = `{
	"event": "messages.upsert",
	"instance": "inst-1",
	"data": {
		"key": {"id": "evt-100", "remoteJid": "5215512345678@s.whatsapp.net"},
		"message": {"conversation": "hola"}
	}
}`

func TestWebhookEnqueuesJob(t *testing.T) {
	pub := &fakePublisher{}
	router := newTestRouter(pub)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(whatsappEnvelope))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"queued"`)
	assert.Contains(t, rec.Body.String(), `"job_id":"job-1"`)

	require.Len(t, pub.jobs, 1)
	job := pub.jobs[0]
	assert.Equal(t, channel.TypeWhatsApp, job.ChannelType)
	assert.Equal(t, "inst-1", job.InstanceID)
	assert.Equal(t, "evt-100", job.EventID)
	assert.JSONEq(t, whatsappEnvelope, string(job.Payload))
}

func TestWebhookUnknownChannel(t *testing.T) {
	pub := &fakePublisher{}
	router := newTestRouter(pub)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/fax", strings.NewReader(whatsappEnvelope))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, pub.jobs)
}

func TestWebhookEmptyBody(t *testing.T) {
	pub := &fakePublisher{}
	router := newTestRouter(pub)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(""))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, pub.jobs)
}

func TestWebhookRejectsNonJSON(t *testing.T) {
	pub := &fakePublisher{}
	router := newTestRouter(pub)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, pub.jobs)
}

func TestWebhookGeneratesEventIDWhenMissing(t *testing.T) {
	pub := &fakePublisher{}
	router := newTestRouter(pub)

	body := `{"event":"messages.upsert","instance":"inst-1","data":{}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.jobs, 1)
	assert.NotEmpty(t, pub.jobs[0].EventID)
}

func TestWebhookPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("queue unavailable")}
	router := newTestRouter(pub)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(whatsappEnvelope))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "queue unavailable")
}

func TestHealthEndpoint(t *testing.T) {
	router := New(&Config{Logger: testLogger()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestNewWebhookHandlerPanicsWithoutPublisher(t *testing.T) {
	assert.Panics(t, func() { NewWebhookHandler(nil, testLogger()) })
}
