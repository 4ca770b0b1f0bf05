package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikey/decoy-alerts/internal/adapters/geo"
	"github.com/mikey/decoy-alerts/internal/adapters/mailgun"
	"github.com/mikey/decoy-alerts/internal/adapters/notify"
	"github.com/mikey/decoy-alerts/internal/adapters/store"
	"github.com/mikey/decoy-alerts/internal/config"
	"github.com/mikey/decoy-alerts/internal/core"
	"github.com/mikey/decoy-alerts/internal/dispatch"
	"github.com/mikey/decoy-alerts/internal/metrics"
	"github.com/mikey/decoy-alerts/internal/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type sentMail struct {
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
		} `json:"to"`
		Subject string `json:"subject"`
	} `json:"personalizations"`
	Content []struct {
		Value string `json:"value"`
	} `json:"content"`
	Attachments []struct {
		Content  string `json:"content"`
		Filename string `json:"filename"`
	} `json:"attachments"`
}

type sendGridMock struct {
	mu     sync.Mutex
	mails  []sentMail
	status int
	server *httptest.Server
}

func newSendGridMock(t *testing.T) *sendGridMock {
	m := &sendGridMock{status: http.StatusAccepted}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var mail sentMail
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &mail))

		m.mu.Lock()
		defer m.mu.Unlock()
		m.mails = append(m.mails, mail)
		if m.status >= 400 {
			http.Error(w, `{"errors":[{"message":"unauthorized"}]}`, m.status)
			return
		}
		w.WriteHeader(m.status)
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *sendGridMock) respondWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

func (m *sendGridMock) sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.mails...)
}

type failingEventLog struct {
	*store.MemoryStore
}

func (failingEventLog) RecordEvent(context.Context, *core.Event) (int64, error) {
	return 0, errors.New("database is locked")
}

type harness struct {
	server    *Server
	fetcher   *mailgun.Fetcher
	store     *store.MemoryStore
	sendgrid  *sendGridMock
	collector *metrics.Collector
	logs      *observer.ObservedLogs
}

func newHarness(t *testing.T, events core.EventLog) *harness {
	t.Helper()
	return newHarnessWithConfig(t, events, config.ServerConfig{ListenAddress: "127.0.0.1:0"})
}

func newHarnessWithConfig(t *testing.T, events core.EventLog, serverConfig config.ServerConfig) *harness {
	t.Helper()
	observed, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(observed)

	memory := store.NewMemoryStore()
	require.NoError(t, memory.UpsertDecoy(context.Background(), &core.Decoy{
		Address:       "jane@decoy.test",
		CustomerEmail: "owner@company.test",
		UseCase:       "legal",
	}))
	if events == nil {
		events = memory
	}

	sendgrid := newSendGridMock(t)
	collector := metrics.New()
	text := utils.NewTextProcessor(logger)
	fetcher := mailgun.NewFetcher("mg-key", time.Second, 0, 0, []string{"127.0.0.1"}, logger)

	service := core.NewIngestionService(
		memory,
		events,
		geo.NewClient("http://127.0.0.1:1", "", 200*time.Millisecond, logger),
		fetcher,
		core.NewAlertComposer(text, core.DefaultBodyPreviewLimit),
		dispatch.NewSync(notify.NewSendGridSender("sg-key", sendgrid.server.URL, "canary@honeypotalerts.com", "Decoys Leak Monitor", logger), time.Second, collector, logger),
		collector,
		logger,
	)

	server := NewServer(serverConfig, service, collector, logger)
	return &harness{server: server, fetcher: fetcher, store: memory, sendgrid: sendgrid, collector: collector, logs: logs}
}

func (h *harness) post(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/inbound", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.5:40112"
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) events(t *testing.T) []*core.Event {
	t.Helper()
	events, err := h.store.RecentEvents(context.Background(), 100)
	require.NoError(t, err)
	return events
}

func scenarioA() url.Values {
	return url.Values{
		FieldRecipient: {"jane@decoy.test"},
		FieldSender:    {"attacker@evil.test"},
		FieldSubject:   {"Confidential Contract"},
		FieldBodyPlain: {"Please review the attached contract."},
	}
}

func assertOK(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestInbound_ScenarioA(t *testing.T) {
	h := newHarness(t, nil)

	assertOK(t, h.post(t, scenarioA()))

	events := h.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "203.0.113.5", events[0].IP)
	assert.Equal(t, "attacker@evil.test", events[0].Sender)
	assert.Equal(t, "Confidential Contract", events[0].Subject)

	mails := h.sendgrid.sent()
	require.Len(t, mails, 1)
	assert.Equal(t, "owner@company.test", mails[0].Personalizations[0].To[0].Email)
	assert.Equal(t, "Your decoy jane@decoy.test was triggered", mails[0].Personalizations[0].Subject)
	body := mails[0].Content[0].Value
	assert.Contains(t, body, core.UnknownLocation)
	assert.Contains(t, body, "203.0.113.5")
	assert.Contains(t, body, "attacker@evil.test")
	assert.Contains(t, body, "legal")
	assert.Empty(t, mails[0].Attachments)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.collector.Ingestions.WithLabelValues(core.OutcomeMatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.collector.EnrichmentDegradations.WithLabelValues(core.CallGeo)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.collector.Dispatches.WithLabelValues(core.DispatchSent)))
}

func TestInbound_ScenarioB(t *testing.T) {
	h := newHarness(t, nil)
	storage := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("twelve bytes"))
	}))
	defer storage.Close()
	h.fetcher.SetTransport(storage.Client().Transport)

	form := scenarioA()
	form.Set(FieldMessageURL, storage.URL+"/v3/domains/decoy.test/messages/abc")
	assertOK(t, h.post(t, form))

	mails := h.sendgrid.sent()
	require.Len(t, mails, 1)
	require.Len(t, mails[0].Attachments, 1)
	assert.Equal(t, "decoy_jane_decoy_test.eml", mails[0].Attachments[0].Filename)
	data, err := base64.StdEncoding.DecodeString(mails[0].Attachments[0].Content)
	require.NoError(t, err)
	assert.Equal(t, []byte("twelve bytes"), data)

	assert.Equal(t, 1, h.logs.FilterMessage("Raw message suspiciously small, content may be truncated").Len())
}

func TestInbound_ScenarioC(t *testing.T) {
	h := newHarness(t, nil)
	form := scenarioA()
	form.Set(FieldRecipient, "unknown@nowhere.test")

	assertOK(t, h.post(t, form))

	assert.Empty(t, h.events(t))
	assert.Empty(t, h.sendgrid.sent())
	assert.Equal(t, 1, h.logs.FilterMessage("No match for decoy").Len())
}

func TestInbound_IPHeaderWins(t *testing.T) {
	h := newHarness(t, nil)
	form := scenarioA()
	form.Set(DefaultIPField, "198.51.100.7")

	assertOK(t, h.post(t, form))

	events := h.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "198.51.100.7", events[0].IP)
}

func TestInbound_DispatchFailureStillAcknowledged(t *testing.T) {
	h := newHarness(t, nil)
	h.sendgrid.respondWith(http.StatusUnauthorized)

	assertOK(t, h.post(t, scenarioA()))

	assert.Len(t, h.events(t), 1)
	assert.Len(t, h.sendgrid.sent(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.collector.Dispatches.WithLabelValues(core.DispatchFailed)))
	assert.Equal(t, 1, h.logs.FilterMessage("Failed to send alert").Len())
}

func TestInbound_DuplicateSubmissions(t *testing.T) {
	h := newHarness(t, nil)

	assertOK(t, h.post(t, scenarioA()))
	assertOK(t, h.post(t, scenarioA()))

	assert.Len(t, h.events(t), 2)
	assert.Len(t, h.sendgrid.sent(), 2)
}

func TestInbound_ForeignMessageURLIsNotFetched(t *testing.T) {
	h := newHarness(t, nil)
	var hits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer foreign.Close()

	form := scenarioA()
	form.Set(FieldMessageURL, foreign.URL+"/collect")
	assertOK(t, h.post(t, form))

	assert.Equal(t, int32(0), hits.Load())
	mails := h.sendgrid.sent()
	require.Len(t, mails, 1)
	assert.Empty(t, mails[0].Attachments)

	warnings := h.logs.FilterMessage("Raw message unavailable, alert will carry no attachment").All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].ContextMap()["error"], "not allowed")
}

func signedForm(key string, at time.Time) url.Values {
	form := scenarioA()
	timestamp := strconv.FormatInt(at.Unix(), 10)
	token := "c2c3b0e9f1a24d6b8e7f"
	form.Set(FieldTimestamp, timestamp)
	form.Set(FieldToken, token)
	form.Set(FieldSignature, hex.EncodeToString(Sign([]byte(key), timestamp, token)))
	return form
}

func TestInbound_SignatureVerification(t *testing.T) {
	serverConfig := config.ServerConfig{SigningKey: "signing-key", SignatureMaxAge: time.Minute}

	tests := []struct {
		name   string
		form   url.Values
		status int
	}{
		{"valid signature", signedForm("signing-key", time.Now()), http.StatusOK},
		{"wrong key", signedForm("other-key", time.Now()), http.StatusUnauthorized},
		{"stale timestamp", signedForm("signing-key", time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"unsigned", scenarioA(), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarnessWithConfig(t, nil, serverConfig)

			rec := h.post(t, tt.form)
			assert.Equal(t, tt.status, rec.Code)

			if tt.status == http.StatusOK {
				assert.Len(t, h.events(t), 1)
			} else {
				assert.Empty(t, h.events(t))
				assert.Empty(t, h.sendgrid.sent())
			}
		})
	}
}

func TestInbound_PersistenceFailure(t *testing.T) {
	h := newHarness(t, failingEventLog{store.NewMemoryStore()})

	rec := h.post(t, scenarioA())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"error"}`, rec.Body.String())
	assert.Empty(t, h.sendgrid.sent())
}

func TestInbound_EmptyForm(t *testing.T) {
	h := newHarness(t, nil)

	assertOK(t, h.post(t, url.Values{}))
	assert.Empty(t, h.events(t))
}

func TestInbound_Multipart(t *testing.T) {
	h := newHarness(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, values := range scenarioA() {
		require.NoError(t, mw.WriteField(key, values[0]))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/webhook/inbound", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "203.0.113.5:40112"
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	assertOK(t, rec)
	assert.Len(t, h.events(t), 1)
}

func TestInbound_UnparseableForm(t *testing.T) {
	h := newHarness(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/inbound", strings.NewReader("recipient=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"error"}`, rec.Body.String())
	assert.Empty(t, h.events(t))
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, nil)

	for _, path := range []string{"/", "/healthz"} {
		rec := httptest.NewRecorder()
		h.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assertOK(t, rec)
	}

	h.post(t, scenarioA())
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `decoy_webhook_requests_total{status="200"} 1`)
}

func TestServer_StartStop(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.server.Start())

	resp, err := http.Get("http://" + h.server.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, h.server.Stop())
}

func TestPeerIP(t *testing.T) {
	assert.Equal(t, "203.0.113.5", peerIP("203.0.113.5:40112"))
	assert.Equal(t, "2001:db8::1", peerIP("[2001:db8::1]:443"))
	assert.Equal(t, "garbage", peerIP("garbage"))
}
