package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogTransportAddsRequestID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	client := &http.Client{Transport: LogTransport(logger, nil)}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/statuses", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.NotEmpty(t, seen)
	assert.Empty(t, req.Header.Get(RequestIDHeader), "caller's request is not mutated")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "/statuses", entry.Data["path"])
	assert.Equal(t, http.StatusNoContent, entry.Data["status"])
	assert.Equal(t, seen, entry.Data["request_id"])
}

func TestLogTransportKeepsExistingRequestID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	client := &http.Client{Transport: LogTransport(logger, nil)}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", seen)
}

func TestLogTransportLogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	client := &http.Client{Transport: LogTransport(logger, nil)}
	_, err := client.Get("http://127.0.0.1:1/unreachable")
	require.Error(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
}

func TestLogMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set(RequestIDHeader, "r1")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "r1", hook.LastEntry().Data["request_id"])
}
