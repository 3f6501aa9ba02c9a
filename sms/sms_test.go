package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15551234567", r.PostForm.Get("To"))
		assert.Equal(t, "+15550000000", r.PostForm.Get("From"))
		assert.Equal(t, "hello", r.PostForm.Get("Body"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/2010-04-01/", AccountSID: "AC123", AuthToken: "secret", From: "+15550000000"})
	sid, err := c.Send(context.Background(), "+15551234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SM1", sid)
}

func TestClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, AccountSID: "AC1", AuthToken: "t", From: "x"})
	_, err := c.Send(context.Background(), "bad", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid 'To' Phone Number")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, AccountSID: "AC1", Timeout: 20 * time.Millisecond})
	_, err := c.Send(context.Background(), "+1", "hi")
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	id, err := LogSender{}.Send(context.Background(), "+1", "x")
	assert.NoError(t, err)
	assert.Equal(t, "log", id)
}
