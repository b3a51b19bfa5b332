package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func TestSend(t *testing.T) {
	var got struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/bot"+testToken+"/sendMessage"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	defer srv.Close()

	tr, err := New(testToken, time.Second, WithAPIServer(srv.URL))
	require.NoError(t, err)

	require.NoError(t, tr.Send(context.Background(), 42, "🔔 привет"))
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "🔔 привет", got.Text)
}

func TestSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	tr, err := New(testToken, time.Second, WithAPIServer(srv.URL))
	require.NoError(t, err)

	err = tr.Send(context.Background(), 42, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestNew_InvalidToken(t *testing.T) {
	_, err := New("not-a-token", time.Second)
	assert.Error(t, err)
}
