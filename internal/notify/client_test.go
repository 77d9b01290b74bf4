package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody textMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token")
	err := client.SendText(context.Background(), "chat-1", "hello")
	require.NoError(t, err)

	assert.Equal(t, "/api/messages", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "chat-1", gotBody.ChatID)
	assert.Equal(t, "hello", gotBody.Text)
}

func TestClient_SendFile(t *testing.T) {
	var gotBody fileMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/files", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	err := client.SendFile(context.Background(), "chat-1", "Order_42.txt", []byte("CODE-123"))
	require.NoError(t, err)

	assert.Equal(t, "Order_42.txt", gotBody.Filename)
	assert.Equal(t, []byte("CODE-123"), gotBody.Content)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	err := client.SendText(context.Background(), "chat-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestClient_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	err := client.SendText(context.Background(), "chat-1", "hello")
	assert.Error(t, err)
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient("", "")
	err := client.SendText(context.Background(), "chat-1", "hello")
	assert.Error(t, err)
}
