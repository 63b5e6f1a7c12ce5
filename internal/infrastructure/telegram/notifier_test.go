package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDigest(t *testing.T) {
	var gotPath, gotChat, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier("123:abc", "-100")
	n.apiBase = server.URL
	n.client = server.Client()

	require.NoError(t, n.PublishDigest(context.Background(), "2 new alerts"))
	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "-100", gotChat)
	assert.Equal(t, "2 new alerts", gotText)
}

func TestPublishDigestErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewNotifier("t", "c")
	n.apiBase = server.URL
	assert.ErrorContains(t, n.PublishDigest(context.Background(), "x"), "400")

	assert.ErrorContains(t, NewNotifier("", "c").PublishDigest(context.Background(), "x"), "misconfigured")
}

func TestClip(t *testing.T) {
	long := strings.Repeat("я", maxMessageRunes+10)
	clipped := clip(long, maxMessageRunes)
	assert.Equal(t, maxMessageRunes, utf8.RuneCountInString(clipped))
	assert.Equal(t, "short", clip("short", maxMessageRunes))
}
