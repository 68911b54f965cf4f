package aichat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryTrimsOldestPairs(t *testing.T) {
	h := History{Limit: 4}
	h = h.Append(RoleUser, "q1")
	h = h.Append(RoleModel, "a1")
	h = h.Append(RoleUser, "q2")
	h = h.Append(RoleModel, "a2")
	h = h.Append(RoleUser, "q3")

	require.Len(t, h.Turns, 3)
	assert.Equal(t, RoleUser, h.Turns[0].Role, "transcript starts with a user turn")
	assert.Equal(t, "q2", h.Turns[0].Text)
	assert.Equal(t, "q3", h.Turns[2].Text)
}

func TestHistoryUnlimited(t *testing.T) {
	h := History{}
	for i := 0; i < 10; i++ {
		h = h.Append(RoleUser, "x")
	}
	assert.Len(t, h.Turns, 10)
}

func TestSplitMessage(t *testing.T) {
	chunks := SplitMessage(strings.Repeat("a", 10), 4)
	assert.Equal(t, []string{"aaaa", "aaaa", "aa"}, chunks)
	assert.Nil(t, SplitMessage("", 4))
	assert.Equal(t, []string{"ab"}, SplitMessage("ab", 4))
}

func TestSplitMessageBreaksAtSentences(t *testing.T) {
	text := "First sentence. Second sentence is longer! Third?"
	chunks := SplitMessage(text, 30)
	assert.Equal(t, []string{"First sentence.", "Second sentence is longer!", "Third?"}, chunks)
}

func TestSplitMessageBreaksAtNewlines(t *testing.T) {
	text := "line one\nline two\nline three"
	chunks := SplitMessage(text, 12)
	assert.Equal(t, []string{"line one", "line two", "line three"}, chunks)
}

func TestHistoryTrimNeverOpensOnModelTurn(t *testing.T) {
	h := History{Limit: 3}
	h = h.Append(RoleUser, "q1")
	h = h.Append(RoleModel, "a1")
	h = h.Append(RoleUser, "q2")
	h = h.Append(RoleModel, "a2")

	require.Len(t, h.Turns, 2)
	assert.Equal(t, RoleUser, h.Turns[0].Role)
	assert.Equal(t, "q2", h.Turns[0].Text)
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", Model: "test"})
	reply, err := c.Generate(context.Background(), []Turn{{Role: RoleUser, Text: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
}

func TestGenerateEmptyConversation(t *testing.T) {
	c := NewClient(Options{})
	_, err := c.Generate(context.Background(), nil)
	assert.Error(t, err)
}
