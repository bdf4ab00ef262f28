package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/shadow-caption/pkg/models"
)

// chatServer 返回固定回复的 chat completions 服务
func chatServer(t *testing.T, reply string, captured *ChatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		resp := map[string]interface{}{
			"id": "chatcmpl-1",
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewChatClientDefaults(t *testing.T) {
	c := NewChatClient("k", "", "")
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Equal(t, "gpt-4o-mini", c.Model)

	cfg := models.NewDefaultConfig()
	cfg.LLMAPIKey = "abc"
	cfg.LLMBaseURL = "http://localhost:9999/v1/"
	c = NewChatClientFromConfig(cfg)
	assert.Equal(t, "abc", c.APIKey)
	assert.Equal(t, "http://localhost:9999/v1", c.BaseURL)
}

func TestMissingAPIKey(t *testing.T) {
	c := NewChatClient("", "http://127.0.0.1:1", "")
	ctx := context.Background()

	_, err := c.RestorePunctuation(ctx, []string{"hi"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = c.InferBoundaries(ctx, []string{"hi"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = c.TransformChineseToEnglish(ctx, "你好", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = c.TextToSpeech(ctx, "hello")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestRestorePunctuation(t *testing.T) {
	var req ChatRequest
	srv := chatServer(t, "```json\n[\"Hi.\", \" there\", \" friend.\"]\n```", &req)
	c := NewChatClient("test-key", srv.URL, "")

	out, err := c.RestorePunctuation(context.Background(), []string{"Hi", " there", " friend"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi.", " there", " friend."}, out)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.JSONEq(t, `["Hi"," there"," friend"]`, req.Messages[1].Content)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.0, *req.Temperature)
}

func TestRestorePunctuationLengthMismatch(t *testing.T) {
	srv := chatServer(t, `["Hi."]`, nil)
	c := NewChatClient("test-key", srv.URL, "")

	_, err := c.RestorePunctuation(context.Background(), []string{"Hi", " there"})
	assert.Error(t, err)
}

func TestInferBoundaries(t *testing.T) {
	srv := chatServer(t, "句末下标: [0, 3]", nil)
	c := NewChatClient("test-key", srv.URL, "")

	out, err := c.InferBoundaries(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, out)
}

func TestInferBoundariesBadReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"没有数组", "I cannot help with that"},
		{"不是整数", `["a", "b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.reply, nil)
			c := NewChatClient("test-key", srv.URL, "")
			_, err := c.InferBoundaries(context.Background(), []string{"a", "b"})
			assert.Error(t, err)
		})
	}
}

func TestChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewChatClient("test-key", srv.URL, "")
	_, err := c.InferBoundaries(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestChatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := NewChatClient("test-key", srv.URL, "")
	_, err := c.Chat(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "x"}}})
	assert.Error(t, err)
}

func TestGenerateNotes(t *testing.T) {
	var req ChatRequest
	srv := chatServer(t, "1. Hello there.\n中文：你好。", &req)
	c := NewChatClient("test-key", srv.URL, "")

	notes, err := c.GenerateNotes(context.Background(), "Hello there.")
	require.NoError(t, err)
	assert.Contains(t, notes, "Hello there.")
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Contains(t, req.Messages[1].Content, "Hello there.")

	_, err = c.GenerateNotes(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTransformChineseToEnglish(t *testing.T) {
	var req ChatRequest
	srv := chatServer(t, "I grabbed a coffee this morning.", &req)
	c := NewChatClient("test-key", srv.URL, "")

	out, err := c.TransformChineseToEnglish(context.Background(), "我早上喝了咖啡", "**grab a coffee**")
	require.NoError(t, err)
	assert.Equal(t, "I grabbed a coffee this morning.", out)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Contains(t, req.Messages[1].Content, "**grab a coffee**")

	_, err = c.TransformChineseToEnglish(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTransformChineseToEnglishEmptyReply(t *testing.T) {
	srv := chatServer(t, "   ", nil)
	c := NewChatClient("test-key", srv.URL, "")

	_, err := c.TransformChineseToEnglish(context.Background(), "你好", "")
	assert.Error(t, err)
}

func TestTextToSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		var req SpeechRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tts-1", req.Model)
		assert.Equal(t, "nova", req.Voice)
		assert.Equal(t, "hello", req.Input)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-mp3"))
	}))
	defer srv.Close()

	c := NewChatClient("test-key", srv.URL, "")
	audio, err := c.TextToSpeech(context.Background(), "  hello ")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-mp3"), audio)

	_, err = c.TextToSpeech(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
