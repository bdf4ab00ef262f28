package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/shadow-caption/pkg/export"
	"github.com/ccp-p/shadow-caption/pkg/llm"
	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/notes"
)

type mockCaptioner struct {
	mock.Mock
}

func (m *mockCaptioner) CaptionURL(ctx context.Context, url string) (*models.Result, error) {
	args := m.Called(url)
	result, _ := args.Get(0).(*models.Result)
	return result, args.Error(1)
}

type mockAssistant struct {
	mock.Mock
}

func (m *mockAssistant) TransformChineseToEnglish(ctx context.Context, chineseText, noteTemplate string) (string, error) {
	args := m.Called(chineseText, noteTemplate)
	return args.String(0), args.Error(1)
}

func (m *mockAssistant) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	args := m.Called(text)
	audio, _ := args.Get(0).([]byte)
	return audio, args.Error(1)
}

func (m *mockAssistant) GenerateNotes(ctx context.Context, captionText string) (string, error) {
	args := m.Called(captionText)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	server    *Server
	captioner *mockCaptioner
	assistant *mockAssistant
	cfg       *models.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	cfg := models.NewDefaultConfig()
	cfg.VideosDir = filepath.Join(root, "videos")
	cfg.CaptionsDir = filepath.Join(root, "captions")
	cfg.NotesDir = filepath.Join(root, "notes")
	require.NoError(t, os.MkdirAll(cfg.VideosDir, 0755))

	env := &testEnv{captioner: new(mockCaptioner), assistant: new(mockAssistant), cfg: cfg}
	env.server = NewServer(context.Background(), cfg, env.captioner, env.assistant)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) saveSegments(t *testing.T, base string) {
	t.Helper()
	doc := &models.CaptionDocument{
		Text:     "Hello there.",
		Language: "en",
		Segments: []models.Segment{
			{ID: 0, Start: 0, End: 1, Text: models.NoCaptionText},
			{ID: 1, Start: 1, End: 2.5, Text: "Hello there."},
		},
	}
	_, err := export.NewSegmentsExporter(e.cfg.CaptionsDir).Export(doc, base+".mp3")
	require.NoError(t, err)
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListVideos(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.VideosDir, "talk.mp3"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.VideosDir, "notes.txt"), []byte("a"), 0644))
	env.saveSegments(t, "talk")

	rec := env.do(t, http.MethodGet, "/api/videos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var entries []models.MediaEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.MediaEntry{Filename: "talk.mp3", Title: "talk", HasSegments: true, MediaType: "audio"}, entries[0])
}

func TestListVideosMissingDir(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.VideosDir = filepath.Join(t.TempDir(), "missing")

	rec := env.do(t, http.MethodGet, "/api/videos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetSegments(t *testing.T) {
	env := newTestEnv(t)
	env.saveSegments(t, "talk")

	rec := env.do(t, http.MethodGet, "/api/videos/talk.mp4/segments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc models.CaptionDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "en", doc.Language)
	require.Len(t, doc.Segments, 2)
	assert.Equal(t, "Hello there.", doc.Segments[1].Text)

	rec = env.do(t, http.MethodGet, "/api/videos/other.mp4/segments", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeMap(t, rec), "error")
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.VideosDir, "clip.webm"), []byte("0123456789"), 0644))

	rec := env.do(t, http.MethodGet, "/api/videos/clip.webm/stream", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/webm", rec.Header().Get("Content-Type"))
	assert.Equal(t, "0123456789", rec.Body.String())

	// Range 请求
	req := httptest.NewRequest(http.MethodGet, "/api/videos/clip.webm/stream", nil)
	req.Header.Set("Range", "bytes=2-4")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "234", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/videos/none.mp4/stream", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRejectsTraversal(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/videos/..%2Fsecret.mp3/stream", nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestCaptionTask(t *testing.T) {
	env := newTestEnv(t)
	env.captioner.On("CaptionURL", "https://example.com/v1").
		Return(&models.Result{MediaPath: "v1.mp3", SegmentCount: 4}, nil)

	rec := env.do(t, http.MethodPost, "/api/caption", CaptionRequest{VideoURL: "https://example.com/v1"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeMap(t, rec)
	assert.Contains(t, []interface{}{"pending", "running", "success"}, body["status"])
	taskID, _ := body["task_id"].(string)
	require.NotEmpty(t, taskID)

	env.server.Tasks.Wait()

	rec = env.do(t, http.MethodGet, "/api/task_status/"+taskID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decodeMap(t, rec)["status"])
	var task Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, TaskSuccess, task.Status)
	require.NotNil(t, task.Result)
	assert.Equal(t, 4, task.Result.SegmentCount)
	env.captioner.AssertExpectations(t)
}

func TestCaptionTaskFailure(t *testing.T) {
	env := newTestEnv(t)
	env.captioner.On("CaptionURL", "https://example.com/bad").Return(nil, errors.New("下载音频失败"))

	rec := env.do(t, http.MethodPost, "/api/caption", CaptionRequest{VideoURL: "https://example.com/bad"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	taskID := decodeMap(t, rec)["task_id"].(string)
	env.server.Tasks.Wait()

	task, ok := env.server.Tasks.Get(taskID)
	require.True(t, ok)
	assert.Equal(t, TaskFailed, task.Status)
	assert.Equal(t, "下载音频失败", task.Error)
}

func TestCaptionBadRequest(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/caption", map[string]string{"url": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/task_status/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/caption", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTransformText(t *testing.T) {
	env := newTestEnv(t)
	env.assistant.On("TransformChineseToEnglish", "我很累", "**worn out**").Return("I'm worn out.", nil)
	env.assistant.On("TransformChineseToEnglish", "没有模板", "").Return("", llm.ErrMissingAPIKey)

	rec := env.do(t, http.MethodPost, "/api/transform-text", TransformRequest{ChineseText: "我很累", NoteContent: "**worn out**", HasNote: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I'm worn out.", decodeMap(t, rec)["english_text"])

	// 未勾选 has_note 时忽略模板
	rec = env.do(t, http.MethodPost, "/api/transform-text", TransformRequest{ChineseText: "没有模板", NoteContent: "ignored"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeMap(t, rec)["error"], "配置错误")

	rec = env.do(t, http.MethodPost, "/api/transform-text", TransformRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTTS(t *testing.T) {
	env := newTestEnv(t)
	env.assistant.On("TextToSpeech", "Hello").Return([]byte("ID3"), nil)
	env.assistant.On("TextToSpeech", "Boom").Return(nil, errors.New("TTS API 调用失败"))

	rec := env.do(t, http.MethodPost, "/api/tts", TTSRequest{Text: "Hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ID3", rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/tts", TTSRequest{Text: "Boom"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGenerateNotes(t *testing.T) {
	env := newTestEnv(t)
	env.saveSegments(t, "talk")
	env.assistant.On("GenerateNotes", "Hello there.").Return("1. Hello there.", nil)

	rec := env.do(t, http.MethodPost, "/api/videos/talk.mp3/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "talk_notes.md", decodeMap(t, rec)["filename"])

	content, err := os.ReadFile(filepath.Join(env.cfg.NotesDir, "talk_notes.md"))
	require.NoError(t, err)
	assert.Equal(t, "1. Hello there.", string(content))

	list := env.server.Notes.List()
	require.Len(t, list, 1)
	assert.Equal(t, notes.TypeVideo, list[0].Type)

	rec = env.do(t, http.MethodPost, "/api/videos/none.mp3/notes", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotesRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/save-note", SaveNoteRequest{
		ChineseText:      "我很累",
		EnglishText:      "I'm worn out.",
		TemplateFilename: "tpl.md",
		TemplateTitle:    "模板",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decodeMap(t, rec)
	filename, _ := saved["filename"].(string)
	require.NotEmpty(t, filename)
	assert.Equal(t, "我很累", saved["title"])

	rec = env.do(t, http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []notes.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, filename, list[0].Filename)
	assert.Equal(t, notes.TypeLearning, list[0].Type)

	rec = env.do(t, http.MethodGet, "/api/notes/"+filename, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeMap(t, rec)["content"], "I'm worn out.")

	rec = env.do(t, http.MethodGet, "/api/notes/"+filename+"/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "## 中文原文")

	rec = env.do(t, http.MethodDelete, "/api/notes/"+filename, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.server.Notes.List())

	rec = env.do(t, http.MethodGet, "/api/notes/"+filename, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/notes/"+filename+"/download", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/notes/"+filename, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveNoteBadRequest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/save-note", SaveNoteRequest{ChineseText: "只有中文"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/notes/notes_index.json", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListenAndServeShutdown(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.server.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("服务器未能关闭")
	}
}
