package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ccp-p/shadow-caption/pkg/export"
	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/notes"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// Captioner 根据视频链接生成字幕
type Captioner interface {
	CaptionURL(ctx context.Context, url string) (*models.Result, error)
}

// Assistant 文本改写、语音合成和笔记生成
type Assistant interface {
	TransformChineseToEnglish(ctx context.Context, chineseText, noteTemplate string) (string, error)
	TextToSpeech(ctx context.Context, text string) ([]byte, error)
	GenerateNotes(ctx context.Context, captionText string) (string, error)
}

// Server 跟读应用的 HTTP 接口
type Server struct {
	Config    *models.Config
	Captioner Captioner
	Assistant Assistant
	Tasks     *TaskStore
	Notes     *notes.Store

	segments *export.SegmentsExporter
	router   *mux.Router
	baseCtx  context.Context
}

// NewServer 创建服务并注册路由，ctx 用于后台字幕任务
func NewServer(ctx context.Context, cfg *models.Config, captioner Captioner, assistant Assistant) *Server {
	s := &Server{
		Config:    cfg,
		Captioner: captioner,
		Assistant: assistant,
		Tasks:     NewTaskStore(),
		Notes:     notes.NewStore(cfg.NotesDir),
		segments:  export.NewSegmentsExporter(cfg.CaptionsDir),
		router:    mux.NewRouter(),
		baseCtx:   ctx,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/videos", s.handleListVideos).Methods(http.MethodGet)
	api.HandleFunc("/videos/{filename}/segments", s.handleGetSegments).Methods(http.MethodGet)
	api.HandleFunc("/videos/{filename}/stream", s.handleStream).Methods(http.MethodGet)
	api.HandleFunc("/videos/{filename}/notes", s.handleGenerateNotes).Methods(http.MethodPost)
	api.HandleFunc("/caption", s.handleCaption).Methods(http.MethodPost)
	api.HandleFunc("/task_status/{task_id}", s.handleTaskStatus).Methods(http.MethodGet)
	api.HandleFunc("/transform-text", s.handleTransformText).Methods(http.MethodPost)
	api.HandleFunc("/tts", s.handleTTS).Methods(http.MethodPost)
	api.HandleFunc("/save-note", s.handleSaveLearningNote).Methods(http.MethodPost)
	api.HandleFunc("/notes", s.handleListNotes).Methods(http.MethodGet)
	api.HandleFunc("/notes/{filename}", s.handleGetNote).Methods(http.MethodGet)
	api.HandleFunc("/notes/{filename}", s.handleDeleteNote).Methods(http.MethodDelete)
	api.HandleFunc("/notes/{filename}/download", s.handleDownloadNote).Methods(http.MethodGet)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "未找到接口: "+r.URL.Path)
	})
	s.router.Use(loggingMiddleware)
}

// ServeHTTP 实现 http.Handler 接口
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe 启动服务，ctx 取消后优雅关闭
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Info("服务器启动，监听地址 %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("服务器启动失败: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	utils.Info("正在关闭服务器...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭服务器失败: %w", err)
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		utils.Debug("接收到 API 请求: %s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
