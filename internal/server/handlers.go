package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ccp-p/shadow-caption/pkg/export"
	"github.com/ccp-p/shadow-caption/pkg/llm"
	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/notes"
	"github.com/ccp-p/shadow-caption/pkg/scanner"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// --- 请求结构体 ---

// CaptionRequest 生成字幕请求
type CaptionRequest struct {
	VideoURL string `json:"video_url"`
}

// TransformRequest 中文转英文请求
type TransformRequest struct {
	ChineseText string `json:"chinese_text"`
	NoteContent string `json:"note_content"`
	HasNote     bool   `json:"has_note"`
}

// TTSRequest 语音合成请求
type TTSRequest struct {
	Text string `json:"text"`
}

// SaveNoteRequest 保存学习笔记请求
type SaveNoteRequest struct {
	ChineseText      string `json:"chinese_text"`
	EnglishText      string `json:"english_text"`
	TemplateFilename string `json:"template_filename"`
	TemplateTitle    string `json:"template_title"`
}

// --- Helper Functions ---

// respondWithError 发送错误 JSON 响应
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON 发送 JSON 响应
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		utils.Error("JSON 序列化错误: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "内部服务器错误：无法序列化响应"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// filenameVar 读取并校验路径中的文件名
func filenameVar(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := utils.SafeFileName(mux.Vars(r)["filename"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return name, true
}

// --- API Handlers ---

// handleListVideos 获取所有可用的视频/音频列表
func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	if !utils.CheckDirExists(s.Config.VideosDir) {
		respondWithJSON(w, http.StatusOK, []struct{}{})
		return
	}

	entries, err := scanner.ListMedia(s.Config.VideosDir, s.Config.CaptionsDir)
	if err != nil {
		utils.Error("获取视频列表失败: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// handleGetSegments 获取视频的字幕产物
func (s *Server) handleGetSegments(w http.ResponseWriter, r *http.Request) {
	filename, ok := filenameVar(w, r)
	if !ok {
		return
	}

	doc, err := s.segments.Load(utils.BaseName(filename))
	if errors.Is(err, export.ErrSegmentsNotFound) {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		utils.Error("获取字幕segments失败: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, doc)
}

// handleStream 流式传输视频/音频文件，支持 Range 请求
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	filename, ok := filenameVar(w, r)
	if !ok {
		return
	}

	path := filepath.Join(s.Config.VideosDir, filename)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondWithError(w, http.StatusNotFound, "文件不存在")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		respondWithError(w, http.StatusNotFound, "文件不存在")
		return
	}

	w.Header().Set("Content-Type", scanner.MimeType(filename))
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

// handleCaption 创建后台字幕任务
func (s *Server) handleCaption(w http.ResponseWriter, r *http.Request) {
	var req CaptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "无效的请求体: "+err.Error())
		return
	}
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	if req.VideoURL == "" {
		respondWithError(w, http.StatusBadRequest, "请求体中缺少 'video_url'")
		return
	}

	task := s.Tasks.Create(req.VideoURL)
	utils.Info("创建任务: %s (VideoURL: %s)", task.ID, req.VideoURL)
	s.Tasks.Run(task.ID, func() (*models.Result, error) {
		return s.Captioner.CaptionURL(s.baseCtx, req.VideoURL)
	})

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"task_id": task.ID,
		"status":  task.Status,
	})
}

// handleTaskStatus 获取任务状态和结果
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.Tasks.Get(mux.Vars(r)["task_id"])
	if !ok {
		respondWithError(w, http.StatusNotFound, "任务不存在")
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

// handleTransformText 将中文文本转换为地道的美式英语
func (s *Server) handleTransformText(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ChineseText) == "" {
		respondWithError(w, http.StatusBadRequest, "请求体中缺少 'chinese_text'")
		return
	}

	template := ""
	if req.HasNote {
		template = req.NoteContent
	}

	english, err := s.Assistant.TransformChineseToEnglish(r.Context(), req.ChineseText, template)
	if err != nil {
		respondWithAssistantError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":       "success",
		"english_text": english,
	})
}

// handleTTS 合成英文语音，返回 mp3
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		respondWithError(w, http.StatusBadRequest, "请求体中缺少 'text'")
		return
	}

	audio, err := s.Assistant.TextToSpeech(r.Context(), req.Text)
	if err != nil {
		respondWithAssistantError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

// handleGenerateNotes 根据已有转写生成学习笔记并保存到笔记目录
func (s *Server) handleGenerateNotes(w http.ResponseWriter, r *http.Request) {
	filename, ok := filenameVar(w, r)
	if !ok {
		return
	}

	base := utils.BaseName(filename)
	doc, err := s.segments.Load(base)
	if errors.Is(err, export.ErrSegmentsNotFound) {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	content, err := s.Assistant.GenerateNotes(r.Context(), doc.Text)
	if err != nil {
		respondWithAssistantError(w, err)
		return
	}

	entry, err := s.Notes.Save(base+"_notes.md", content, base, notes.TypeVideo, "")
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"filename": entry.Filename,
		"content":  content,
	})
}

// handleListNotes 获取笔记列表
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.Notes.List())
}

// handleGetNote 获取单个笔记内容
func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	filename, ok := filenameVar(w, r)
	if !ok {
		return
	}
	content, err := s.Notes.Content(filename)
	if err != nil {
		respondWithNoteError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"content": content})
}

// handleDownloadNote 以附件形式下载笔记
func (s *Server) handleDownloadNote(w http.ResponseWriter, r *http.Request) {
	filename, ok := filenameVar(w, r)
	if !ok {
		return
	}
	path, err := s.Notes.Path(filename)
	if err != nil {
		respondWithNoteError(w, err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

// handleDeleteNote 删除笔记
func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	filename, ok := filenameVar(w, r)
	if !ok {
		return
	}
	if err := s.Notes.Delete(filename); err != nil {
		respondWithNoteError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleSaveLearningNote 保存中英对照的学习笔记
func (s *Server) handleSaveLearningNote(w http.ResponseWriter, r *http.Request) {
	var req SaveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		strings.TrimSpace(req.ChineseText) == "" || strings.TrimSpace(req.EnglishText) == "" {
		respondWithError(w, http.StatusBadRequest, "请求体中缺少必要参数")
		return
	}

	entry, err := s.Notes.SaveLearning(notes.LearningNote{
		ChineseText:      req.ChineseText,
		EnglishText:      req.EnglishText,
		TemplateFilename: req.TemplateFilename,
		TemplateTitle:    req.TemplateTitle,
	})
	if err != nil {
		utils.Error("保存学习笔记失败: %v", err)
		respondWithError(w, http.StatusInternalServerError, "保存笔记失败")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"filename": entry.Filename,
		"title":    entry.Title,
	})
}

func respondWithNoteError(w http.ResponseWriter, err error) {
	if errors.Is(err, notes.ErrNoteNotFound) {
		respondWithError(w, http.StatusNotFound, "笔记不存在")
		return
	}
	respondWithError(w, http.StatusInternalServerError, err.Error())
}

// respondWithAssistantError 区分配置错误与调用错误
func respondWithAssistantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey):
		respondWithError(w, http.StatusInternalServerError, "配置错误: "+err.Error())
	case errors.Is(err, llm.ErrEmptyInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		utils.Error("调用大模型出错: %v", err)
		respondWithError(w, http.StatusBadGateway, err.Error())
	}
}
