package notes

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// IndexFileName 笔记索引文件名，保存在笔记目录中
const IndexFileName = "notes_index.json"

// 笔记类型
const (
	TypeVideo    = "video"
	TypeLearning = "learning"
)

// ErrNoteNotFound 笔记不存在
var ErrNoteNotFound = errors.New("笔记不存在")

// Entry 笔记索引条目
type Entry struct {
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	TemplateRef string    `json:"template_ref,omitempty"`
}

// LearningNote 强化学习笔记的内容
type LearningNote struct {
	ChineseText      string
	EnglishText      string
	TemplateFilename string
	TemplateTitle    string
}

// Store 笔记目录及其索引，新笔记排在索引最前面
type Store struct {
	Dir string

	mu  sync.Mutex
	now func() time.Time
}

// NewStore 创建笔记存储
func NewStore(dir string) *Store {
	return &Store{Dir: dir, now: time.Now}
}

func (s *Store) indexPath() string {
	return filepath.Join(s.Dir, IndexFileName)
}

// loadIndex 读取索引，索引不存在或损坏时返回空列表
func (s *Store) loadIndex() []Entry {
	var entries []Entry
	if err := utils.LoadJSONInto(s.indexPath(), &entries); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			utils.Warn("读取笔记索引失败: %v", err)
		}
		return []Entry{}
	}
	return entries
}

// List 返回所有笔记，最新的在前
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadIndex()
}

// Path 返回笔记文件路径，文件名非法或笔记不存在时返回错误
func (s *Store) Path(filename string) (string, error) {
	name, err := utils.SafeFileName(filename)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, name)
	if name == IndexFileName || !utils.CheckFileExists(path) {
		return "", fmt.Errorf("%s: %w", name, ErrNoteNotFound)
	}
	return path, nil
}

// Content 读取笔记内容
func (s *Store) Content(filename string) (string, error) {
	path, err := s.Path(filename)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取笔记失败: %w", err)
	}
	return string(data), nil
}

// Save 写入笔记文件并登记到索引，同名笔记的旧条目会被替换
func (s *Store) Save(filename, content, title, noteType, templateRef string) (Entry, error) {
	name, err := utils.SafeFileName(filename)
	if err != nil {
		return Entry{}, err
	}
	if name == IndexFileName {
		return Entry{}, fmt.Errorf("非法文件名: %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := utils.EnsureDirExists(s.Dir); err != nil {
		return Entry{}, fmt.Errorf("创建笔记目录失败: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name), []byte(content), 0644); err != nil {
		return Entry{}, fmt.Errorf("保存笔记失败: %w", err)
	}

	entry := Entry{
		Filename:    name,
		Title:       title,
		Type:        noteType,
		CreatedAt:   s.now(),
		TemplateRef: templateRef,
	}
	entries := removeEntry(s.loadIndex(), name)
	entries = append([]Entry{entry}, entries...)
	if err := utils.SaveJSONFile(s.indexPath(), entries); err != nil {
		return Entry{}, fmt.Errorf("保存笔记索引失败: %w", err)
	}

	utils.Info("笔记已保存: %s", name)
	return entry, nil
}

// SaveLearning 保存中英对照的学习笔记，文件名由时间戳和原文哈希生成
func (s *Store) SaveLearning(note LearningNote) (Entry, error) {
	if strings.TrimSpace(note.ChineseText) == "" || strings.TrimSpace(note.EnglishText) == "" {
		return Entry{}, errors.New("中文原文和英文翻译不能为空")
	}

	now := s.now()
	sum := md5.Sum([]byte(note.ChineseText))
	filename := fmt.Sprintf("learning_%s_%s.md", now.Format("20060102_150405"), hex.EncodeToString(sum[:])[:8])

	var b strings.Builder
	b.WriteString("# 强化学习笔记\n\n")
	fmt.Fprintf(&b, "**创建时间**: %s\n\n", now.Format("2006-01-02 15:04:05"))
	if note.TemplateFilename != "" && note.TemplateTitle != "" {
		fmt.Fprintf(&b, "**参考模板**: %s\n\n", note.TemplateTitle)
	}
	b.WriteString("---\n\n## 中文原文\n\n")
	b.WriteString(note.ChineseText + "\n\n")
	b.WriteString("---\n\n## 英文翻译\n\n")
	b.WriteString(note.EnglishText + "\n")

	return s.Save(filename, b.String(), learningTitle(note.ChineseText), TypeLearning, note.TemplateFilename)
}

// Delete 删除笔记文件并从索引移除
func (s *Store) Delete(filename string) error {
	name, err := utils.SafeFileName(filename)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadIndex()
	path := filepath.Join(s.Dir, name)
	inIndex := len(removeEntry(entries, name)) != len(entries)
	if name == IndexFileName || (!inIndex && !utils.CheckFileExists(path)) {
		return fmt.Errorf("%s: %w", name, ErrNoteNotFound)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("删除笔记失败: %w", err)
	}
	if inIndex {
		if err := utils.SaveJSONFile(s.indexPath(), removeEntry(entries, name)); err != nil {
			return fmt.Errorf("保存笔记索引失败: %w", err)
		}
	}
	utils.Info("笔记已删除: %s", name)
	return nil
}

func removeEntry(entries []Entry, filename string) []Entry {
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Filename != filename {
			kept = append(kept, e)
		}
	}
	return kept
}

// learningTitle 取原文前20个字符作为标题
func learningTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= 20 {
		return text
	}
	return string(runes[:20]) + "..."
}
