package asr

import (
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// BaseASR 提供文件加载与结果缓存
type BaseASR struct {
	AudioPath  string // 音频文件路径
	FileBinary []byte // 文件二进制内容
	CRC32      uint32 // CRC32校验值
	CRC32Hex   string // 文件CRC32校验和（十六进制）
	UseCache   bool   // 是否使用缓存
	CacheDir   string // 缓存目录
}

// NewBaseASR 创建一个新的BaseASR实例
func NewBaseASR(audioPath string, opts Options) (*BaseASR, error) {
	baseASR := &BaseASR{
		AudioPath: audioPath,
		UseCache:  opts.UseCache,
		CacheDir:  opts.CacheDir,
	}
	if baseASR.CacheDir == "" {
		baseASR.CacheDir = "./cache"
	}

	if err := baseASR.loadFile(); err != nil {
		return nil, err
	}

	baseASR.calculateCRC32()
	return baseASR, nil
}

// loadFile 加载音频文件到内存
func (b *BaseASR) loadFile() error {
	info, err := os.Stat(b.AudioPath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("无效的音频路径 %s: %w", b.AudioPath, os.ErrNotExist)
	}

	utils.Log.Infof("从文件读取音频数据: %s", b.AudioPath)
	b.FileBinary, err = os.ReadFile(b.AudioPath)
	if err != nil {
		return fmt.Errorf("读取音频文件失败: %w", err)
	}
	return nil
}

// calculateCRC32 计算文件的CRC32校验和
func (b *BaseASR) calculateCRC32() {
	b.CRC32 = crc32.ChecksumIEEE(b.FileBinary)
	b.CRC32Hex = fmt.Sprintf("%08x", b.CRC32)
	utils.Log.Debugf("计算的CRC32校验和: %s", b.CRC32Hex)
}

// GetCacheKey 获取缓存键名
func (b *BaseASR) GetCacheKey(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, b.CRC32Hex)
}

func (b *BaseASR) cachePath(cacheKey string) string {
	return filepath.Join(b.CacheDir, cacheKey+".json")
}

// LoadFromCache 从缓存加载识别结果
func (b *BaseASR) LoadFromCache(cacheKey string) (*models.Transcript, bool) {
	if !b.UseCache {
		return nil, false
	}

	var transcript models.Transcript
	if err := utils.LoadJSONInto(b.cachePath(cacheKey), &transcript); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			utils.Log.Warnf("读取识别缓存失败: %v", err)
		}
		return nil, false
	}
	if len(transcript.Utterances) == 0 {
		return nil, false
	}
	return &transcript, true
}

// SaveToCache 保存识别结果到缓存
func (b *BaseASR) SaveToCache(cacheKey string, transcript *models.Transcript) error {
	if !b.UseCache || transcript == nil {
		return nil
	}
	if err := utils.SaveJSONFile(b.cachePath(cacheKey), transcript); err != nil {
		return fmt.Errorf("保存识别缓存失败: %w", err)
	}
	return nil
}

// withCache 命中缓存时直接返回，否则执行识别并写入缓存
func (b *BaseASR) withCache(prefix string, callback ProgressCallback, run func() (*models.Transcript, error)) (*models.Transcript, error) {
	cacheKey := b.GetCacheKey(prefix)
	if transcript, ok := b.LoadFromCache(cacheKey); ok {
		utils.Log.Infof("从缓存加载%s结果", prefix)
		reportProgress(callback, 100, "使用缓存")
		return transcript, nil
	}

	transcript, err := run()
	if err != nil {
		return nil, err
	}

	if len(transcript.Utterances) > 0 {
		if err := b.SaveToCache(cacheKey, transcript); err != nil {
			utils.Log.Warnf("保存%s结果到缓存失败: %v", prefix, err)
		}
	}
	return transcript, nil
}
