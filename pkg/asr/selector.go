package asr

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ccp-p/shadow-caption/pkg/caption"
	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// ServiceCreator 是创建ASR服务实例的函数类型
type ServiceCreator func(audioPath string, opts Options) (ASRService, error)

// ServiceStats 服务统计数据
type ServiceStats struct {
	SuccessCount int
	TotalCount   int
	Available    bool
}

// ASRSelector 语音服务选择器，负责在多个ASR服务之间进行负载均衡
type ASRSelector struct {
	mu              sync.RWMutex
	services        map[string]ServiceCreator // 服务创建函数
	weights         map[string]int            // 权重
	counters        map[string]int            // 使用计数
	stats           map[string]*ServiceStats  // 统计信息
	roundRobinIndex int                       // 轮询索引
	serviceList     []string                  // 按注册顺序的服务名称
	rng             *rand.Rand
}

// NewASRSelector 创建新的ASR服务选择器
func NewASRSelector() *ASRSelector {
	return &ASRSelector{
		services:    make(map[string]ServiceCreator),
		weights:     make(map[string]int),
		counters:    make(map[string]int),
		stats:       make(map[string]*ServiceStats),
		serviceList: make([]string, 0),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RegisterService 注册ASR服务
func (s *ASRSelector) RegisterService(name string, creator ServiceCreator, weight int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[name]; !exists {
		s.serviceList = append(s.serviceList, name)
	}
	s.services[name] = creator
	s.weights[name] = weight
	s.counters[name] = 0
	s.stats[name] = &ServiceStats{Available: true}

	utils.Log.Infof("注册ASR服务: %s, 权重: %d", name, weight)
}

// ServiceNames 已注册的服务名称
func (s *ASRSelector) ServiceNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.serviceList...)
}

// ReportResult 报告服务调用结果
func (s *ASRSelector) ReportResult(serviceName string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stat, exists := s.stats[serviceName]
	if !exists {
		return
	}
	if success {
		stat.SuccessCount++
	}
	stat.TotalCount++

	// 成功率过低时临时禁用
	if !success && stat.TotalCount > 5 && float64(stat.SuccessCount)/float64(stat.TotalCount) < 0.2 {
		stat.Available = false
		utils.Log.Warnf("ASR服务 %s 成功率过低，临时禁用", serviceName)
	} else if success && !stat.Available {
		stat.Available = true
		utils.Log.Infof("ASR服务 %s 恢复可用", serviceName)
	}
}

// SelectService 根据策略选择一个ASR服务
func (s *ASRSelector) SelectService(strategy string) (string, ServiceCreator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.services) == 0 {
		return "", nil, false
	}

	switch strategy {
	case "round_robin":
		return s.selectByRoundRobin()
	default: // weighted_random
		return s.selectByWeightedRandom()
	}
}

func (s *ASRSelector) availableServices() []string {
	available := make([]string, 0, len(s.serviceList))
	for _, name := range s.serviceList {
		if s.stats[name].Available {
			available = append(available, name)
		}
	}
	return available
}

// selectByRoundRobin 使用轮询策略选择服务
func (s *ASRSelector) selectByRoundRobin() (string, ServiceCreator, bool) {
	available := s.availableServices()
	if len(available) == 0 {
		return "", nil, false
	}

	selected := available[s.roundRobinIndex%len(available)]
	s.roundRobinIndex = (s.roundRobinIndex + 1) % len(available)
	s.counters[selected]++
	return selected, s.services[selected], true
}

// selectByWeightedRandom 使用加权随机策略选择服务
func (s *ASRSelector) selectByWeightedRandom() (string, ServiceCreator, bool) {
	available := s.availableServices()

	totalWeight := 0
	for _, name := range available {
		totalWeight += s.weights[name]
	}
	if totalWeight <= 0 {
		if len(available) == 0 {
			return "", nil, false
		}
		// 权重都为0时退化为第一个可用服务
		s.counters[available[0]]++
		return available[0], s.services[available[0]], true
	}

	r := s.rng.Intn(totalWeight)
	cumWeight := 0
	for _, name := range available {
		cumWeight += s.weights[name]
		if r < cumWeight {
			s.counters[name]++
			return name, s.services[name], true
		}
	}
	return "", nil, false
}

// GetStats 获取服务使用统计信息
func (s *ASRSelector) GetStats() map[string]map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]map[string]interface{})
	for name, stat := range s.stats {
		successRate := 0.0
		if stat.TotalCount > 0 {
			successRate = float64(stat.SuccessCount) / float64(stat.TotalCount) * 100
		}

		result[name] = map[string]interface{}{
			"count":        s.counters[name],
			"success_rate": fmt.Sprintf("%.1f%%", successRate),
			"available":    stat.Available,
			"weight":       s.weights[name],
		}
	}
	return result
}

// RunWithService 使用指定服务或自动选择服务执行识别。
// auto 模式下首选服务失败时按注册顺序尝试其余可用服务，返回实际使用的服务名
func (s *ASRSelector) RunWithService(ctx context.Context, audioPath string, serviceName string, opts Options, callback ProgressCallback) (*models.Transcript, string, error) {
	if serviceName != "auto" {
		s.mu.RLock()
		creator, ok := s.services[serviceName]
		s.mu.RUnlock()
		if !ok {
			return nil, "", fmt.Errorf("未知的ASR服务: %s", serviceName)
		}
		transcript, err := s.run(ctx, serviceName, creator, audioPath, opts, callback)
		return transcript, serviceName, err
	}

	first, creator, ok := s.SelectService("weighted_random")
	if !ok {
		return nil, "", fmt.Errorf("没有可用的ASR服务")
	}

	transcript, err := s.run(ctx, first, creator, audioPath, opts, callback)
	if err == nil || errors.Is(err, context.Canceled) {
		return transcript, first, err
	}
	lastErr := err

	s.mu.RLock()
	candidates := s.availableServices()
	s.mu.RUnlock()
	for _, name := range candidates {
		if name == first {
			continue
		}
		utils.Log.Warnf("ASR服务 %s 失败，尝试 %s: %v", first, name, lastErr)
		s.mu.RLock()
		creator := s.services[name]
		s.mu.RUnlock()
		transcript, err := s.run(ctx, name, creator, audioPath, opts, callback)
		if err == nil {
			return transcript, name, nil
		}
		lastErr = err
	}
	return nil, first, lastErr
}

func (s *ASRSelector) run(ctx context.Context, name string, creator ServiceCreator, audioPath string, opts Options, callback ProgressCallback) (*models.Transcript, error) {
	service, err := creator(audioPath, opts)
	if err != nil {
		return nil, fmt.Errorf("创建ASR服务 %s 失败: %w", name, err)
	}

	transcript, err := service.GetResult(ctx, callback)
	if err == nil && (transcript == nil || len(transcript.Utterances) == 0) {
		err = fmt.Errorf("ASR服务 %s 没有返回识别结果: %w", name, caption.ErrEmptyTranscript)
	}
	s.ReportResult(name, err == nil)
	if err != nil {
		return nil, err
	}
	return transcript, nil
}
