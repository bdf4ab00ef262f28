package utils

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AudioToolsError 是处理流程错误的基础类型
type AudioToolsError struct {
	Message string
	Cause   error
}

// Error 实现error接口
func (e *AudioToolsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

// Unwrap 支持error chain
func (e *AudioToolsError) Unwrap() error {
	return e.Cause
}

// NewError 创建一个新的AudioToolsError
func NewError(message string, cause error) error {
	return &AudioToolsError{
		Message: message,
		Cause:   cause,
	}
}

// BackoffMode 重试间隔策略
type BackoffMode int

const (
	// BackoffLinear 第n次重试等待 n*RetryDelay
	BackoffLinear BackoffMode = iota
	// BackoffFixed 每次重试等待 RetryDelay
	BackoffFixed
)

// ErrorHandler 处理错误和重试
type ErrorHandler struct {
	MaxRetries int
	RetryDelay float64
	Backoff    BackoffMode
	ErrorStats map[string]map[string]int // 操作 -> 错误信息 -> 计数

	mu sync.Mutex
}

// NewErrorHandler 创建新的错误处理器
func NewErrorHandler(maxRetries int, retryDelay float64) *ErrorHandler {
	return &ErrorHandler{
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
		Backoff:    BackoffLinear,
		ErrorStats: make(map[string]map[string]int),
	}
}

// NewFixedErrorHandler 创建固定重试间隔的错误处理器
func NewFixedErrorHandler(maxRetries int, retryDelay float64) *ErrorHandler {
	h := NewErrorHandler(maxRetries, retryDelay)
	h.Backoff = BackoffFixed
	return h
}

// Retry 执行函数并在失败时重试
func (h *ErrorHandler) Retry(operation string, fn func() error) error {
	return h.RetryContext(context.Background(), operation, func(context.Context) error {
		return fn()
	})
}

// RetryContext 与Retry相同，等待期间可被ctx取消
func (h *ErrorHandler) RetryContext(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempts := h.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		h.updateErrorStats(operation, err.Error())

		if attempt < attempts-1 {
			delay := h.delayFor(attempt)
			Warn("操作 %s 失败 (尝试 %d/%d): %s", operation, attempt+1, attempts, err)
			Warn("等待 %.1f 秒后重试...", delay)
			select {
			case <-ctx.Done():
				return NewError(fmt.Sprintf("操作 %s 已取消", operation), ctx.Err())
			case <-time.After(time.Duration(delay * float64(time.Second))):
			}
		}
	}

	return NewError(fmt.Sprintf("操作 %s 重试 %d 次后仍然失败", operation, attempts), lastErr)
}

func (h *ErrorHandler) delayFor(attempt int) float64 {
	if h.Backoff == BackoffFixed {
		return h.RetryDelay
	}
	return h.RetryDelay * float64(attempt+1)
}

// SafeExecute 安全地执行函数，并在失败时进行清理
func (h *ErrorHandler) SafeExecute(operation string, fn func() error, cleanup func()) error {
	err := fn()
	if err != nil {
		h.updateErrorStats(operation, err.Error())

		if cleanup != nil {
			Info("执行清理操作...")
			cleanup()
		}

		return NewError(fmt.Sprintf("操作 %s 失败", operation), err)
	}
	return nil
}

// 更新错误统计
func (h *ErrorHandler) updateErrorStats(operation string, errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ErrorStats == nil {
		h.ErrorStats = make(map[string]map[string]int)
	}
	if h.ErrorStats[operation] == nil {
		h.ErrorStats[operation] = make(map[string]int)
	}
	h.ErrorStats[operation][errMsg]++
}

// GetErrorStats 获取错误统计信息的副本
func (h *ErrorHandler) GetErrorStats() map[string]map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	stats := make(map[string]map[string]int, len(h.ErrorStats))
	for op, errs := range h.ErrorStats {
		inner := make(map[string]int, len(errs))
		for msg, n := range errs {
			inner[msg] = n
		}
		stats[op] = inner
	}
	return stats
}

// PrintErrorStats 打印错误统计信息
func (h *ErrorHandler) PrintErrorStats() {
	stats := h.GetErrorStats()
	if len(stats) == 0 {
		Info("没有错误记录")
		return
	}

	Info("\n错误统计:")
	for operation, errors := range stats {
		Info("\n操作: %s", operation)
		for errMsg, count := range errors {
			Info("  - %s: %d次", errMsg, count)
		}
	}
}
