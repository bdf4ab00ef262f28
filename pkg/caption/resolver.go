package caption

import (
	"context"
	"fmt"
	"strings"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// PunctuationRestorer 外部标点恢复服务：返回与输入等长、补全句末标点的token文本
type PunctuationRestorer interface {
	RestorePunctuation(ctx context.Context, tokens []string) ([]string, error)
}

// BoundaryInferrer 外部断句服务：返回句末token的下标（从0开始，包含）
type BoundaryInferrer interface {
	InferBoundaries(ctx context.Context, tokens []string) ([]int, error)
}

// BoundaryResult 外部服务的响应：PunctuatedTokens、BoundaryIndices 或 Unavailable
type BoundaryResult interface {
	boundaryResult()
}

// PunctuatedTokens 标点恢复后的token文本
type PunctuatedTokens []string

// BoundaryIndices 句子边界下标
type BoundaryIndices []int

// Unavailable 服务未配置、调用失败或响应不合法
type Unavailable struct {
	Reason error
}

func (PunctuatedTokens) boundaryResult() {}
func (BoundaryIndices) boundaryResult()  {}
func (Unavailable) boundaryResult()      {}

// Strategy 最终采用的断句策略
type Strategy string

const (
	StrategyPunctuation     Strategy = "punctuation"
	StrategyBoundaryIndices Strategy = "boundary_indices"
	StrategyLocal           Strategy = "local"
)

// Resolution 断句结果。Tokens 是新的序列，调用方传入的切片不会被修改
type Resolution struct {
	Tokens     []models.Token
	Boundaries []int
	Strategy   Strategy
}

// AppendTerminal 只有基于下标断句时才需要给句子补句号
func (r Resolution) AppendTerminal() bool {
	return r.Strategy == StrategyBoundaryIndices
}

// Resolver 依次尝试标点恢复、边界推断，最后退化为本地句点扫描
type Resolver struct {
	restorer PunctuationRestorer
	inferrer BoundaryInferrer
}

// NewResolver 创建断句器，restorer 和 inferrer 均可为nil
func NewResolver(restorer PunctuationRestorer, inferrer BoundaryInferrer) *Resolver {
	return &Resolver{restorer: restorer, inferrer: inferrer}
}

// Resolve 确定句子边界。外部服务的任何失败都只记录警告，不会返回错误
func (r *Resolver) Resolve(ctx context.Context, tokens []models.Token) Resolution {
	out := make([]models.Token, len(tokens))
	copy(out, tokens)

	if len(out) == 0 {
		return Resolution{Tokens: out, Strategy: StrategyLocal}
	}

	texts := TokenTexts(out)

	switch res := r.restore(ctx, texts).(type) {
	case PunctuatedTokens:
		if len(res) != len(out) {
			utils.Warn("标点恢复返回长度不匹配 (期望 %d, 实际 %d)，放弃该策略", len(out), len(res))
			break
		}
		for i, t := range res {
			out[i].Text = t
		}
		if boundaries := terminalBoundaries(out, ".!?"); len(boundaries) > 0 {
			utils.Debug("标点恢复成功，得到 %d 个句子边界", len(boundaries))
			return Resolution{Tokens: out, Boundaries: boundaries, Strategy: StrategyPunctuation}
		}
		// 标点恢复成功但没有句末标点，不再尝试边界推断
		return r.local(out)
	case Unavailable:
		utils.Warn("标点恢复不可用: %v", res.Reason)
	}

	switch res := r.infer(ctx, texts).(type) {
	case BoundaryIndices:
		boundaries := SanitizeBoundaries(res, len(out))
		if dropped := len(res) - len(boundaries); dropped > 0 {
			utils.Warn("边界推断返回了 %d 个越界或非递增的下标，已丢弃", dropped)
		}
		if len(boundaries) > 0 {
			utils.Debug("边界推断成功，得到 %d 个句子边界", len(boundaries))
			return Resolution{Tokens: out, Boundaries: boundaries, Strategy: StrategyBoundaryIndices}
		}
	case Unavailable:
		utils.Warn("边界推断不可用: %v", res.Reason)
	}

	return r.local(out)
}

func (r *Resolver) restore(ctx context.Context, texts []string) BoundaryResult {
	if r.restorer == nil {
		return Unavailable{Reason: fmt.Errorf("未配置标点恢复服务")}
	}
	restored, err := r.restorer.RestorePunctuation(ctx, texts)
	if err != nil {
		return Unavailable{Reason: err}
	}
	return PunctuatedTokens(restored)
}

func (r *Resolver) infer(ctx context.Context, texts []string) BoundaryResult {
	if r.inferrer == nil {
		return Unavailable{Reason: fmt.Errorf("未配置边界推断服务")}
	}
	indices, err := r.inferrer.InferBoundaries(ctx, texts)
	if err != nil {
		return Unavailable{Reason: err}
	}
	return BoundaryIndices(indices)
}

// local 使用识别引擎自身输出的句点断句，不会失败
func (r *Resolver) local(tokens []models.Token) Resolution {
	return Resolution{
		Tokens:     tokens,
		Boundaries: terminalBoundaries(tokens, "."),
		Strategy:   StrategyLocal,
	}
}

// terminalBoundaries 返回去掉尾部空白后以 terminals 中任一字符结尾的token下标
func terminalBoundaries(tokens []models.Token, terminals string) []int {
	var boundaries []int
	for i, t := range tokens {
		if endsWithAny(t.Text, terminals) {
			boundaries = append(boundaries, i)
		}
	}
	return boundaries
}

func endsWithAny(text, terminals string) bool {
	trimmed := strings.TrimRight(text, " \t\r\n")
	if trimmed == "" {
		return false
	}
	return strings.ContainsRune(terminals, rune(trimmed[len(trimmed)-1]))
}

// SanitizeBoundaries 只保留落在 [0, n-1] 内且严格递增的下标
func SanitizeBoundaries(indices []int, n int) []int {
	boundaries := make([]int, 0, len(indices))
	last := -1
	for _, idx := range indices {
		if idx < 0 || idx >= n || idx <= last {
			continue
		}
		boundaries = append(boundaries, idx)
		last = idx
	}
	return boundaries
}
