package caption

import (
	"context"
	"strings"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// Generation 一次字幕生成的完整输出
type Generation struct {
	Document  *models.CaptionDocument
	Sentences []models.Segment // 补间隙之前的句子
	Strategy  Strategy
}

// Generator 把识别结果转换为首尾相接的字幕块
type Generator struct {
	resolver           *Resolver
	reconciler         *Reconciler
	maxSegmentDuration float64
	language           string
}

// NewGenerator 根据配置创建字幕生成器，resolver 为nil时只使用本地断句
func NewGenerator(resolver *Resolver, cfg *models.Config) *Generator {
	if resolver == nil {
		resolver = NewResolver(nil, nil)
	}
	g := &Generator{
		resolver:           resolver,
		reconciler:         NewReconciler(DefaultMicroGapThreshold),
		maxSegmentDuration: DefaultMaxSegmentDuration,
		language:           "en",
	}
	if cfg != nil {
		g.reconciler = NewReconciler(cfg.MicroGapThreshold)
		if cfg.MaxSegmentDuration > 0 {
			g.maxSegmentDuration = cfg.MaxSegmentDuration
		}
		if cfg.Language != "" {
			g.language = cfg.Language
		}
	}
	return g
}

// Generate 生成字幕文档
func (g *Generator) Generate(ctx context.Context, transcript *models.Transcript) (*models.CaptionDocument, error) {
	gen, err := g.GenerateDetailed(ctx, transcript)
	if err != nil {
		return nil, err
	}
	return gen.Document, nil
}

// GenerateDetailed 生成字幕文档并返回中间结果。
// 带词级时间戳的语句段走 Aggregate → Resolve → BuildSentences，
// 没有词级时间戳的语句段用 SplitLongSegment 拆分，最后统一补间隙。
func (g *Generator) GenerateDetailed(ctx context.Context, transcript *models.Transcript) (*Generation, error) {
	if transcript == nil || len(transcript.Utterances) == 0 {
		return nil, ErrEmptyTranscript
	}

	tokens, text := Aggregate(transcript.Utterances)
	if text == "" && len(tokens) == 0 {
		return nil, ErrEmptyTranscript
	}

	strategy := StrategyLocal
	var sentences []models.Segment
	if transcript.HasWordTimestamps() && len(tokens) > 0 {
		resolution := g.resolver.Resolve(ctx, tokens)
		strategy = resolution.Strategy
		sentences = BuildSentences(resolution.Tokens, resolution.Boundaries, resolution.AppendTerminal())
	}

	coarse := 0
	for _, u := range transcript.Utterances {
		uText := strings.TrimSpace(u.Text)
		if len(u.Words) > 0 || uText == "" {
			continue
		}
		for _, piece := range SplitLongSegment(uText, u.Start, u.End, g.maxSegmentDuration) {
			piece.Start = utils.RoundTime(piece.Start)
			piece.End = utils.RoundTime(piece.End)
			sentences = append(sentences, piece)
			coarse++
		}
	}

	if len(sentences) == 0 {
		return nil, ErrEmptyTranscript
	}

	blocks := g.reconciler.Reconcile(sentences, transcript.Duration)

	language := transcript.Language
	if language == "" {
		language = g.language
	}

	utils.WithFields(map[string]interface{}{
		"strategy":  strategy,
		"tokens":    len(tokens),
		"sentences": len(sentences),
		"coarse":    coarse,
		"blocks":    len(blocks),
	}).Info("字幕生成完成")

	return &Generation{
		Document: &models.CaptionDocument{
			Text:     text,
			Language: language,
			Segments: blocks,
		},
		Sentences: sentences,
		Strategy:  strategy,
	}, nil
}
