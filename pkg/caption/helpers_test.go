package caption

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ccp-p/shadow-caption/pkg/models"
)

type mockRestorer struct {
	mock.Mock
}

func (m *mockRestorer) RestorePunctuation(ctx context.Context, tokens []string) ([]string, error) {
	args := m.Called(ctx, tokens)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockInferrer struct {
	mock.Mock
}

func (m *mockInferrer) InferBoundaries(ctx context.Context, tokens []string) ([]int, error) {
	args := m.Called(ctx, tokens)
	if v := args.Get(0); v != nil {
		return v.([]int), args.Error(1)
	}
	return nil, args.Error(1)
}

// scenarioTokens 四个首尾相接的token，覆盖 0-2 秒
func scenarioTokens() []models.Token {
	return []models.Token{
		{Text: "Hi", Start: 0.0, End: 0.5},
		{Text: " there.", Start: 0.5, End: 1.0},
		{Text: " I'm", Start: 1.0, End: 1.5},
		{Text: " Sam.", Start: 1.5, End: 2.0},
	}
}

// tokensFromWords 按给定时间连续排列单词，每个单词0.3秒
func tokensFromWords(start float64, words ...string) []models.Token {
	tokens := make([]models.Token, len(words))
	t := start
	for i, w := range words {
		tokens[i] = models.Token{Text: w, Start: t, End: t + 0.3}
		t += 0.3
	}
	return tokens
}

func floatPtr(v float64) *float64 {
	return &v
}
