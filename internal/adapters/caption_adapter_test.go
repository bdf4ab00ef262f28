package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ccp-p/shadow-caption/pkg/models"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) CaptionFile(ctx context.Context, path string) (*models.Result, error) {
	args := m.Called(ctx, path)
	result, _ := args.Get(0).(*models.Result)
	return result, args.Error(1)
}

func (m *mockRunner) HasCaption(path string) bool {
	return m.Called(path).Bool(0)
}

func TestCaptionAdapterProcessFile(t *testing.T) {
	runner := new(mockRunner)
	runner.On("CaptionFile", mock.Anything, "/v/ok.mp3").Return(&models.Result{SegmentCount: 3}, nil)
	runner.On("CaptionFile", mock.Anything, "/v/bad.mp3").Return(nil, errors.New("asr down"))

	adapter := NewCaptionAdapter(context.Background(), runner)
	var seen []string
	adapter.OnResult = func(path string, result *models.Result, err error) {
		seen = append(seen, path)
	}

	assert.True(t, adapter.ProcessFile("/v/ok.mp3"))
	assert.False(t, adapter.ProcessFile("/v/bad.mp3"))
	assert.Equal(t, []string{"/v/ok.mp3", "/v/bad.mp3"}, seen)
	runner.AssertExpectations(t)
}

func TestCaptionAdapterCancelled(t *testing.T) {
	runner := new(mockRunner)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := NewCaptionAdapter(ctx, runner)
	assert.False(t, adapter.ProcessFile("/v/a.mp3"))
	runner.AssertNotCalled(t, "CaptionFile", mock.Anything, mock.Anything)
}

func TestCaptionAdapterIsRecognizedFile(t *testing.T) {
	runner := new(mockRunner)
	runner.On("HasCaption", "/v/a.mp3").Return(true)
	runner.On("HasCaption", "/v/b.mp3").Return(false)

	adapter := NewCaptionAdapter(context.Background(), runner)
	assert.True(t, adapter.IsRecognizedFile("/v/a.mp3"))
	assert.False(t, adapter.IsRecognizedFile("/v/b.mp3"))
}
