package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ProgressBar 进度条结构
type ProgressBar struct {
	Total      int       // 总步数
	Current    int       // 当前进度
	Prefix     string    // 前缀
	Suffix     string    // 后缀
	Width      int       // 进度条宽度
	FillChar   string    // 填充字符
	EmptyChar  string    // 空白字符
	StartTime  time.Time // 开始时间
	LastUpdate time.Time // 上次更新时间

	out io.Writer
	mu  sync.Mutex
}

// NewProgressBar 创建新的进度条，输出到标准输出
func NewProgressBar(total int, prefix string, suffix string) *ProgressBar {
	return newProgressBar(os.Stdout, total, prefix, suffix)
}

func newProgressBar(out io.Writer, total int, prefix, suffix string) *ProgressBar {
	if total <= 0 {
		total = 1
	}
	now := time.Now()
	return &ProgressBar{
		Total:      total,
		Prefix:     prefix,
		Suffix:     suffix,
		Width:      30,
		FillChar:   "█",
		EmptyChar:  "░",
		StartTime:  now,
		LastUpdate: now,
		out:        out,
	}
}

// Update 更新进度，超出总数时截断
func (p *ProgressBar) Update(current int, suffix string) {
	if current < 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if current > p.Total {
		current = p.Total
	}
	p.Current = current
	if suffix != "" {
		p.Suffix = suffix
	}
	p.LastUpdate = time.Now()
	p.draw()
}

// Increment 增加进度
func (p *ProgressBar) Increment(suffix string) {
	p.mu.Lock()
	next := p.Current + 1
	p.mu.Unlock()
	p.Update(next, suffix)
}

// Complete 完成进度条
func (p *ProgressBar) Complete(suffix string) {
	p.Update(p.Total, suffix)
	fmt.Fprintln(p.out)
}

// Percent 当前完成百分比
func (p *ProgressBar) Percent() float64 {
	return float64(p.Current) / float64(p.Total) * 100
}

// 绘制进度条
func (p *ProgressBar) draw() {
	ratio := float64(p.Current) / float64(p.Total)
	elapsed := time.Since(p.StartTime)

	// 估计剩余时间
	var remaining time.Duration
	if p.Current > 0 {
		remaining = time.Duration(float64(elapsed) / ratio * (1 - ratio))
	}

	line := fmt.Sprintf("\r%s %s %3.0f%% | %d/%d | %s<%s | %s",
		p.Prefix, p.render(), ratio*100, p.Current, p.Total,
		formatDuration(elapsed), formatDuration(remaining), p.Suffix)
	fmt.Fprint(p.out, color.CyanString(line))
}

func (p *ProgressBar) render() string {
	filled := int(float64(p.Current) / float64(p.Total) * float64(p.Width))
	if filled > p.Width {
		filled = p.Width
	}
	return "[" + strings.Repeat(p.FillChar, filled) + strings.Repeat(p.EmptyChar, p.Width-filled) + "]"
}

// String 返回进度条的字符串表示
func (p *ProgressBar) String() string {
	return fmt.Sprintf("%s %s %3.0f%% | %d/%d", p.Prefix, p.render(), p.Percent(), p.Current, p.Total)
}

// 格式化持续时间为 MM:SS 格式
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
