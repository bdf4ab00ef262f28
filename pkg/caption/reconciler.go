package caption

import (
	"sort"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// DefaultMicroGapThreshold 小于该值的句间停顿视为自然停顿（秒）
const DefaultMicroGapThreshold = 0.9

// Reconciler 在句子之间插入"无字幕"占位块，使字幕块首尾相接覆盖整个时间轴
type Reconciler struct {
	MicroGapThreshold float64
}

// NewReconciler 创建间隙处理器，threshold<=0 时使用默认阈值
func NewReconciler(threshold float64) *Reconciler {
	if threshold <= 0 {
		threshold = DefaultMicroGapThreshold
	}
	return &Reconciler{MicroGapThreshold: threshold}
}

// Reconcile 使用默认阈值处理间隙
func Reconcile(sentences []models.Segment, duration *float64) []models.Segment {
	return NewReconciler(DefaultMicroGapThreshold).Reconcile(sentences, duration)
}

// Reconcile 生成最终字幕块序列。
// 小于阈值的间隙并入前一个句子块（前一块是占位块或不存在时仍插入占位块），
// 其余间隙插入占位块；时长已知时超出时长的部分被裁掉，并在末尾补齐到 duration。
// 结果按位置重新编号。
func (r *Reconciler) Reconcile(sentences []models.Segment, duration *float64) []models.Segment {
	total := -1.0
	if duration != nil && *duration > 0 {
		total = utils.RoundTime(*duration)
	}

	sorted := make([]models.Segment, len(sentences))
	copy(sorted, sentences)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	blocks := make([]models.Segment, 0, len(sorted)*2+1)
	prevEnd := 0.0

	for _, s := range sorted {
		if total >= 0 {
			// 识别引擎给出的时间超出媒体时长
			if s.Start >= total || prevEnd >= total {
				utils.Warn("句子 %q 开始于 %.2f 秒，超出媒体时长 %.2f 秒，已丢弃", s.Text, s.Start, total)
				continue
			}
			if s.End > total {
				s.End = total
			}
		}
		gap := utils.RoundTime(s.Start - prevEnd)
		switch {
		case gap <= 0:
			// 与前一块重叠时对齐到前一块结束
			s.Start = prevEnd
			if s.End < s.Start {
				s.End = s.Start
			}
		case gap < r.MicroGapThreshold && len(blocks) > 0 && !blocks[len(blocks)-1].IsFiller():
			blocks[len(blocks)-1].End = utils.RoundTime(s.Start)
			s.Start = blocks[len(blocks)-1].End
		default:
			blocks = append(blocks, fillerBlock(prevEnd, s.Start))
		}
		blocks = append(blocks, s)
		prevEnd = s.End
	}

	if total >= 0 && prevEnd < total {
		blocks = append(blocks, fillerBlock(prevEnd, total))
	}

	for i := range blocks {
		blocks[i].ID = i
	}
	return blocks
}

func fillerBlock(start, end float64) models.Segment {
	return models.Segment{
		Start: utils.RoundTime(start),
		End:   utils.RoundTime(end),
		Text:  models.NoCaptionText,
	}
}
