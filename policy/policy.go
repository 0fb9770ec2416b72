package policy

import (
	"fmt"
	"math"

	"github.com/BaSui01/soundsort/types"
)

// AudioSet 527 类词表中的固定下标
const (
	SpeechIndex = 0
	MusicIndex  = 137
	NoiseIndex  = 513

	// MinClasses 激活向量至少需要的长度
	MinClasses = NoiseIndex + 1

	// Threshold Speech 与 Music 同时低于该值时判为 Noise
	Threshold float32 = 0.5
)

// Scores 是从激活向量中取出的三个概念分数
type Scores struct {
	Speech float32
	Music  float32
	Noise  float32
}

// Extract 从一条经过 sigmoid 的激活向量中取出三个分数
func Extract(activations []float32) (Scores, error) {
	if len(activations) < MinClasses {
		return Scores{}, fmt.Errorf("activation vector has %d classes, need at least %d", len(activations), MinClasses)
	}
	s := Scores{
		Speech: activations[SpeechIndex],
		Music:  activations[MusicIndex],
		Noise:  activations[NoiseIndex],
	}
	for _, v := range [...]float32{s.Speech, s.Music, s.Noise} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return Scores{}, fmt.Errorf("non-finite activation score %v", v)
		}
	}
	return s, nil
}

// Decide 应用判定规则：
//
//   - Speech < 0.5 且 Music < 0.5：Noise
//   - 否则取三者中严格最大者，平分时按 Speech、Music、Noise 的先后取前者
func Decide(s Scores) types.Label {
	if s.Speech < Threshold && s.Music < Threshold {
		return types.LabelNoise
	}
	label, best := types.LabelSpeech, s.Speech
	if s.Music > best {
		label, best = types.LabelMusic, s.Music
	}
	if s.Noise > best {
		label = types.LabelNoise
	}
	return label
}

// Classify 组合 Extract 与 Decide
func Classify(activations []float32) (types.Label, error) {
	s, err := Extract(activations)
	if err != nil {
		return types.LabelUnknown, err
	}
	return Decide(s), nil
}
