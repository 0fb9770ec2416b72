// =============================================================================
// 📦 测试数据工厂 - fbank 特征张量
// =============================================================================
// TaggedTensor 把一个整数标记写进张量，经过 Prepare 后仍可用 Tag 还原，
// 便于在批处理测试中追踪请求顺序与期望标签。
// =============================================================================
package fixtures

import (
	"math"

	"github.com/BaSui01/soundsort/feature"
	"github.com/BaSui01/soundsort/policy"
	"github.com/BaSui01/soundsort/types"
)

// taggedFrames 标记张量的帧数
const taggedFrames = 4

// ZeroTensor 返回全零张量
func ZeroTensor(frames int) feature.Tensor {
	return feature.NewTensorF32(frames, make([]float32, frames*feature.NumMelBins))
}

// RampTensor 返回逐元素递增的非零张量
func RampTensor(frames int) feature.Tensor {
	values := make([]float32, frames*feature.NumMelBins)
	for i := range values {
		values[i] = float32(i%997) + 1
	}
	return feature.NewTensorF32(frames, values)
}

// TaggedTensor 返回所有元素都等于 tag 的张量
func TaggedTensor(tag int) feature.Tensor {
	values := make([]float32, taggedFrames*feature.NumMelBins)
	for i := range values {
		values[i] = float32(tag)
	}
	return feature.NewTensorF32(taggedFrames, values)
}

// TaggedFeatures 返回 Prepare 后的 TaggedTensor
func TaggedFeatures(tag int) feature.Features {
	f, err := feature.Prepare(TaggedTensor(tag))
	if err != nil {
		panic(err)
	}
	return f
}

// Tag 从 Prepare 后的特征还原标记
func Tag(f feature.Features) int {
	raw := float64(f.At(0, 0))*float64(feature.Std)*2 + float64(feature.Mean)
	return int(math.Round(raw))
}

// LabelForTag 标记对应的期望标签
func LabelForTag(tag int) types.Label {
	labels := types.Labels()
	return labels[((tag%len(labels))+len(labels))%len(labels)]
}

// Activations 返回经过标签策略后得到 label 的 527 维激活向量
func Activations(label types.Label) []float32 {
	v := make([]float32, 527)
	for i := range v {
		v[i] = 0.05
	}
	switch label {
	case types.LabelSpeech:
		v[policy.SpeechIndex] = 0.9
	case types.LabelMusic:
		v[policy.MusicIndex] = 0.9
	case types.LabelNoise:
		v[policy.NoiseIndex] = 0.9
	}
	return v
}

// FbankBody 把张量编码为 safetensors 请求体
func FbankBody(t feature.Tensor) []byte {
	body, err := feature.EncodeFbank(t)
	if err != nil {
		panic(err)
	}
	return body
}
