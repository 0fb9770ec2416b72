package feature

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Features 是经过验证、定长和归一化的 [NumFrames, NumMelBins] 特征。
// 创建后不可变：只暴露只读访问与拷贝。
type Features struct {
	values []float32
}

// Prepare 按顺序执行 Validate → 解码 → Fit → Normalize。
// 失败时返回 VALIDATION_ERROR，不产生副作用。
func Prepare(t Tensor) (Features, error) {
	if err := Validate(t); err != nil {
		return Features{}, err
	}
	fitted := Fit(t.Shape[0], decodeF32(t))
	return Features{values: Normalize(fitted)}, nil
}

// Fit 将 frames 行的特征截断或在尾部补零到 NumFrames 行，返回新切片
func Fit(frames int, values []float32) []float32 {
	out := make([]float32, NumFrames*NumMelBins)
	n := min(max(frames, 0), NumFrames) * NumMelBins
	copy(out, values[:min(n, len(values))])
	return out
}

// Normalize 逐元素执行 (x - Mean) / (Std * 2)，返回新切片
func Normalize(values []float32) []float32 {
	out := make([]float32, len(values))
	scale := Std * 2
	for i, v := range values {
		out[i] = (v - Mean) / scale
	}
	return out
}

// Frames 恒为 NumFrames（零值 Features 返回 0）
func (f Features) Frames() int {
	return len(f.values) / NumMelBins
}

// Bins 恒为 NumMelBins
func (f Features) Bins() int {
	return NumMelBins
}

// Len 元素总数
func (f Features) Len() int {
	return len(f.values)
}

// At 返回 (row, col) 处的值
func (f Features) At(row, col int) float32 {
	return f.values[row*NumMelBins+col]
}

// AppendTo 将全部元素追加到 dst 并返回
func (f Features) AppendTo(dst []float32) []float32 {
	return append(dst, f.values...)
}

// Digest 返回特征值的 sha256 十六进制摘要，用作标签缓存键
func (f Features) Digest() string {
	h := sha256.New()
	var buf [4]byte
	for _, v := range f.values {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
