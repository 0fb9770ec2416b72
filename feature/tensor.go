package feature

import (
	"encoding/binary"
	"math"

	"github.com/BaSui01/soundsort/types"
)

// =============================================================================
// 📐 形状常量
// =============================================================================

const (
	// NumMelBins 每帧的 mel 滤波器数量（固定）
	NumMelBins = 128
	// NumFrames 送入模型前统一的时间轴长度
	NumFrames = 1024
	// Mean / Std 归一化常量：x' = (x - Mean) / (Std * 2)
	Mean float32 = -4.2677393
	Std  float32 = 4.5689974
)

// DType 张量元素类型，取值与 safetensors 头部的 dtype 字段一致
type DType string

const (
	DTypeBool DType = "BOOL"
	DTypeU8   DType = "U8"
	DTypeI8   DType = "I8"
	DTypeI16  DType = "I16"
	DTypeI32  DType = "I32"
	DTypeI64  DType = "I64"
	DTypeF16  DType = "F16"
	DTypeBF16 DType = "BF16"
	DTypeF32  DType = "F32"
	DTypeF64  DType = "F64"
)

var dtypeSizes = map[DType]int{
	DTypeBool: 1,
	DTypeU8:   1,
	DTypeI8:   1,
	DTypeI16:  2,
	DTypeI32:  4,
	DTypeI64:  8,
	DTypeF16:  2,
	DTypeBF16: 2,
	DTypeF32:  4,
	DTypeF64:  8,
}

// Size 返回单个元素的字节数，未知类型返回 0
func (d DType) Size() int {
	return dtypeSizes[d]
}

// Tensor 是从线上收到的原始张量，Data 为小端序字节
type Tensor struct {
	DType DType
	Shape []int
	Data  []byte
}

// NewTensorF32 按 [frames, NumMelBins] 形状编码 float32 特征
func NewTensorF32(frames int, values []float32) Tensor {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return Tensor{
		DType: DTypeF32,
		Shape: []int{frames, NumMelBins},
		Data:  data,
	}
}

// NumElements 返回形状各维乘积
func (t Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// byteSize 返回形状所需的字节数；维度为负或乘积溢出 int 时 ok 为 false
func byteSize(shape []int, dtype DType) (n int, ok bool) {
	n = dtype.Size()
	for _, d := range shape {
		if d < 0 || (d != 0 && n > math.MaxInt/d) {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// Validate 检查张量是否为 [frames, 128] 的 float32 数据
func Validate(t Tensor) error {
	if len(t.Shape) != 2 {
		return types.ValidationError("shape mismatch: expected 2 dimensions but got %d", len(t.Shape))
	}
	if t.Shape[0] < 0 {
		return types.ValidationError("shape mismatch: negative frame count %d", t.Shape[0])
	}
	if t.Shape[1] != NumMelBins {
		return types.ValidationError("shape mismatch: expected %d mel bins but got %d", NumMelBins, t.Shape[1])
	}
	if t.DType != DTypeF32 {
		return types.ValidationError("unsupported element type: %s (input must be a 32 bit float)", t.DType)
	}
	want, ok := byteSize(t.Shape, DTypeF32)
	if !ok {
		return types.ValidationError("shape mismatch: frame count %d too large", t.Shape[0])
	}
	if len(t.Data) != want {
		return types.ValidationError("shape mismatch: expected %d data bytes but got %d", want, len(t.Data))
	}
	return nil
}

// decodeF32 将已验证张量的字节解码为 float32
func decodeF32(t Tensor) []float32 {
	values := make([]float32, len(t.Data)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[4*i:]))
	}
	return values
}
