package feature

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/BaSui01/soundsort/types"
)

// =============================================================================
// 📦 safetensors 编解码
// =============================================================================
// 布局: 8 字节小端 u64 头长度 N | N 字节 JSON 头 | 数据区
// JSON 头: {"<name>": {"dtype": "F32", "shape": [..], "data_offsets": [b, e]},
//           "__metadata__": {"k": "v"}}
// =============================================================================

const (
	// FbankTensorName 请求体中必须携带的张量名
	FbankTensorName = "fbank"

	metadataKey   = "__metadata__"
	maxHeaderSize = 100 << 20
)

type headerEntry struct {
	DType       DType  `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// Bundle 是一组命名张量
type Bundle struct {
	tensors  map[string]Tensor
	Metadata map[string]string
}

// DecodeBundle 解析 safetensors 字节流。返回的张量数据与 data 共享底层内存。
func DecodeBundle(data []byte) (*Bundle, error) {
	if len(data) < 8 {
		return nil, malformed("body shorter than header length prefix")
	}
	n := binary.LittleEndian.Uint64(data[:8])
	if n > maxHeaderSize || n > uint64(len(data)-8) {
		return nil, malformed("header length %d out of range", n)
	}
	header := data[8 : 8+n]
	buf := data[8+n:]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(header, &raw); err != nil {
		return nil, malformed("invalid header").WithCause(err)
	}

	b := &Bundle{tensors: make(map[string]Tensor, len(raw))}
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &b.Metadata); err != nil {
				return nil, malformed("invalid metadata").WithCause(err)
			}
			continue
		}

		var entry headerEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			return nil, malformed("invalid entry for tensor %q", name).WithCause(err)
		}
		t, err := entry.tensor(name, buf)
		if err != nil {
			return nil, err
		}
		b.tensors[name] = t
	}
	return b, nil
}

func (e headerEntry) tensor(name string, buf []byte) (Tensor, error) {
	if e.DType.Size() == 0 {
		return Tensor{}, malformed("tensor %q has unknown dtype %q", name, e.DType)
	}
	want, ok := byteSize(e.Shape, e.DType)
	if !ok {
		return Tensor{}, malformed("tensor %q has invalid shape %v", name, e.Shape)
	}
	begin, end := e.DataOffsets[0], e.DataOffsets[1]
	if begin < 0 || begin > end || end > len(buf) {
		return Tensor{}, malformed("tensor %q offsets [%d, %d] outside data of %d bytes", name, begin, end, len(buf))
	}
	if end-begin != want {
		return Tensor{}, malformed("tensor %q spans %d bytes, shape needs %d", name, end-begin, want)
	}
	return Tensor{DType: e.DType, Shape: e.Shape, Data: buf[begin:end]}, nil
}

// Tensor 返回指定名字的张量
func (b *Bundle) Tensor(name string) (Tensor, error) {
	t, ok := b.tensors[name]
	if !ok {
		return Tensor{}, types.ValidationError("tensor %q not found in bundle", name)
	}
	return t, nil
}

// Names 返回排序后的张量名
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.tensors))
	for name := range b.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodeBundle 序列化命名张量；张量按名字排序写入数据区，头部用空格补齐到 8 字节对齐
func EncodeBundle(tensors map[string]Tensor, metadata map[string]string) ([]byte, error) {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if name == metadataKey {
			return nil, fmt.Errorf("tensor name %q is reserved", metadataKey)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(tensors)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}
	offset := 0
	for _, name := range names {
		t := tensors[name]
		if want, ok := byteSize(t.Shape, t.DType); !ok || t.DType.Size() == 0 || len(t.Data) != want {
			return nil, fmt.Errorf("tensor %q: %d data bytes do not match %s%v", name, len(t.Data), t.DType, t.Shape)
		}
		shape := t.Shape
		if shape == nil {
			shape = []int{}
		}
		header[name] = headerEntry{
			DType:       t.DType,
			Shape:       shape,
			DataOffsets: [2]int{offset, offset + len(t.Data)},
		}
		offset += len(t.Data)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}
	if pad := len(headerJSON) % 8; pad != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte(" "), 8-pad)...)
	}

	out := make([]byte, 8, 8+len(headerJSON)+offset)
	binary.LittleEndian.PutUint64(out, uint64(len(headerJSON)))
	out = append(out, headerJSON...)
	for _, name := range names {
		out = append(out, tensors[name].Data...)
	}
	return out, nil
}

// DecodeFbank 解析请求体并取出 fbank 张量
func DecodeFbank(body []byte) (Tensor, error) {
	b, err := DecodeBundle(body)
	if err != nil {
		return Tensor{}, err
	}
	return b.Tensor(FbankTensorName)
}

// EncodeFbank 将单个 fbank 张量序列化为请求体
func EncodeFbank(t Tensor) ([]byte, error) {
	return EncodeBundle(map[string]Tensor{FbankTensorName: t}, nil)
}

func malformed(format string, args ...any) *types.Error {
	return types.ValidationError("malformed tensor bundle: "+format, args...)
}
