package feature

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/soundsort/types"
)

func rawBundle(header string, data []byte) []byte {
	out := make([]byte, 8, 8+len(header)+len(data))
	binary.LittleEndian.PutUint64(out, uint64(len(header)))
	out = append(out, header...)
	return append(out, data...)
}

func TestEncodeBundle_LayoutIsAligned(t *testing.T) {
	body, err := EncodeFbank(NewTensorF32(2, rampValues(2)))
	require.NoError(t, err)

	n := binary.LittleEndian.Uint64(body[:8])
	assert.Zero(t, n%8, "header must be padded to 8 bytes")
	assert.Equal(t, int(8+n)+2*NumMelBins*4, len(body))
}

func TestDecodeFbank_RoundTrip(t *testing.T) {
	values := rampValues(7)
	body, err := EncodeFbank(NewTensorF32(7, values))
	require.NoError(t, err)

	tensor, err := DecodeFbank(body)
	require.NoError(t, err)
	assert.Equal(t, DTypeF32, tensor.DType)
	assert.Equal(t, []int{7, NumMelBins}, tensor.Shape)
	assert.Equal(t, values, decodeF32(tensor))
}

func TestDecodeBundle_MultipleTensorsAndMetadata(t *testing.T) {
	body, err := EncodeBundle(map[string]Tensor{
		"fbank": NewTensorF32(1, make([]float32, NumMelBins)),
		"ids":   {DType: DTypeI64, Shape: []int{2}, Data: make([]byte, 16)},
	}, map[string]string{"source": "unit-test"})
	require.NoError(t, err)

	b, err := DecodeBundle(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"fbank", "ids"}, b.Names())
	assert.Equal(t, "unit-test", b.Metadata["source"])

	ids, err := b.Tensor("ids")
	require.NoError(t, err)
	assert.Equal(t, DTypeI64, ids.DType)
	assert.Len(t, ids.Data, 16)
}

func TestDecodeBundle_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "empty body", body: nil},
		{name: "short prefix", body: []byte{1, 2, 3}},
		{name: "header longer than body", body: rawBundle("{}", nil)[:9]},
		{name: "not json", body: rawBundle("not json", nil)},
		{name: "unknown dtype", body: rawBundle(`{"fbank":{"dtype":"X9","shape":[1],"data_offsets":[0,4]}}`, make([]byte, 4))},
		{name: "offsets outside data", body: rawBundle(`{"fbank":{"dtype":"F32","shape":[1],"data_offsets":[0,8]}}`, make([]byte, 4))},
		{name: "span does not match shape", body: rawBundle(`{"fbank":{"dtype":"F32","shape":[2],"data_offsets":[0,4]}}`, make([]byte, 4))},
		{name: "negative dimension", body: rawBundle(`{"fbank":{"dtype":"F32","shape":[-1],"data_offsets":[0,0]}}`, nil)},
		{name: "byte size wraps to zero", body: rawBundle(`{"fbank":{"dtype":"F32","shape":[36028797018963968,128],"data_offsets":[0,0]}}`, nil)},
		{name: "element count overflows", body: rawBundle(`{"fbank":{"dtype":"F32","shape":[4611686018427387904,4],"data_offsets":[0,0]}}`, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBundle(tt.body)
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.ErrValidation))
		})
	}
}

func TestDecodeFbank_MissingTensor(t *testing.T) {
	body, err := EncodeBundle(map[string]Tensor{"mfcc": NewTensorF32(1, make([]float32, NumMelBins))}, nil)
	require.NoError(t, err)

	_, err = DecodeFbank(body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"fbank" not found`)
}

func TestEncodeBundle_RejectsInconsistentTensor(t *testing.T) {
	_, err := EncodeBundle(map[string]Tensor{"fbank": {DType: DTypeF32, Shape: []int{2, NumMelBins}, Data: make([]byte, 4)}}, nil)
	assert.Error(t, err)

	_, err = EncodeBundle(map[string]Tensor{"__metadata__": NewTensorF32(0, nil)}, nil)
	assert.Error(t, err)
}

func TestBundle_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frames := rapid.IntRange(0, 16).Draw(t, "frames")
		values := rapid.SliceOfN(rapid.Float32Range(-50, 50), frames*NumMelBins, frames*NumMelBins).Draw(t, "values")

		body, err := EncodeFbank(NewTensorF32(frames, values))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		tensor, err := DecodeFbank(body)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		got := decodeF32(tensor)
		if len(got) != len(values) {
			t.Fatalf("decoded %d values, want %d", len(got), len(values))
		}
		for i := range got {
			if got[i] != values[i] {
				t.Fatalf("value %d: %v != %v", i, got[i], values[i])
			}
		}
	})
}
