package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/soundsort/feature"
	"github.com/BaSui01/soundsort/types"
)

func mustFeatures(t *testing.T, fill float32) feature.Features {
	t.Helper()
	values := make([]float32, 4*feature.NumMelBins)
	for i := range values {
		values[i] = fill
	}
	f, err := feature.Prepare(feature.NewTensorF32(4, values))
	require.NoError(t, err)
	return f
}

// echoEngine returns, per item, logits whose first element is the item's first input value.
func echoEngine(classes int) EngineFunc {
	return func(_ context.Context, input []float32, batch, frames, bins int) ([]float32, error) {
		out := make([]float32, batch*classes)
		for i := 0; i < batch; i++ {
			out[i*classes] = input[i*frames*bins]
		}
		return out, nil
	}
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-7)
	assert.InDelta(t, 0.7310586, Sigmoid(1), 1e-6)
	assert.InDelta(t, 0.2689414, Sigmoid(-1), 1e-6)
	assert.InDelta(t, 1.0, Sigmoid(100), 1e-7)
	assert.InDelta(t, 0.0, Sigmoid(-100), 1e-7)
}

func TestStack(t *testing.T) {
	a, b := mustFeatures(t, 1), mustFeatures(t, 2)
	input, frames, err := Stack([]feature.Features{a, b})
	require.NoError(t, err)

	assert.Equal(t, feature.NumFrames, frames)
	require.Len(t, input, 2*feature.NumFrames*feature.NumMelBins)
	assert.Equal(t, a.At(0, 0), input[0])
	assert.Equal(t, b.At(0, 0), input[feature.NumFrames*feature.NumMelBins])
}

func TestStack_Inconsistent(t *testing.T) {
	_, _, err := Stack(nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrStack))

	_, _, err = Stack([]feature.Features{mustFeatures(t, 1), {}})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrStack))
	assert.Contains(t, err.Error(), "item 1")
}

func TestStackInto_ReusesBuffer(t *testing.T) {
	items := []feature.Features{mustFeatures(t, 1), mustFeatures(t, 2)}
	buf := make([]float32, 7, 2*items[0].Len())

	input, _, err := StackInto(buf, items)
	require.NoError(t, err)
	require.Len(t, input, 2*items[0].Len())
	assert.Same(t, &buf[:1][0], &input[0], "buffer with enough capacity is reused")

	small := make([]float32, 0, 8)
	input, _, err = StackInto(small, items)
	require.NoError(t, err)
	assert.Len(t, input, 2*items[0].Len())
}

func TestAdapter_PoolsInputBuffers(t *testing.T) {
	adapter := NewAdapter(echoEngine(527), zap.NewNop())
	items := []feature.Features{mustFeatures(t, 1), mustFeatures(t, 2)}

	for range 3 {
		_, err := adapter.StackAndInfer(context.Background(), items)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), adapter.buffers.Stats().Gets)
}

func TestAdapter_StackAndInfer(t *testing.T) {
	adapter := NewAdapter(echoEngine(527), zap.NewNop())
	items := []feature.Features{mustFeatures(t, 10), mustFeatures(t, -20), mustFeatures(t, 0)}

	out, err := adapter.StackAndInfer(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, row := range out {
		require.Len(t, row, 527)
		assert.InDelta(t, Sigmoid(items[i].At(0, 0)), row[0], 1e-6, "item %d keeps its position", i)
		assert.InDelta(t, 0.5, row[1], 1e-7)
	}
	assert.Greater(t, out[0][0], out[2][0])
	assert.Less(t, out[1][0], out[2][0])
}

func TestAdapter_EngineFailures(t *testing.T) {
	items := []feature.Features{mustFeatures(t, 1), mustFeatures(t, 2)}

	tests := []struct {
		name   string
		engine EngineFunc
	}{
		{
			name: "engine error",
			engine: func(context.Context, []float32, int, int, int) ([]float32, error) {
				return nil, errors.New("device lost")
			},
		},
		{
			name: "engine panic",
			engine: func(context.Context, []float32, int, int, int) ([]float32, error) {
				panic("boom")
			},
		},
		{
			name: "output not divisible by batch",
			engine: func(context.Context, []float32, int, int, int) ([]float32, error) {
				return make([]float32, 5), nil
			},
		},
		{
			name: "empty output",
			engine: func(context.Context, []float32, int, int, int) ([]float32, error) {
				return nil, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewAdapter(tt.engine, nil).StackAndInfer(context.Background(), items)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, types.IsCode(err, types.ErrInference))
		})
	}
}

func TestAdapter_StackErrorSkipsEngine(t *testing.T) {
	called := false
	adapter := NewAdapter(EngineFunc(func(context.Context, []float32, int, int, int) ([]float32, error) {
		called = true
		return nil, nil
	}), nil)

	_, err := adapter.StackAndInfer(context.Background(), []feature.Features{{}})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrStack))
	assert.False(t, called)
	assert.NoError(t, adapter.Close())
}
