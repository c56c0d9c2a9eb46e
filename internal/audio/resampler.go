package audio

import (
	"fmt"
	"math"
)

// Resampler 采样率转换器，输入输出均为交错排列的 int16 样本
type Resampler interface {
	Resample(input []int16, inputRate, outputRate, channels int) ([]int16, error)
}

// LinearResampler 线性插值重采样，适合实时语音，不追求音质
type LinearResampler struct{}

func NewLinearResampler() *LinearResampler {
	return &LinearResampler{}
}

// Resample 对每个输出帧按 pos = out * in/out 取相邻两帧做线性插值
func (r *LinearResampler) Resample(input []int16, inputRate, outputRate, channels int) ([]int16, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: input=%d, output=%d", inputRate, outputRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channels: %d", channels)
	}

	inFrames := len(input) / channels
	if inFrames == 0 {
		return []int16{}, nil
	}
	if inputRate == outputRate {
		out := make([]int16, inFrames*channels)
		copy(out, input)
		return out, nil
	}

	step := float64(inputRate) / float64(outputRate)
	outFrames := int(math.Ceil(float64(inFrames) / step))
	out := make([]int16, outFrames*channels)

	last := inFrames - 1
	for f := 0; f < outFrames; f++ {
		pos := float64(f) * step
		i0 := int(pos)
		if i0 > last {
			i0 = last
		}
		i1 := i0 + 1
		if i1 > last {
			i1 = last
		}
		frac := pos - float64(i0)
		if frac > 1 {
			frac = 1
		}

		for ch := 0; ch < channels; ch++ {
			a := float64(input[i0*channels+ch])
			b := float64(input[i1*channels+ch])
			out[f*channels+ch] = clampInt16(a + (b-a)*frac)
		}
	}

	return out, nil
}

func clampInt16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
