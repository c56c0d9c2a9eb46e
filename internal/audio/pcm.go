package audio

import (
	"encoding/binary"
	"math"
)

// EncodeInt16LE 将样本编码为小端字节序 PCM
func EncodeInt16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodeInt16LE 将小端字节序 PCM 解码为样本，末尾不足两字节的部分被忽略
func DecodeInt16LE(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// DownmixMono averages interleaved channels into a single channel.
func DownmixMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	for f := 0; f < frames; f++ {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += int(samples[f*channels+ch])
		}
		out[f] = int16(sum / channels)
	}
	return out
}

// Convert 将缓冲区转换到目标格式：先下混到目标声道，再重采样
func Convert(buf Buffer, target Format, resampler Resampler) (Buffer, error) {
	if !target.Valid() || !buf.Format.Valid() {
		return Buffer{}, ErrInvalidFormat
	}
	if resampler == nil {
		resampler = NewLinearResampler()
	}

	samples := buf.Samples
	channels := buf.Format.Channels
	if target.Channels == 1 && channels > 1 {
		samples = DownmixMono(samples, channels)
		channels = 1
	}
	if channels != target.Channels {
		return Buffer{}, ErrInvalidFormat
	}

	out, err := resampler.Resample(samples, buf.Format.SampleRate, target.SampleRate, channels)
	if err != nil {
		return Buffer{}, err
	}
	return Buffer{Samples: out, Format: target}, nil
}

// RMS 返回归一化到 [0,1] 的均方根电平
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
