package audio

import (
	"math"
	"math/rand/v2"
)

// HighPass applies a first-order RC high-pass filter.
func HighPass(b Buffer, cutoffHz float64) Buffer {
	out := b.Clone()
	if len(out.Samples) == 0 || cutoffHz <= 0 || b.SampleRate <= 0 {
		return out
	}

	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / float64(b.SampleRate)
	alpha := rc / (rc + dt)

	prevIn := b.Samples[0]
	prevOut := b.Samples[0]
	for i := 1; i < len(b.Samples); i++ {
		in := b.Samples[i]
		prevOut = alpha * (prevOut + in - prevIn)
		prevIn = in
		out.Samples[i] = prevOut
	}
	return out
}

// LowPass applies a first-order RC low-pass filter.
func LowPass(b Buffer, cutoffHz float64) Buffer {
	out := b.Clone()
	if len(out.Samples) == 0 || cutoffHz <= 0 || b.SampleRate <= 0 {
		return out
	}

	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / float64(b.SampleRate)
	alpha := dt / (rc + dt)

	prev := b.Samples[0]
	for i := 1; i < len(b.Samples); i++ {
		prev += alpha * (b.Samples[i] - prev)
		out.Samples[i] = prev
	}
	return out
}

// Compress reduces gain above thresholdDB by ratio, following the signal
// envelope with the given attack and release times in milliseconds.
func Compress(b Buffer, thresholdDB, ratio, attackMs, releaseMs float64) Buffer {
	out := b.Clone()
	if len(out.Samples) == 0 || ratio <= 1 || b.SampleRate <= 0 {
		return out
	}

	coeff := func(ms float64) float64 {
		if ms <= 0 {
			return 0
		}
		return math.Exp(-1 / (ms / 1000 * float64(b.SampleRate)))
	}
	attack := coeff(attackMs)
	release := coeff(releaseMs)

	var env float64
	for i, s := range b.Samples {
		level := math.Abs(s)
		if level > env {
			env = attack*env + (1-attack)*level
		} else {
			env = release*env + (1-release)*level
		}

		envDB := toDB(env)
		if envDB <= thresholdDB {
			continue
		}
		reduction := (envDB - thresholdDB) * (1 - 1/ratio)
		out.Samples[i] = s * fromDB(-reduction)
	}
	return out
}

// Quantize reduces resolution to the given bit depth.
func Quantize(b Buffer, bits int) Buffer {
	out := b.Clone()
	if bits <= 0 || bits >= 16 {
		return out
	}
	steps := float64(int(1)<<(bits-1)) - 1
	for i, s := range out.Samples {
		out.Samples[i] = math.Round(clamp(s)*steps) / steps
	}
	return out
}

// AddNoise overlays white noise at levelDB relative to full scale.
func AddNoise(b Buffer, levelDB float64, rng *rand.Rand) Buffer {
	out := b.Clone()
	amp := fromDB(levelDB)
	for i := range out.Samples {
		out.Samples[i] += (rng.Float64()*2 - 1) * amp
	}
	return out
}

// Normalize scales b so its peak sits headroomDB below full scale.
func Normalize(b Buffer, headroomDB float64) Buffer {
	out := b.Clone()
	peak := out.Peak()
	if peak == 0 {
		return out
	}
	scale := fromDB(-headroomDB) / peak
	for i := range out.Samples {
		out.Samples[i] *= scale
	}
	return out
}

// Gain scales b by db decibels.
func Gain(b Buffer, db float64) Buffer {
	out := b.Clone()
	g := fromDB(db)
	for i := range out.Samples {
		out.Samples[i] *= g
	}
	return out
}

// Resample converts b to toRate using linear interpolation, which is
// adequate for speech.
func Resample(b Buffer, toRate int) Buffer {
	if b.SampleRate == toRate || toRate <= 0 || b.SampleRate <= 0 {
		return b.Clone()
	}
	if len(b.Samples) == 0 {
		return Buffer{SampleRate: toRate}
	}

	ratio := float64(b.SampleRate) / float64(toRate)
	n := int(float64(len(b.Samples)) / ratio)
	out := Buffer{SampleRate: toRate, Samples: make([]float64, n)}

	last := len(b.Samples) - 1
	for i := range out.Samples {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out.Samples[i] = b.Samples[last]
			continue
		}
		frac := pos - float64(idx)
		out.Samples[i] = b.Samples[idx] + frac*(b.Samples[idx+1]-b.Samples[idx])
	}
	return out
}

func toDB(amp float64) float64 {
	if amp <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amp)
}

func fromDB(db float64) float64 {
	return math.Pow(10, db/20)
}

func clamp(s float64) float64 {
	return math.Max(-1, math.Min(1, s))
}
