package audio

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// FXConfig holds the radio effect constants. The defaults give a narrow,
// crushed, slightly hissy team-radio voice.
type FXConfig struct {
	HighPassHz     float64       `yaml:"high_pass_hz"`
	LowPassHz      float64       `yaml:"low_pass_hz"`
	ThresholdDB    float64       `yaml:"threshold_db"`
	Ratio          float64       `yaml:"ratio"`
	AttackMs       float64       `yaml:"attack_ms"`
	ReleaseMs      float64       `yaml:"release_ms"`
	BitDepth       int           `yaml:"bit_depth"`
	NoiseDB        float64       `yaml:"noise_db"`
	OutputRate     int           `yaml:"output_rate"`
	HeadroomDB     float64       `yaml:"headroom_db"`
	SquelchLength  time.Duration `yaml:"squelch_length"`
	TrailingGainDB float64       `yaml:"trailing_gain_db"`
}

func DefaultFXConfig() FXConfig {
	return FXConfig{
		HighPassHz:     500,
		LowPassHz:      3000,
		ThresholdDB:    -30,
		Ratio:          10,
		AttackMs:       5,
		ReleaseMs:      50,
		BitDepth:       8,
		NoiseDB:        -60,
		OutputRate:     8000,
		HeadroomDB:     0.1,
		SquelchLength:  500 * time.Millisecond,
		TrailingGainDB: -8,
	}
}

// Radio applies the team-radio effect chain and bookends the result with
// squelch clips.
type Radio struct {
	cfg      FXConfig
	leading  Buffer
	trailing Buffer

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRadio prepares the chain. Empty clip buffers are replaced with a
// generated burst of static.
func NewRadio(cfg FXConfig, leading, trailing Buffer) *Radio {
	if cfg.OutputRate <= 0 {
		cfg.OutputRate = DefaultFXConfig().OutputRate
	}
	if leading.Len() == 0 {
		leading = Static(cfg.SquelchLength, cfg.OutputRate, 1)
	}
	if trailing.Len() == 0 {
		trailing = Static(cfg.SquelchLength, cfg.OutputRate, 2)
	}

	return &Radio{
		cfg:      cfg,
		leading:  prepareClip(leading, cfg.SquelchLength, cfg.OutputRate, 0),
		trailing: prepareClip(trailing, cfg.SquelchLength, cfg.OutputRate, cfg.TrailingGainDB),
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
}

// LoadRadio builds the chain from squelch clip files. Either path may be
// empty.
func LoadRadio(ctx context.Context, cfg FXConfig, leadingPath, trailingPath string) (*Radio, error) {
	var leading, trailing Buffer
	var err error
	if leadingPath != "" {
		if leading, err = DecodeFile(ctx, leadingPath, cfg.OutputRate); err != nil {
			return nil, fmt.Errorf("load leading squelch: %w", err)
		}
	}
	if trailingPath != "" {
		if trailing, err = DecodeFile(ctx, trailingPath, cfg.OutputRate); err != nil {
			return nil, fmt.Errorf("load trailing squelch: %w", err)
		}
	}
	return NewRadio(cfg, leading, trailing), nil
}

func prepareClip(b Buffer, length time.Duration, rate int, gainDB float64) Buffer {
	clip := Resample(b, rate)
	if length > 0 {
		clip = clip.Slice(length)
	}
	if gainDB != 0 {
		clip = Gain(clip, gainDB)
	}
	return clip
}

// Apply runs the chain: band-pass, compression, bit reduction, noise floor,
// downsample, normalize, squelch bookends.
func (r *Radio) Apply(in Buffer) (Buffer, error) {
	if in.Len() == 0 || in.SampleRate <= 0 {
		return Buffer{}, ErrEmpty
	}

	cfg := r.cfg
	b := HighPass(in, cfg.HighPassHz)
	b = LowPass(b, cfg.LowPassHz)
	b = Compress(b, cfg.ThresholdDB, cfg.Ratio, cfg.AttackMs, cfg.ReleaseMs)
	b = Quantize(b, cfg.BitDepth)

	r.mu.Lock()
	b = AddNoise(b, cfg.NoiseDB, r.rng)
	r.mu.Unlock()

	b = Resample(b, cfg.OutputRate)
	b = Normalize(b, cfg.HeadroomDB)

	return Concat(r.leading, b, r.trailing), nil
}

// Static generates a short decaying burst of noise, used when no squelch
// recording is configured.
func Static(length time.Duration, rate int, seed uint64) Buffer {
	if length <= 0 || rate <= 0 {
		return Buffer{SampleRate: rate}
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	n := int(int64(length) * int64(rate) / int64(time.Second))
	out := Buffer{SampleRate: rate, Samples: make([]float64, n)}
	for i := range out.Samples {
		decay := 1 - float64(i)/float64(n)
		out.Samples[i] = (rng.Float64()*2 - 1) * 0.3 * decay
	}
	return out
}
