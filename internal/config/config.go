package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sjawhar/pit-radio/internal/audio"
	"github.com/sjawhar/pit-radio/internal/llm"
)

// EnvPrefix is the namespace prefix for all pit-radio environment variables.
const EnvPrefix = "PIT_RADIO_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	DriverName       string   `yaml:"driver_name"`
	TickInterval     string   `yaml:"tick_interval"`
	CaptureWindow    string   `yaml:"capture_window"`
	OvertakeCooldown string   `yaml:"overtake_cooldown"`
	FuelThresholds   []int    `yaml:"fuel_thresholds"`
	TriggerWords     []string `yaml:"trigger_words"`

	Telemetry Telemetry `yaml:"telemetry"`
	LLM       LLM       `yaml:"llm"`
	TTS       TTS       `yaml:"tts"`
	STT       STT       `yaml:"stt"`
	Audio     Audio     `yaml:"audio"`
	Log       Log       `yaml:"log"`

	DBPath                string `yaml:"db_path"`
	RadioLogDir           string `yaml:"radio_log_dir"`
	HTTPAddr              string `yaml:"http_addr"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secrets, env vars only.
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
	DeepgramAPIKey  string `yaml:"-"`
}

type Telemetry struct {
	// Source is "gt7" or "replay".
	Source         string `yaml:"source"`
	PlayStationIP  string `yaml:"playstation_ip"`
	ReplayPath     string `yaml:"replay_path"`
	ReplayInterval string `yaml:"replay_interval"`
	StaleAfter     string `yaml:"stale_after"`
}

type LLM struct {
	// Model is provider/model, e.g. openai/gpt-4o.
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

type TTS struct {
	// Provider is "openai" or "command".
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	Voice        string  `yaml:"voice"`
	Speed        float64 `yaml:"speed"`
	Instructions string  `yaml:"instructions"`
	Command      string  `yaml:"command"`
}

type STT struct {
	// Provider is "openai", "deepgram" or "none".
	Provider string `yaml:"provider"`
	Language string `yaml:"language"`
}

type Audio struct {
	Dir           string         `yaml:"dir"`
	RecordingsDir string         `yaml:"recordings_dir"`
	SquelchStart  string         `yaml:"squelch_start"`
	SquelchEnd    string         `yaml:"squelch_end"`
	AckPath       string         `yaml:"ack_path"`
	SampleRate    int            `yaml:"sample_rate"`
	PlaybackRate  int            `yaml:"playback_rate"`
	Headless      bool           `yaml:"headless"`
	FX            audio.FXConfig `yaml:"fx"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func defaults() Config {
	return Config{
		DriverName:       "Jane Doe",
		TickInterval:     "1s",
		CaptureWindow:    "5s",
		OvertakeCooldown: "45s",
		FuelThresholds:   []int{50, 20, 10},
		TriggerWords:     []string{"radio", "really", "video"},
		Telemetry: Telemetry{
			Source:         "gt7",
			ReplayInterval: "1s",
			StaleAfter:     "3s",
		},
		LLM: LLM{Model: "openai/gpt-4o", Timeout: "10s"},
		TTS: TTS{Provider: "openai", Model: "tts-1", Voice: "onyx", Speed: 1},
		STT: STT{Provider: "openai", Language: "en"},
		Audio: Audio{
			Dir:           "data/tts",
			RecordingsDir: "data/races",
			SampleRate:    16000,
			PlaybackRate:  24000,
			FX:            audio.DefaultFXConfig(),
		},
		Log:                   Log{Level: "info"},
		DBPath:                "data/pit-radio.db",
		RadioLogDir:           "data/radio",
		HTTPAddr:              ":8080",
		GoogleCredentialsFile: "./service-account.json",
	}
}

// LoadEnvFile loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is fine.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

func (c *Config) ParsedTickInterval() time.Duration {
	return parseDuration(c.TickInterval, time.Second)
}

// ParsedCaptureWindow may return 0, which turns listening off.
func (c *Config) ParsedCaptureWindow() time.Duration {
	return parseDuration(c.CaptureWindow, 5*time.Second)
}

func (c *Config) ParsedOvertakeCooldown() time.Duration {
	return parseDuration(c.OvertakeCooldown, 45*time.Second)
}

func (c *Config) ParsedLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 10*time.Second)
}

func (c *Config) ParsedStaleAfter() time.Duration {
	return parseDuration(c.Telemetry.StaleAfter, 3*time.Second)
}

func (c *Config) ParsedReplayInterval() time.Duration {
	return parseDuration(c.Telemetry.ReplayInterval, time.Second)
}

// APIKey returns the secret for an LLM provider name.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	case "deepgram":
		return c.DeepgramAPIKey
	default:
		return ""
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	strs := map[string]*string{
		"DRIVER_NAME":             &cfg.DriverName,
		"TICK_INTERVAL":           &cfg.TickInterval,
		"CAPTURE_WINDOW":          &cfg.CaptureWindow,
		"OVERTAKE_COOLDOWN":       &cfg.OvertakeCooldown,
		"TELEMETRY_SOURCE":        &cfg.Telemetry.Source,
		"PLAYSTATION_IP":          &cfg.Telemetry.PlayStationIP,
		"REPLAY_PATH":             &cfg.Telemetry.ReplayPath,
		"STALE_AFTER":             &cfg.Telemetry.StaleAfter,
		"LLM_MODEL":               &cfg.LLM.Model,
		"LLM_TIMEOUT":             &cfg.LLM.Timeout,
		"TTS_PROVIDER":            &cfg.TTS.Provider,
		"TTS_VOICE":               &cfg.TTS.Voice,
		"TTS_COMMAND":             &cfg.TTS.Command,
		"STT_PROVIDER":            &cfg.STT.Provider,
		"STT_LANGUAGE":            &cfg.STT.Language,
		"AUDIO_DIR":               &cfg.Audio.Dir,
		"RECORDINGS_DIR":          &cfg.Audio.RecordingsDir,
		"SQUELCH_START":           &cfg.Audio.SquelchStart,
		"SQUELCH_END":             &cfg.Audio.SquelchEnd,
		"ACK_PATH":                &cfg.Audio.AckPath,
		"LOG_LEVEL":               &cfg.Log.Level,
		"LOG_FILE":                &cfg.Log.File,
		"DB_PATH":                 &cfg.DBPath,
		"RADIO_LOG_DIR":           &cfg.RadioLogDir,
		"HTTP_ADDR":               &cfg.HTTPAddr,
		"GDRIVE_FOLDER_ID":        &cfg.GDriveFolderID,
		"GOOGLE_CREDENTIALS_FILE": &cfg.GoogleCredentialsFile,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(os.Getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.Audio.SampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "FUEL_THRESHOLDS"); v != "" {
		if th := parseInts(v); len(th) > 0 {
			cfg.FuelThresholds = th
		}
	}
	if v := os.Getenv(EnvPrefix + "TRIGGER_WORDS"); v != "" {
		if words := parseWords(v); len(words) > 0 {
			cfg.TriggerWords = words
		}
	}
	if v := os.Getenv(EnvPrefix + "HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Audio.Headless = b
		}
	}
}

// loadSecrets prefers the prefixed variable and falls back to the name the
// provider SDKs use.
func loadSecrets(cfg *Config) {
	secret := func(name string) string {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			return v
		}
		return os.Getenv(name)
	}
	cfg.OpenAIAPIKey = secret("OPENAI_API_KEY")
	cfg.AnthropicAPIKey = secret("ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = secret("GEMINI_API_KEY")
	cfg.DeepgramAPIKey = secret("DEEPGRAM_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	switch cfg.Telemetry.Source {
	case "gt7":
		if cfg.Telemetry.PlayStationIP == "" {
			warnings = append(warnings, "No PlayStation address configured, telemetry is disabled. Set telemetry.playstation_ip or "+EnvPrefix+"PLAYSTATION_IP.")
		}
	case "replay":
		if cfg.Telemetry.ReplayPath == "" {
			warnings = append(warnings, "Replay source selected without telemetry.replay_path, telemetry is disabled.")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown telemetry source %q, telemetry is disabled.", cfg.Telemetry.Source))
	}

	if provider, _, err := llm.ParseModel(cfg.LLM.Model); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid llm.model %q, radio calls use canned lines.", cfg.LLM.Model))
	} else if cfg.APIKey(provider) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key for %s, radio calls use canned lines and no debrief is written.", provider))
	}

	switch cfg.TTS.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			warnings = append(warnings, "OpenAI API key not configured, the engineer cannot speak. Set "+EnvPrefix+"OPENAI_API_KEY.")
		}
	case "command":
		if strings.TrimSpace(cfg.TTS.Command) == "" {
			warnings = append(warnings, "tts.command is empty, the engineer cannot speak.")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown tts.provider %q, the engineer cannot speak.", cfg.TTS.Provider))
	}

	switch cfg.STT.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			warnings = append(warnings, "OpenAI API key not configured, driver questions are disabled.")
		}
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			warnings = append(warnings, "Deepgram API key not configured, driver questions are disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
		}
	case "none":
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown stt.provider %q, driver questions are disabled.", cfg.STT.Provider))
	}

	durations := []struct{ key, raw string }{
		{"tick_interval", cfg.TickInterval},
		{"capture_window", cfg.CaptureWindow},
		{"overtake_cooldown", cfg.OvertakeCooldown},
		{"llm.timeout", cfg.LLM.Timeout},
		{"telemetry.stale_after", cfg.Telemetry.StaleAfter},
		{"telemetry.replay_interval", cfg.Telemetry.ReplayInterval},
	}
	for _, d := range durations {
		if v, err := time.ParseDuration(strings.TrimSpace(d.raw)); err != nil || v < 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q, using the default.", d.key, d.raw))
		}
	}

	for _, th := range cfg.FuelThresholds {
		if th <= 0 || th >= 100 {
			warnings = append(warnings, fmt.Sprintf("Fuel threshold %d is outside 1-99 and will never fire.", th))
		}
	}

	return warnings
}

func parseInts(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}

func parseWords(raw string) []string {
	var words []string
	for _, part := range strings.Split(raw, ",") {
		if w := strings.ToLower(strings.TrimSpace(part)); w != "" {
			words = append(words, w)
		}
	}
	return words
}
