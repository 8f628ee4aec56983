package audio

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
)

const defaultSampleRate = 16000

// Recorder keeps a transcript-in-audio of a race: every clip that goes out
// on the radio is appended, and the whole thing is encoded when the race
// ends.
type Recorder struct {
	audioDir   string
	sampleRate int

	mu      sync.Mutex
	raceID  string
	rawPath string
	rawFile *os.File

	encode func(rawPath, raceID string) (string, error)
}

func NewRecorder(audioDir string, sampleRate int) *Recorder {
	if audioDir == "" {
		audioDir = filepath.Join("data", "races")
	}
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}

	r := &Recorder{audioDir: audioDir, sampleRate: sampleRate}
	r.encode = r.defaultEncode
	return r
}

func (r *Recorder) StartSession(raceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.audioDir, 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	if r.rawFile != nil {
		_ = r.rawFile.Close()
	}

	rawPath := filepath.Join(r.audioDir, raceID+".pcm")
	rawFile, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw pcm file: %w", err)
	}

	r.raceID = raceID
	r.rawPath = rawPath
	r.rawFile = rawFile

	return nil
}

// Append adds a played clip to the current recording. It is a no-op when
// no race is being recorded.
func (r *Recorder) Append(b Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rawFile == nil {
		return nil
	}

	if _, err := r.rawFile.Write(Resample(b, r.sampleRate).PCM16()); err != nil {
		return fmt.Errorf("write raw pcm bytes: %w", err)
	}
	return nil
}

func (r *Recorder) EndSession() (string, error) {
	r.mu.Lock()
	if r.raceID == "" || r.rawFile == nil {
		r.mu.Unlock()
		return "", nil
	}

	raceID := r.raceID
	rawPath := r.rawPath
	rawFile := r.rawFile

	r.raceID = ""
	r.rawPath = ""
	r.rawFile = nil
	r.mu.Unlock()

	if err := rawFile.Close(); err != nil {
		return "", fmt.Errorf("close raw pcm file: %w", err)
	}

	audioPath, err := r.encode(rawPath, raceID)
	if err != nil {
		return "", err
	}

	_ = os.Remove(rawPath)
	return audioPath, nil
}

func (r *Recorder) defaultEncode(rawPath, raceID string) (string, error) {
	mp3Path := filepath.Join(r.audioDir, raceID+".mp3")

	if err := encodeWithFFmpeg(rawPath, mp3Path, r.sampleRate); err == nil {
		return mp3Path, nil
	}

	if err := encodeWithLame(rawPath, mp3Path, r.sampleRate); err == nil {
		return mp3Path, nil
	}

	wavPath := filepath.Join(r.audioDir, raceID+".wav")
	if err := pcmToWav(rawPath, wavPath, r.sampleRate); err != nil {
		return "", fmt.Errorf("encode wav fallback: %w", err)
	}

	return wavPath, nil
}

func encodeWithFFmpeg(rawPath, outputPath string, sampleRate int) error {
	cmd := exec.Command(
		"ffmpeg",
		"-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-i", rawPath,
		outputPath,
	)
	return cmd.Run()
}

func encodeWithLame(rawPath, outputPath string, sampleRate int) error {
	khz := float64(sampleRate) / 1000.0
	formatted := strconv.FormatFloat(khz, 'f', -1, 64)
	cmd := exec.Command(
		"lame",
		"-r",
		"-s", formatted,
		"--bitwidth", "16",
		"-m", "m",
		rawPath,
		outputPath,
	)
	return cmd.Run()
}

func pcmToWav(rawPath, wavPath string, sampleRate int) error {
	pcmData, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read raw pcm data: %w", err)
	}

	header, err := wavHeader(len(pcmData), sampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return fmt.Errorf("build wav header: %w", err)
	}

	if err := os.WriteFile(wavPath, append(header, pcmData...), 0o644); err != nil {
		return fmt.Errorf("write wav output: %w", err)
	}
	return nil
}
