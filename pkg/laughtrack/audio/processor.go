package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/LaughTrack/pkg/utils"
)

// ErrNoFFmpeg is returned when conversion is needed but ffmpeg is not on PATH.
var ErrNoFFmpeg = errors.New("ffmpeg not found in PATH")

type ConvertWAVConfig struct {
	SampleRate int // e.g. 16000, 22050, 44100
}

// ConvertToMonoWAV converts any ffmpeg-readable input (mp4, opus, mp3...)
// into a uniquely named 16-bit mono PCM WAV under outputDir and returns its
// path. The caller owns the returned file.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if outputDir == "" {
		outputDir = os.TempDir()
	}

	if _, err := os.Stat(inputPath); err != nil {
		return "", err
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return "", ErrNoFFmpeg
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath, err := utils.ReservePath(outputDir, base+"-*.wav")
	if err != nil {
		return "", err
	}

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-vn",
		"-ac", "1", // mono
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if combined, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, combined)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		os.Remove(outputPath)
		return "", err
	}

	return outputPath, nil
}
