package audio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/himanishpuri/LaughTrack/pkg/utils"
)

// ErrNoDownloader is returned when remote input is given but yt-dlp is not
// available.
var ErrNoDownloader = errors.New("yt-dlp not found in PATH")

// Downloader fetches remote media into outputDir and returns the local path.
// The caller owns the returned file.
type Downloader interface {
	Download(ctx context.Context, mediaURL, outputDir string) (string, error)
}

// IsRemote reports whether input is an http(s) URL rather than a local path.
func IsRemote(input string) bool {
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// YTDLP downloads the best audio stream of a video page with yt-dlp. The
// result is whatever container the site serves (m4a, webm, opus...), which
// Open converts through ffmpeg.
type YTDLP struct {
	Format      string        // yt-dlp format selector, "ba" when empty
	Timeout     time.Duration // applied when ctx has no deadline, 3m when zero
	AutoInstall bool          // fetch and cache a yt-dlp binary if none is found
}

// DownloadAudio fetches mediaURL with the default YTDLP settings.
func DownloadAudio(ctx context.Context, mediaURL, outputDir string) (string, error) {
	return YTDLP{}.Download(ctx, mediaURL, outputDir)
}

func (y YTDLP) Download(ctx context.Context, mediaURL, outputDir string) (string, error) {
	if !IsRemote(mediaURL) {
		return "", fmt.Errorf("not an http(s) URL: %q", mediaURL)
	}
	if _, ok := ctx.Deadline(); !ok {
		timeout := y.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Minute
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if y.AutoInstall {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			return "", fmt.Errorf("%w: install failed: %w", ErrNoDownloader, err)
		}
	} else if _, err := exec.LookPath("yt-dlp"); err != nil {
		return "", ErrNoDownloader
	}

	format := y.Format
	if format == "" {
		format = "ba"
	}

	// the placeholder only reserves a unique stem; yt-dlp adds the extension
	stem, err := utils.ReservePath(outputDir, "download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	defer os.Remove(stem)

	dl := ytdlp.New().
		Format(format).
		NoPlaylist().
		NoWarnings().
		Output(stem + ".%(ext)s")

	if _, err := dl.Run(ctx, mediaURL); err != nil {
		removeDownloads(stem)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("yt-dlp download failed: %w", err)
	}

	path, err := findDownload(stem)
	if err != nil {
		removeDownloads(stem)
		return "", err
	}
	return path, nil
}

func findDownload(stem string) (string, error) {
	matches, _ := filepath.Glob(stem + ".*")
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("downloaded audio not found next to %s", stem)
}

func removeDownloads(stem string) {
	matches, _ := filepath.Glob(stem + ".*")
	for _, m := range matches {
		os.Remove(m)
	}
}
