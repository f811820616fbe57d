package laughtrack

import (
	"os"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/classify"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/detect"
)

type Config struct {
	Engine        string
	EngineOptions classify.Options
	Classifier    classify.Classifier
	TargetLabel   string
	Workers       int
	Partial       audio.PartialPolicy
	Convert       bool
	Downloader    audio.Downloader
	TempDir       string
	SampleRate    int
	Persist       bool
	DBPath        string
	Logger        Logger
	Storage       Storage
}

type Option func(*Config)

// WithEngine selects a named classifier backend (spectral, http, replay).
func WithEngine(name string, opts classify.Options) Option {
	return func(c *Config) {
		c.Engine = name
		c.EngineOptions = opts
	}
}

// WithClassifier installs a ready-made classifier; it takes precedence over
// WithEngine.
func WithClassifier(cl classify.Classifier) Option {
	return func(c *Config) {
		c.Classifier = cl
	}
}

func WithTargetLabel(label string) Option {
	return func(c *Config) {
		c.TargetLabel = label
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithPartialPolicy(p audio.PartialPolicy) Option {
	return func(c *Config) {
		c.Partial = p
	}
}

// WithConversion toggles the ffmpeg fallback for non-WAV input.
func WithConversion(enabled bool) Option {
	return func(c *Config) {
		c.Convert = enabled
	}
}

// WithDownloader sets how http(s) inputs are fetched before analysis.
func WithDownloader(d audio.Downloader) Option {
	return func(c *Config) {
		c.Downloader = d
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithPersistence records every successful analysis in the run history.
func WithPersistence(enabled bool) Option {
	return func(c *Config) {
		c.Persist = enabled
	}
}

// WithDBPath sets the SQLite file and turns persistence on.
func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
		c.Persist = path != "" || c.Persist
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithStorage installs a storage backend and turns persistence on.
func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
		c.Persist = storage != nil || c.Persist
	}
}

func defaultConfig() *Config {
	return &Config{
		Engine:      classify.BackendSpectral,
		TargetLabel: detect.DefaultLabel,
		Workers:     1,
		Partial:     audio.PadPartial,
		Convert:     true,
		Downloader:  audio.YTDLP{},
		TempDir:     os.TempDir(),
		SampleRate:  16000,
		Logger:      nil,
	}
}
