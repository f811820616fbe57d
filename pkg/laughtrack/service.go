// Package laughtrack finds laughter in recorded audio. It cuts a file into
// fixed, possibly overlapping windows, scores each with a classifier and
// keeps the windows whose target label clears a confidence threshold.
package laughtrack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/classify"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/detect"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/pipeline"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/report"
	"github.com/himanishpuri/LaughTrack/pkg/logger"
)

// ErrNoHistory is returned by the run history methods when the service was
// built without persistence.
var ErrNoHistory = errors.New("run history is disabled")

// laughService is the default implementation of the Service interface.
type laughService struct {
	engine  classify.Classifier
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	engine := cfg.Classifier
	if engine == nil {
		var err error
		engine, err = classify.New(cfg.Engine, cfg.EngineOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to create classifier: %w", err)
		}
	} else if cfg.Engine == classify.BackendSpectral {
		cfg.Engine = "custom"
	}

	var stor Storage
	if cfg.Persist {
		if cfg.Storage != nil {
			stor = cfg.Storage
		} else {
			var err error
			stor, err = NewSQLiteStorage(cfg.DBPath)
			if err != nil {
				return nil, fmt.Errorf("failed to create storage: %w", err)
			}
		}
	}

	return &laughService{
		engine:  engine,
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// Analyze runs the full detection pass over audioPath, a local file or an
// http(s) URL fetched with the configured Downloader. Nothing is returned
// unless every window was classified; the input and any downloaded or
// converted copy are released either way.
func (s *laughService) Analyze(ctx context.Context, audioPath string, params Params) (*Report, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s.log.Infof("Analyzing %s (window=%gs timescale=%d threshold=%g overlap=%g)",
		audioPath, params.WindowSeconds, params.Timescale, params.Threshold, params.Overlap)

	input := audioPath
	if audio.IsRemote(audioPath) {
		local, err := s.download(ctx, audioPath)
		if err != nil {
			return nil, err
		}
		defer os.Remove(local)
		input = local
	}

	var openOpts []audio.OpenOption
	if s.config.Convert {
		openOpts = append(openOpts, audio.WithConverter(s.config.TempDir, s.config.SampleRate))
	}
	src, err := audio.Open(ctx, input, openOpts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			s.log.Warnf("Closing %s: %v", src.Path(), err)
		}
	}()

	info := src.Info()
	s.log.Debugf("Decoded %s: %d Hz, %d ch, %d-bit, %s, %s",
		audioPath, info.SampleRate, info.Channels, info.BitDepth, info.Duration, humanize.Bytes(uint64(info.SizeBytes)))

	windows, err := src.Windows(params.windowConfig(s.config.Partial))
	if err != nil {
		return nil, err
	}
	s.log.Debugf("Windows of %d samples, %s trailing window", windows.WindowSamples(), s.config.Partial)

	agg := detect.NewAggregator(s.config.TargetLabel, params.Threshold)
	stats, err := pipeline.Run(ctx, windows, s.engine, agg, pipeline.WithWorkers(s.config.Workers))
	if err != nil {
		return nil, err
	}

	results := agg.Results()
	out, err := report.Serialize(results)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		AudioPath: audioPath,
		Params:    params,
		Label:     s.config.TargetLabel,
		Engine:    s.config.Engine,
		Info:      info,
		Windows:   stats.Windows,
		Events:    report.Sorted(results),
		JSON:      out,
		Elapsed:   stats.Elapsed,
	}
	s.log.Infof("Classified %d windows in %s with %d worker(s); %d %s event(s) at >= %g",
		stats.Windows, stats.Elapsed.Round(time.Millisecond), stats.Workers, len(rep.Events), agg.Label(), agg.Threshold())

	if s.storage != nil {
		id, err := s.storage.SaveRun(rep.run())
		if err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
		rep.RunID = id
		s.log.Debugf("Saved run %s", id)
	}
	return rep, nil
}

// download fetches a remote input into the temp dir. Errors wrap
// audio.ErrOpen like any other unreadable input.
func (s *laughService) download(ctx context.Context, mediaURL string) (string, error) {
	if s.config.Downloader == nil {
		return "", fmt.Errorf("%w: %s: remote input is disabled", audio.ErrOpen, mediaURL)
	}
	s.log.Infof("Downloading %s", mediaURL)
	local, err := s.config.Downloader.Download(ctx, mediaURL, s.config.TempDir)
	if err != nil {
		return "", fmt.Errorf("%w: downloading %s: %w", audio.ErrOpen, mediaURL, err)
	}
	if st, err := os.Stat(local); err == nil {
		s.log.Debugf("Downloaded %s to %s (%s)", mediaURL, local, humanize.Bytes(uint64(st.Size())))
	}
	return local, nil
}

// GetRun retrieves a stored run with its events.
func (s *laughService) GetRun(id string) (*Run, error) {
	if s.storage == nil {
		return nil, ErrNoHistory
	}
	return s.storage.GetRun(id)
}

// ListRuns returns stored runs, newest first.
func (s *laughService) ListRuns() ([]Run, error) {
	if s.storage == nil {
		return nil, ErrNoHistory
	}
	return s.storage.ListRuns()
}

// DeleteRun removes a stored run.
func (s *laughService) DeleteRun(id string) error {
	if s.storage == nil {
		return ErrNoHistory
	}
	return s.storage.DeleteRun(id)
}

// Close releases all resources held by the service.
func (s *laughService) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}
