package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/LaughTrack/internal/config"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/classify"
	"github.com/himanishpuri/LaughTrack/pkg/logger"
)

const usage = "Usage: laughtrack <input_audio_path> <window_duration_seconds> <preferred_timescale> <confidence_threshold> <overlap_factor>"

var (
	errArgumentCount = errors.New("expected exactly 5 arguments")
	errArgumentParse = errors.New("invalid argument")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code. All
// user-facing output, including usage and errors, goes to stdout; logs go
// to stderr.
func run(ctx context.Context, args []string, stdout io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stdout)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errArgumentCount):
		fmt.Fprintln(stdout, usage)
	case errors.Is(err, errArgumentParse):
		fmt.Fprintf(stdout, "Error: %v\n", err)
		fmt.Fprintln(stdout, usage)
	default:
		fmt.Fprintf(stdout, "Error: %v\n", err)
	}
	return 1
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "laughtrack <input_audio_path> <window_duration_seconds> <preferred_timescale> <confidence_threshold> <overlap_factor>",
		Short: "Detect laughter in an audio file and print time-keyed confidences as JSON",
		Long: "Detect laughter in an audio file and print time-keyed confidences as JSON.\n\n" +
			"input_audio_path may also be an http(s) video or audio URL; it is fetched with yt-dlp first.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 5 {
				return fmt.Errorf("%w, got %d", errArgumentCount, len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          analyze,
	}

	f := cmd.Flags()
	f.String("engine", classify.BackendSpectral, "classifier backend: spectral, http or replay")
	f.String("engine-url", "", "model server base URL for the http backend")
	f.String("script", "", "JSON score script for the replay backend")
	f.String("label", "laughter", "label to report")
	f.Int("workers", 1, "number of windows classified concurrently")
	f.Bool("drop-partial", false, "drop a trailing window shorter than the window duration instead of zero-padding it")
	f.String("db", "", "record the run in this SQLite file")
	f.String("temp", os.TempDir(), "directory for converted audio")
	f.Int("rate", 16000, "sample rate used when converting non-WAV input")
	f.String("yt-format", "ba", "yt-dlp format selector for URL input")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errArgumentParse, err)
	})
	return cmd
}

func analyze(cmd *cobra.Command, args []string) error {
	params, err := parseParams(args[1:])
	if err != nil {
		return err
	}

	settings, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if lvl, ok := logger.ParseLevel(settings.LogLevel); ok {
		logger.SetLevel(lvl)
	}

	svc, err := createService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	rep, err := svc.Analyze(cmd.Context(), args[0], params)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rep.JSON)
	return nil
}

func createService(s *config.Settings) (laughtrack.Service, error) {
	partial := audio.PadPartial
	if s.DropPartial {
		partial = audio.DropPartial
	}
	opts := []laughtrack.Option{
		laughtrack.WithEngine(s.Engine.Name, classify.Options{
			URL:        s.Engine.URL,
			Timeout:    s.Engine.Timeout,
			ScriptPath: s.Engine.Script,
		}),
		laughtrack.WithTargetLabel(s.Label),
		laughtrack.WithWorkers(s.Workers),
		laughtrack.WithPartialPolicy(partial),
		laughtrack.WithTempDir(s.TempDir),
		laughtrack.WithSampleRate(s.SampleRate),
		laughtrack.WithDownloader(audio.YTDLP{
			Format:      s.Download.Format,
			Timeout:     s.Download.Timeout,
			AutoInstall: s.Download.AutoInstall,
		}),
	}
	if s.DBPath != "" {
		opts = append(opts, laughtrack.WithDBPath(s.DBPath))
	}
	return laughtrack.NewService(opts...)
}

// parseParams reads window duration, timescale, threshold and overlap.
func parseParams(args []string) (laughtrack.Params, error) {
	var p laughtrack.Params

	window, err := strconv.ParseFloat(args[0], 64)
	if err != nil || math.IsNaN(window) || math.IsInf(window, 0) || window <= 0 {
		return p, fmt.Errorf("%w: window_duration_seconds must be a positive number, got %q", errArgumentParse, args[0])
	}
	timescale, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil || timescale <= 0 {
		return p, fmt.Errorf("%w: preferred_timescale must be a positive integer, got %q", errArgumentParse, args[1])
	}
	threshold, err := strconv.ParseFloat(args[2], 64)
	if err != nil || math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return p, fmt.Errorf("%w: confidence_threshold must be a number in [0, 1], got %q", errArgumentParse, args[2])
	}
	overlap, err := strconv.ParseFloat(args[3], 64)
	if err != nil || math.IsNaN(overlap) || overlap < 0 || overlap >= 1 {
		return p, fmt.Errorf("%w: overlap_factor must be a number in [0, 1), got %q", errArgumentParse, args[3])
	}

	return laughtrack.Params{
		WindowSeconds: window,
		Timescale:     int32(timescale),
		Threshold:     threshold,
		Overlap:       overlap,
	}, nil
}
