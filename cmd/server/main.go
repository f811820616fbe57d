package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/himanishpuri/LaughTrack/internal/config"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/classify"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/storage"
	"github.com/himanishpuri/LaughTrack/pkg/logger"
)

func main() {
	log := logger.GetLogger()

	fs := pflag.NewFlagSet("laughtrack-server", pflag.ExitOnError)
	fs.Int("port", 8080, "HTTP server port")
	fs.String("db", storage.DefaultDBFile, "Path to the SQLite run history")
	fs.String("temp", os.TempDir(), "Directory for converted audio")
	fs.Int("rate", 16000, "Sample rate used when converting non-WAV input")
	fs.String("engine", classify.BackendSpectral, "Classifier backend: spectral, http or replay")
	fs.String("engine-url", "", "Model server base URL for the http backend")
	fs.String("script", "", "JSON score script for the replay backend")
	fs.String("label", "laughter", "Label to report")
	fs.Int("workers", 1, "Windows classified concurrently per request")
	fs.Bool("drop-partial", false, "Drop a trailing partial window instead of zero-padding it")
	fs.String("yt-format", "ba", "yt-dlp format selector for /api/analyze/youtube")
	origins := fs.String("origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	fs.Parse(os.Args[1:])

	settings, err := config.Load(fs)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if lvl, ok := logger.ParseLevel(settings.LogLevel); ok {
		log.SetLevel(lvl)
	}
	dbPath := settings.DBPath
	if dbPath == "" {
		dbPath = storage.DefaultDBFile
	}

	partial := audio.PadPartial
	if settings.DropPartial {
		partial = audio.DropPartial
	}
	service, err := laughtrack.NewService(
		laughtrack.WithEngine(settings.Engine.Name, classify.Options{
			URL:        settings.Engine.URL,
			Timeout:    settings.Engine.Timeout,
			ScriptPath: settings.Engine.Script,
		}),
		laughtrack.WithTargetLabel(settings.Label),
		laughtrack.WithWorkers(settings.Workers),
		laughtrack.WithPartialPolicy(partial),
		laughtrack.WithTempDir(settings.TempDir),
		laughtrack.WithSampleRate(settings.SampleRate),
		laughtrack.WithDBPath(dbPath),
		laughtrack.WithDownloader(audio.YTDLP{
			Format:      settings.Download.Format,
			Timeout:     settings.Download.Timeout,
			AutoInstall: settings.Download.AutoInstall,
		}),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           settings.Server.Port,
		DBPath:         dbPath,
		UploadDir:      settings.Server.UploadDir,
		MaxUploadBytes: settings.Server.MaxUploadMB << 20,
		SampleRate:     settings.SampleRate,
		Engine:         settings.Engine.Name,
		Label:          settings.Label,
		Workers:        settings.Workers,
		AllowedOrigins: parseOrigins(*origins),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}

func parseOrigins(s string) []string {
	if strings.TrimSpace(s) == "*" {
		return []string{"*"}
	}
	origins := strings.Split(s, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
