package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aei/innovision/internal/app"
	"github.com/aei/innovision/internal/capture"
	"github.com/aei/innovision/internal/config"
	"github.com/aei/innovision/internal/detector"
	"github.com/aei/innovision/internal/ocr"
	"github.com/aei/innovision/internal/pipeline"
	"github.com/aei/innovision/internal/server"
	"github.com/aei/innovision/internal/store"
	"github.com/aei/innovision/internal/tray"
	"github.com/aei/innovision/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "detection model (.onnx or .tflite)")
	flag.StringVar(&cfg.Camera, "camera", cfg.Camera, "camera index, video file or stream URL")
	flag.IntVar(&cfg.Rotation, "rotation", cfg.Rotation, "clockwise rotation that makes frames upright")
	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "smoothing mode: track or hold")
	flag.Float64Var(&cfg.Confidence, "conf", cfg.Confidence, "minimum detection confidence")
	flag.StringVar(&cfg.OCR, "ocr", cfg.OCR, "OCR plugin name or executable")
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "upload endpoint URL")
	flag.BoolVar(&cfg.Tray, "tray", cfg.Tray, "show the system tray menu")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("innovision stopped")
	}
}

func run(cfg *config.Config) error {
	log.Info().Str("addr", cfg.Addr).Str("model", cfg.ModelPath).Msg("Innovision - post-it capture")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	engine, err := detector.OpenEngine(detector.EngineConfig{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.ORTLibrary,
		Threads:     cfg.Threads,
	})
	if err != nil {
		return fmt.Errorf("open model: %w", err)
	}
	defer detector.ShutdownONNX()
	defer engine.Close()

	pcfg := pipeline.DefaultConfig()
	pcfg.ConfThreshold = cfg.Confidence
	pcfg.Mode = cfg.Mode
	if cfg.LabelsPath != "" {
		if pcfg.Label, err = detector.LoadLabel(cfg.LabelsPath); err != nil {
			return err
		}
	}
	pipe, err := pipeline.New(engine, pcfg)
	if err != nil {
		return err
	}

	uploader := upload.NewClient(initialEndpoint(cfg, st))
	hub := server.NewHub()

	acfg := app.Config{
		Store:      st,
		Camera:     capture.NewCamera(capture.Config{Source: cfg.Camera, Width: 1280, Height: 720, FPS: capture.IdleFPS}),
		Pipeline:   pipe,
		Uploader:   uploader,
		Hub:        hub,
		Rotation:   cfg.Rotation,
		AutoUpload: cfg.AutoUpload,
		ScanQR:     cfg.ScanQR,
	}
	if reader := openOCR(cfg); reader != nil {
		acfg.OCR = reader
		acfg.Suggester = ocr.NewSuggester(initialSuggestions(cfg, st))
	}

	a, err := app.New(acfg)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return fmt.Errorf("start camera: %w", err)
	}
	defer a.Stop()

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		log.Info().Str("dir", webDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Controller: a,
		Preview:    a,
		Hub:        hub,
	}).HTTPServer(cfg.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	if cfg.Tray {
		t := newTray(ctx, a, stop, overlayURL(cfg.Addr))
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine on macOS
		t.Run()
	}
	<-ctx.Done()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	default:
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// initialEndpoint prefers the configured backend, then the endpoint last
// saved by a QR scan or the settings API.
func initialEndpoint(cfg *config.Config, st *store.Store) upload.Endpoint {
	raw := cfg.Backend
	if raw == "" {
		if saved, err := st.Settings().Get(store.SettingEndpoint); err == nil {
			raw = saved
		}
	}
	if raw == "" {
		return upload.DefaultEndpoint
	}
	e, err := upload.ParseEndpoint(raw)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring invalid upload endpoint")
		return upload.DefaultEndpoint
	}
	return e
}

// initialSuggestions prefers the list saved through the settings API, then
// the configured list, then the built-in defaults.
func initialSuggestions(cfg *config.Config, st *store.Store) []string {
	if saved, err := st.Settings().Get(store.SettingSuggestions); err == nil {
		return ocr.ParseSuggestions(saved)
	}
	if len(cfg.Suggestions) > 0 {
		return cfg.Suggestions
	}
	return ocr.DefaultSuggestions
}

func openOCR(cfg *config.Config) ocr.Reader {
	if cfg.OCR == "" {
		return nil
	}
	mgr := ocr.NewManager(cfg.PluginDir)
	if err := mgr.Discover(); err != nil {
		log.Warn().Err(err).Str("dir", cfg.PluginDir).Msg("plugin discovery failed")
	}
	plugin, err := mgr.Resolve(cfg.OCR)
	if err != nil {
		log.Warn().Err(err).Str("ocr", cfg.OCR).Msg("OCR disabled")
		return nil
	}
	log.Info().Str("plugin", plugin.Manifest.Name).Msg("OCR enabled")
	return ocr.NewExecReader(plugin, cfg.OCRLanguage, app.DefaultOCRTimeout)
}

func newTray(ctx context.Context, a *app.App, quit func(), overlay string) *tray.Tray {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnReset(a.Reset)
	t.OnOverlay(func() {
		if err := openBrowser(overlay); err != nil {
			log.Warn().Err(err).Msg("failed to open browser")
		}
	})
	t.OnQuit(quit)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.SetLastLocked(a.LastLocked())
				t.SetCounts(a.Session().Counts())
			}
		}
	}()

	return t
}

func overlayURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir searches for the overlay assets in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
