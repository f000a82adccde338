// Package app wires camera capture, post-it detection, OCR, upload and
// persistence into the running Innovision service.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aei/innovision/internal/capture"
	"github.com/aei/innovision/internal/detector"
	"github.com/aei/innovision/internal/geometry"
	"github.com/aei/innovision/internal/ocr"
	"github.com/aei/innovision/internal/pipeline"
	"github.com/aei/innovision/internal/session"
	"github.com/aei/innovision/internal/store"
	"github.com/aei/innovision/internal/tracker"
	"github.com/aei/innovision/internal/upload"
)

// Defaults for optional Config fields.
const (
	DefaultOCRTimeout = 5 * time.Second
	DefaultOCREvery   = 5
	DefaultQREvery    = 10
)

// Uploader sends locked notes to the backend.
type Uploader interface {
	Upload(ctx context.Context, notes []session.Note, jpeg []byte) (upload.Response, error)
	Endpoint() upload.Endpoint
	SetEndpoint(e upload.Endpoint)
}

// Publisher broadcasts snapshots to overlay clients.
type Publisher interface {
	Publish(v any) error
}

// Config holds configuration options for the application.
type Config struct {
	Store    *store.Store
	Camera   capture.Camera
	Pipeline *pipeline.Pipeline

	// Optional collaborators. A nil OCR reader leaves note text to the user.
	OCR      ocr.Reader
	Uploader Uploader
	Hub      Publisher
	// Suggester snaps OCR readings to expected note texts when set.
	Suggester *ocr.Suggester

	// Rotation is the clockwise rotation that makes camera frames upright.
	Rotation int

	MotionThresh float64
	AutoUpload   bool
	ScanQR       bool
	OCRTimeout   time.Duration
	// OCREvery re-reads text of an unlocked note every N frames.
	OCREvery int
}

// Snapshot is what overlay clients receive after each frame.
type Snapshot struct {
	SessionID string         `json:"sessionId"`
	Frame     int            `json:"frame"`
	Timestamp time.Time      `json:"timestamp"`
	Notes     []session.Note `json:"notes"`
	Locked    int            `json:"locked"`
	Uploaded  int            `json:"uploaded"`
}

// App is the main application that orchestrates detection, OCR and upload.
type App struct {
	config   Config
	rotation geometry.Rotation
	session  *session.Session

	camera capture.Camera
	frames *capture.Latest[*capture.Frame]
	motion *capture.MotionDetector
	rate   *capture.RateController
	qr     *capture.QRScanner

	enabled bool
	cancel  context.CancelFunc
	workers sync.WaitGroup
	uploads sync.WaitGroup
	mu      sync.RWMutex

	previewMu  sync.RWMutex
	preview    []byte
	previewSeq uint64

	lastLocked string
	processed  int
}

// New creates an App. Optional fields of config get their defaults.
func New(config Config) (*App, error) {
	if config.Pipeline == nil {
		return nil, errors.New("app: pipeline is required")
	}
	rotation, err := geometry.ParseRotation(config.Rotation)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if config.MotionThresh <= 0 {
		config.MotionThresh = 1.0 // 1% of pixels changed
	}
	if config.OCRTimeout <= 0 {
		config.OCRTimeout = DefaultOCRTimeout
	}
	if config.OCREvery <= 0 {
		config.OCREvery = DefaultOCREvery
	}

	a := &App{
		config:   config,
		rotation: rotation,
		session:  session.New(),
		camera:   config.Camera,
		rate:     capture.NewRateController(capture.IdleFPS, capture.ActiveFPS, capture.DefaultIdleTimeout),
		enabled:  true,
	}

	if config.Store != nil {
		if err := config.Store.Sessions().Create(&store.Session{ID: a.session.ID()}); err != nil {
			return nil, fmt.Errorf("app: create session: %w", err)
		}
	}

	return a, nil
}

// SetEnabled enables or disables detection. Capture and preview keep running.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Session returns the live session state.
func (a *App) Session() *session.Session {
	return a.session
}

// SessionID returns the ID of the current session.
func (a *App) SessionID() string {
	return a.session.ID()
}

// LastLocked returns the text of the most recently locked note.
func (a *App) LastLocked() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastLocked
}

// Start opens the camera and starts the capture and processing goroutines.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if a.camera == nil {
		return errors.New("app: no camera configured")
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(capture.IdleFPS)

	a.frames = capture.NewLatest[*capture.Frame]()
	a.motion = capture.NewMotionDetector(a.config.MotionThresh)
	if a.config.ScanQR {
		a.qr = capture.NewQRScanner(DefaultQREvery)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.workers.Add(2)
	go a.runCapture(ctx)
	go a.runPipeline(ctx)

	log.Info().Str("session", a.session.ID()).Msg("detection pipeline started")
	return nil
}

// Stop halts the goroutines, waits for in-flight uploads and releases the
// camera.
func (a *App) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	a.frames.Close()
	a.workers.Wait()
	a.uploads.Wait()

	if err := a.camera.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing camera")
	}
	a.motion.Close()
	if a.qr != nil {
		a.qr.Close()
	}

	if a.config.Store != nil {
		if err := a.config.Store.Sessions().End(a.session.ID()); err != nil {
			log.Warn().Err(err).Msg("failed to end session")
		}
	}

	log.Info().Msg("detection pipeline stopped")
}

// ProcessFrame runs detection, OCR and session bookkeeping on one upright or
// camera-oriented image and returns the annotated notes.
func (a *App) ProcessFrame(ctx context.Context, img image.Image) ([]session.Note, error) {
	tracks, err := a.config.Pipeline.Detect(img, a.rotation.Degrees())
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.processed++
	frame := a.processed
	a.mu.Unlock()

	texts := a.readTexts(ctx, img, tracks, frame)
	notes := a.session.Observe(tracks, texts)

	a.publish(notes, frame)

	if a.config.AutoUpload {
		a.uploadPending(ctx)
	}
	return notes, nil
}

func (a *App) publish(notes []session.Note, frame int) {
	if a.config.Hub == nil {
		return
	}
	locked, uploaded := a.session.Counts()
	snap := Snapshot{
		SessionID: a.session.ID(),
		Frame:     frame,
		Timestamp: time.Now(),
		Notes:     notes,
		Locked:    locked,
		Uploaded:  uploaded,
	}
	if err := a.config.Hub.Publish(snap); err != nil {
		log.Warn().Err(err).Msg("failed to publish snapshot")
	}
}

// Preview returns the latest JPEG-encoded camera frame and its sequence.
func (a *App) Preview() ([]byte, uint64) {
	a.previewMu.RLock()
	defer a.previewMu.RUnlock()
	return a.preview, a.previewSeq
}

func (a *App) setPreview(jpeg []byte, seq uint64) {
	a.previewMu.Lock()
	defer a.previewMu.Unlock()
	a.preview = jpeg
	a.previewSeq = seq
}

// Notes returns the annotated notes of the latest frame.
func (a *App) Notes() []session.Note {
	return a.session.Notes()
}

// Lock confirms a note and persists it.
func (a *App) Lock(trackID int, text string) (session.Note, error) {
	note, err := a.session.Lock(trackID, text)
	if err != nil {
		return session.Note{}, err
	}

	a.mu.Lock()
	a.lastLocked = note.Text
	a.mu.Unlock()

	if a.config.Store != nil {
		rec := &store.Note{
			ID:         uuid.New().String(),
			SessionID:  a.session.ID(),
			TrackID:    note.ID,
			Text:       note.Text,
			Confidence: note.Score,
			Box:        note.Box,
			Status:     store.NoteLocked,
		}
		if note.Uploaded {
			rec.Status = store.NoteUploaded
		}
		if err := a.config.Store.Notes().Create(rec); err != nil {
			log.Error().Err(err).Int("track_id", note.ID).Msg("failed to persist note")
		}
	}

	log.Info().Int("track_id", note.ID).Str("text", note.Text).Msg("note locked")
	return note, nil
}

// Unlock releases a locked note and removes its stored record.
func (a *App) Unlock(trackID int) error {
	if err := a.session.Unlock(trackID); err != nil {
		return err
	}
	a.forget(trackID)
	log.Info().Int("track_id", trackID).Msg("note unlocked")
	return nil
}

func (a *App) forget(trackID int) {
	if a.config.Store == nil {
		return
	}
	notes := a.config.Store.Notes()
	n, err := notes.GetByTrack(a.session.ID(), trackID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Int("track_id", trackID).Msg("failed to load note")
		}
		return
	}
	if err := notes.Delete(n.ID); err != nil {
		log.Error().Err(err).Int("track_id", trackID).Msg("failed to delete note")
	}
}

// Toggle locks or unlocks a note with its current text.
func (a *App) Toggle(trackID int) (bool, error) {
	if a.session.IsLocked(trackID) {
		return false, a.Unlock(trackID)
	}
	if _, err := a.Lock(trackID, ""); err != nil {
		return false, err
	}
	return true, nil
}

// Reset clears tracks, identities and session state.
func (a *App) Reset() {
	a.config.Pipeline.Reset()
	a.session.Reset()

	a.mu.Lock()
	a.lastLocked = ""
	a.mu.Unlock()

	if a.qr != nil {
		a.qr.Forget()
	}
	if a.config.Suggester != nil {
		a.config.Suggester.Reset()
	}
	log.Info().Msg("session reset")
}

// Endpoint returns the current upload endpoint.
func (a *App) Endpoint() upload.Endpoint {
	if a.config.Uploader == nil {
		return upload.DefaultEndpoint
	}
	return a.config.Uploader.Endpoint()
}

// SetEndpoint changes the upload endpoint and persists it.
func (a *App) SetEndpoint(e upload.Endpoint) error {
	if a.config.Uploader == nil {
		return errors.New("upload is not configured")
	}
	a.config.Uploader.SetEndpoint(e)

	if a.config.Store != nil {
		if err := a.config.Store.Settings().Set(store.SettingEndpoint, e.String()); err != nil {
			return fmt.Errorf("persist endpoint: %w", err)
		}
	}
	log.Info().Str("endpoint", e.String()).Msg("upload endpoint changed")
	return nil
}

// Suggestions returns the expected note texts OCR readings snap to.
func (a *App) Suggestions() []string {
	if a.config.Suggester == nil {
		return nil
	}
	return a.config.Suggester.Suggestions()
}

// SetSuggestions replaces the expected note texts and persists them.
func (a *App) SetSuggestions(list []string) error {
	if a.config.Suggester == nil {
		return errors.New("suggestions are not configured")
	}
	a.config.Suggester.SetSuggestions(list)

	if a.config.Store != nil {
		saved := strings.Join(a.config.Suggester.Suggestions(), ";")
		if err := a.config.Store.Settings().Set(store.SettingSuggestions, saved); err != nil {
			return fmt.Errorf("persist suggestions: %w", err)
		}
	}
	log.Info().Strs("suggestions", a.config.Suggester.Suggestions()).Msg("suggestions changed")
	return nil
}

// readTexts runs OCR on unlocked notes that have no text yet, and on the
// rest every OCREvery frames.
func (a *App) readTexts(ctx context.Context, img image.Image, tracks []tracker.Track, frame int) map[int]string {
	if a.config.OCR == nil || len(tracks) == 0 {
		return nil
	}

	texts := make(map[int]string)
	for _, t := range tracks {
		if t.ID == 0 || a.session.IsLocked(t.ID) {
			continue
		}
		if a.session.Text(t.ID) != "" && frame%a.config.OCREvery != 0 {
			continue
		}

		crop := ocr.Crop(img, t.Box)
		if crop == nil {
			continue
		}
		crop = detector.Upright(crop, a.rotation)

		readCtx, cancel := context.WithTimeout(ctx, a.config.OCRTimeout)
		text, err := a.config.OCR.Read(readCtx, crop)
		cancel()
		if err != nil {
			log.Debug().Err(err).Int("track_id", t.ID).Msg("ocr failed")
			continue
		}
		if text == "" {
			continue
		}
		if a.config.Suggester != nil {
			text = a.config.Suggester.Resolve(t.ID, ocr.Clean(text))
		}
		texts[t.ID] = text
	}
	return texts
}
