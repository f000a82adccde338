package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/aei/innovision/internal/capture"
	"github.com/aei/innovision/internal/session"
	"github.com/aei/innovision/internal/store"
	"github.com/aei/innovision/internal/upload"
)

// runCapture reads frames at the camera's current rate and hands them to the
// processing goroutine. A frame not yet taken is replaced by a newer one.
func (a *App) runCapture(ctx context.Context) {
	defer a.workers.Done()

	fps := captureFPS(a.camera)
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if current := captureFPS(a.camera); current != fps {
			fps = current
			ticker.Reset(time.Second / time.Duration(fps))
		}

		mat, err := a.camera.ReadFrame()
		if err != nil {
			log.Debug().Err(err).Msg("error reading frame")
			continue
		}

		seq++
		if dropped := a.frames.Put(capture.NewFrame(*mat, seq)); dropped {
			log.Debug().Uint64("frame", seq).Msg("processing behind, frame dropped")
		}
	}
}

func captureFPS(c capture.Camera) int {
	if fps := c.FPS(); fps > 0 {
		return fps
	}
	return capture.IdleFPS
}

// runPipeline is the processing loop:
//  1. motion detection picks the idle or active capture rate
//  2. the frame is published as the preview and scanned for QR codes
//  3. detection, OCR, session update and upload run via ProcessFrame
func (a *App) runPipeline(ctx context.Context) {
	defer a.workers.Done()

	for {
		frame, err := a.frames.Take(ctx)
		if err != nil {
			return
		}
		a.handleFrame(ctx, frame)
		frame.Close()
	}
}

func (a *App) handleFrame(ctx context.Context, frame *capture.Frame) {
	motion, _ := a.motion.Detect(&frame.Mat)
	if fps, changed := a.rate.Observe(motion, time.Now()); changed {
		a.camera.SetFPS(fps)
		log.Debug().Int("fps", fps).Bool("active", a.rate.Active()).Msg("capture rate changed")
	}

	if jpeg, err := encodeJPEG(frame.Mat); err == nil {
		a.setPreview(jpeg, frame.Seq)
	}

	if a.qr != nil {
		if payload, ok := a.qr.Scan(frame.Mat); ok {
			a.applyQR(payload)
		}
	}

	if !a.IsEnabled() {
		return
	}

	img, err := frame.Image()
	if err != nil {
		log.Warn().Err(err).Uint64("frame", frame.Seq).Msg("failed to convert frame")
		return
	}

	start := time.Now()
	notes, err := a.ProcessFrame(ctx, img)
	if err != nil {
		log.Warn().Err(err).Uint64("frame", frame.Seq).Msg("detection failed")
		return
	}
	log.Debug().
		Uint64("frame", frame.Seq).
		Int("notes", len(notes)).
		Dur("duration", time.Since(start)).
		Msg("frame processed")
}

// applyQR switches the upload endpoint to a URL read from a QR code.
func (a *App) applyQR(payload string) {
	e, err := upload.ParseEndpoint(payload)
	if err != nil {
		log.Debug().Str("payload", payload).Msg("ignoring QR code that is not an endpoint")
		return
	}
	if err := a.SetEndpoint(e); err != nil {
		log.Warn().Err(err).Msg("failed to apply QR endpoint")
	}
}

func encodeJPEG(mat gocv.Mat) ([]byte, error) {
	if mat.Empty() {
		return nil, errors.New("empty frame")
	}
	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	// the buffer is C memory released by Close
	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// uploadPending sends locked notes that have not been uploaded. The upload
// runs in the background; its notes are flagged in flight until it returns.
func (a *App) uploadPending(ctx context.Context) {
	if a.config.Uploader == nil {
		return
	}
	pending := a.session.Pending()
	if len(pending) == 0 {
		return
	}

	a.session.MarkUploading(pending...)

	jpeg, _ := a.Preview()

	a.uploads.Add(1)
	go func() {
		defer a.uploads.Done()
		a.upload(ctx, pending, jpeg)
	}()
}

func (a *App) upload(ctx context.Context, notes []session.Note, jpeg []byte) {
	ids := make([]int, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}

	resp, err := a.config.Uploader.Upload(ctx, notes, jpeg)
	if err != nil {
		a.session.MarkFailed(notes...)
		a.persistStatus(notes, store.NoteFailed, "")
		log.Warn().Err(err).Ints("track_ids", ids).Msg("upload failed")
		return
	}

	a.session.MarkUploaded(notes...)
	a.persistStatus(notes, store.NoteUploaded, resp.ID)
	log.Info().Ints("track_ids", ids).Str("remote_id", resp.ID).Str("message", resp.Message).Msg("notes uploaded")
}

// persistStatus records the upload outcome for stored notes that still carry
// the text that was sent.
func (a *App) persistStatus(sent []session.Note, status store.NoteStatus, remoteID string) {
	if a.config.Store == nil {
		return
	}
	notes := a.config.Store.Notes()
	for _, note := range sent {
		id := note.ID
		n, err := notes.GetByTrack(a.session.ID(), id)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Error().Err(err).Int("track_id", id).Msg("failed to load note")
			}
			continue
		}
		if n.Text != note.Text {
			continue
		}
		if err := notes.UpdateStatus(n.ID, status, remoteID); err != nil {
			log.Error().Err(err).Int("track_id", id).Msg("failed to update note status")
		}
	}
}
