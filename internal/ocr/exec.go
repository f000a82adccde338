package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
	"time"
)

// ExecReader runs an OCR plugin executable once per image.
type ExecReader struct {
	plugin   *Plugin
	language string
	timeout  time.Duration
}

// NewExecReader creates an ExecReader for plugin with a per-call timeout.
func NewExecReader(plugin *Plugin, language string, timeout time.Duration) *ExecReader {
	return &ExecReader{
		plugin:   plugin,
		language: language,
		timeout:  timeout,
	}
}

// Read sends img to the plugin and returns the recognised text on one line.
func (r *ExecReader) Read(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode crop: %w", err)
	}

	reqJSON, err := json.Marshal(Request{
		Image:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		Language: r.language,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.plugin.Executable)
	cmd.Dir = r.plugin.Path
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("ocr timeout after %s", r.timeout)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("ocr failed: %w, stderr: %s", err, msg)
		}
		return "", fmt.Errorf("ocr failed: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("failed to parse ocr response: %w, stdout: %s", err, stdout.String())
	}
	if !resp.Success {
		return "", fmt.Errorf("ocr plugin %s: %s", r.plugin.Manifest.Name, resp.Error)
	}

	return Clean(resp.Text), nil
}

// Clean joins multi-line OCR output into a single trimmed line.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
