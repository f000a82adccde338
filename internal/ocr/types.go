// Package ocr reads the text on post-it crops through external OCR plugins.
package ocr

import (
	"context"
	"image"
)

// Reader extracts text from an image.
type Reader interface {
	Read(ctx context.Context, img image.Image) (string, error)
}

// Manifest describes an OCR plugin.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Languages   []string `json:"languages,omitempty"`
}

// Request is sent to a plugin on stdin.
type Request struct {
	// Image is a base64 encoded PNG.
	Image    string `json:"image"`
	Language string `json:"language,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

// Plugin is a discovered OCR plugin.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
