// Package main provides an OCR plugin backed by the tesseract CLI.
// Build it next to its manifest: go build -o plugins/tesseract/tesseract-ocr ./plugins/tesseract
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Request represents the input from the OCR reader.
type Request struct {
	Image    string `json:"image"`
	Language string `json:"language,omitempty"`
}

// Response represents the output to the OCR reader.
type Response struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	text, err := recognize(req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Text: text})
}

// recognize writes the image to a temporary file and runs tesseract on it.
func recognize(req Request) (string, error) {
	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return "", fmt.Errorf("invalid image encoding: %w", err)
	}

	file, err := os.CreateTemp("", "postit-*.png")
	if err != nil {
		return "", err
	}
	defer os.Remove(file.Name())

	if _, err := file.Write(data); err != nil {
		file.Close()
		return "", err
	}
	file.Close()

	lang := req.Language
	if lang == "" {
		lang = "eng"
	}

	// psm 6: a single uniform block of text
	cmd := exec.Command("tesseract", file.Name(), "stdout", "-l", lang, "--psm", "6")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("tesseract failed: %s", msg)
		}
		return "", fmt.Errorf("tesseract failed: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}
