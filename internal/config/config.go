// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds the service settings. Command-line flags may override them.
type Config struct {
	Addr      string
	DataDir   string
	WebDir    string
	PluginDir string

	ModelPath   string
	ORTLibrary  string
	LabelsPath  string
	Threads     int
	Mode        string
	Confidence  float64
	Camera      string
	Rotation    int
	OCR         string
	OCRLanguage string
	// Suggestions are expected note texts OCR readings snap to.
	Suggestions []string

	Backend    string
	AutoUpload bool
	ScanQR     bool
	Tray       bool
	Debug      bool
}

// Load reads the INNOVISION_* environment variables, falling back to
// defaults for those unset.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := getEnv("INNOVISION_DATA_DIR", filepath.Join(home, ".innovision"))

	c := &Config{
		Addr:        getEnv("INNOVISION_ADDR", ":8080"),
		DataDir:     dataDir,
		WebDir:      getEnv("INNOVISION_WEB_DIR", ""),
		PluginDir:   getEnv("INNOVISION_PLUGIN_DIR", filepath.Join(dataDir, "plugins")),
		ModelPath:   getEnv("INNOVISION_MODEL", filepath.Join(dataDir, "models", "postit.onnx")),
		ORTLibrary:  getEnv("INNOVISION_ORT_LIB", ""),
		LabelsPath:  getEnv("INNOVISION_LABELS", ""),
		Mode:        getEnv("INNOVISION_MODE", "track"),
		Camera:      getEnv("INNOVISION_CAMERA", "0"),
		OCR:         getEnv("INNOVISION_OCR_CMD", ""),
		OCRLanguage: getEnv("INNOVISION_OCR_LANG", "eng"),
		Backend:     getEnv("INNOVISION_BACKEND", ""),
		Suggestions: getList("INNOVISION_SUGGESTIONS"),
	}

	if c.Threads, err = getInt("INNOVISION_THREADS", 0); err != nil {
		return nil, err
	}
	if c.Rotation, err = getInt("INNOVISION_ROTATION", 0); err != nil {
		return nil, err
	}
	if c.Confidence, err = getFloat("INNOVISION_CONF", 0.25); err != nil {
		return nil, err
	}
	if c.AutoUpload, err = getBool("INNOVISION_AUTO_UPLOAD", true); err != nil {
		return nil, err
	}
	if c.ScanQR, err = getBool("INNOVISION_QR", true); err != nil {
		return nil, err
	}
	if c.Tray, err = getBool("INNOVISION_TRAY", false); err != nil {
		return nil, err
	}
	if c.Debug, err = getBool("INNOVISION_DEBUG", false); err != nil {
		return nil, err
	}

	return c, nil
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "innovision.db")
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// getList splits a ';' separated value. Unset yields nil.
func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, ""), ";") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getInt(key string, defaultVal int) (int, error) {
	val := getEnv(key, "")
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	val := getEnv(key, "")
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, defaultVal bool) (bool, error) {
	val := getEnv(key, "")
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
