package ocr

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/aei/innovision/internal/geometry"
)

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func scriptPlugin(t *testing.T, content string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
	dir := t.TempDir()
	path := writeScript(t, dir, "ocr.sh", content)
	return &Plugin{
		Manifest:   Manifest{Name: "test-ocr", Executable: "ocr.sh"},
		Path:       dir,
		Executable: path,
	}
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 8; i++ {
		img.Set(i, i, color.Black)
	}
	return img
}

func TestExecReader_Read(t *testing.T) {
	plugin := scriptPlugin(t, `#!/bin/sh
cat > /dev/null
printf '%s\n' '{"success":true,"text":"Buy\nmilk  "}'
`)

	text, err := NewExecReader(plugin, "", 5*time.Second).Read(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if text != "Buy milk" {
		t.Errorf("text = %q, want %q", text, "Buy milk")
	}
}

func TestExecReader_SendsImage(t *testing.T) {
	// the plugin reports whether it was sent a PNG and the language
	plugin := scriptPlugin(t, `#!/bin/sh
INPUT=$(cat)
case "$INPUT" in
  *'"image":"iVBOR'*'"language":"eng"'*) echo '{"success":true,"text":"png"}' ;;
  *) echo '{"success":true,"text":"missing"}' ;;
esac
`)

	text, err := NewExecReader(plugin, "eng", 5*time.Second).Read(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if text != "png" {
		t.Errorf("plugin did not receive a PNG request, got %q", text)
	}
}

func TestExecReader_ErrorResponse(t *testing.T) {
	plugin := scriptPlugin(t, `#!/bin/sh
echo '{"success":false,"error":"no text found"}'
`)

	_, err := NewExecReader(plugin, "", 5*time.Second).Read(context.Background(), testImage())
	if err == nil || !strings.Contains(err.Error(), "no text found") {
		t.Errorf("error = %v, want plugin error", err)
	}
}

func TestExecReader_InvalidJSON(t *testing.T) {
	plugin := scriptPlugin(t, `#!/bin/sh
echo 'not json'
`)

	if _, err := NewExecReader(plugin, "", 5*time.Second).Read(context.Background(), testImage()); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestExecReader_Timeout(t *testing.T) {
	plugin := scriptPlugin(t, `#!/bin/sh
sleep 10
echo '{"success":true,"text":"late"}'
`)

	_, err := NewExecReader(plugin, "", 100*time.Millisecond).Read(context.Background(), testImage())
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timeout") && !strings.Contains(err.Error(), "killed") {
		t.Errorf("expected timeout-related error, got: %v", err)
	}
}

func TestExecReader_NonZeroExit(t *testing.T) {
	plugin := scriptPlugin(t, `#!/bin/sh
echo "engine crashed" >&2
exit 1
`)

	_, err := NewExecReader(plugin, "", 5*time.Second).Read(context.Background(), testImage())
	if err == nil || !strings.Contains(err.Error(), "engine crashed") {
		t.Errorf("error = %v, want stderr in message", err)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Cool Stuff", "Cool Stuff"},
		{"Cool\nStuff", "Cool Stuff"},
		{"  line one\r\nline two \n", "line one line two"},
		{"\n\n", ""},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "tesseract")
	if err := os.MkdirAll(valid, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	manifest := `{"name":"tesseract","version":"1.0.0","executable":"run.sh","languages":["eng"]}`
	if err := os.WriteFile(filepath.Join(valid, ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	broken := filepath.Join(dir, "broken")
	if err := os.MkdirAll(broken, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(broken, ManifestFile), []byte("{"), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	plugins := m.List()
	if len(plugins) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(plugins))
	}

	p, err := m.Get("tesseract")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Executable != filepath.Join(valid, "run.sh") {
		t.Errorf("Executable = %q", p.Executable)
	}
	if _, err := m.Get("broken"); err != ErrPluginNotFound {
		t.Errorf("Get(broken) error = %v, want ErrPluginNotFound", err)
	}
}

func TestManager_DiscoverMissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope"))
	if err := m.Discover(); err != nil {
		t.Errorf("Discover() error = %v, want nil", err)
	}
	if len(m.List()) != 0 {
		t.Error("expected no plugins")
	}
}

func TestManager_Resolve(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
	dir := t.TempDir()
	script := writeScript(t, dir, "my-ocr", "#!/bin/sh\n")

	m := NewManager(filepath.Join(dir, "plugins"))
	p, err := m.Resolve(script)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Executable != script || p.Path != dir {
		t.Errorf("plugin = %+v", p)
	}

	if _, err := m.Resolve("no-such-engine"); err != ErrPluginNotFound {
		t.Errorf("Resolve(unknown) error = %v, want ErrPluginNotFound", err)
	}
}

func TestCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))

	tests := []struct {
		name  string
		box   geometry.Box
		wantW int
		wantH int
		empty bool
	}{
		{name: "inside", box: geometry.Box{Left: 10, Top: 10, Right: 30, Bottom: 40}, wantW: 20, wantH: 30},
		{name: "fractional", box: geometry.Box{Left: 10.5, Top: 10.2, Right: 20.5, Bottom: 20.1}, wantW: 11, wantH: 11},
		{name: "clamped", box: geometry.Box{Left: 90, Top: -10, Right: 130, Bottom: 20}, wantW: 10, wantH: 20},
		{name: "outside", box: geometry.Box{Left: 200, Top: 200, Right: 300, Bottom: 300}, empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crop := Crop(img, tt.box)
			if tt.empty {
				if crop != nil {
					t.Errorf("Crop() = %v, want nil", crop.Bounds())
				}
				return
			}
			if crop == nil {
				t.Fatal("Crop() = nil")
			}
			if crop.Bounds().Dx() != tt.wantW || crop.Bounds().Dy() != tt.wantH {
				t.Errorf("crop = %dx%d, want %dx%d", crop.Bounds().Dx(), crop.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}
