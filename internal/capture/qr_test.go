package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestQRScanner_NoCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	scanner := NewQRScanner(1)
	defer scanner.Close()

	blank := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer blank.Close()

	if payload, ok := scanner.Scan(blank); ok {
		t.Errorf("Scan() = %q on a blank frame", payload)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if _, ok := scanner.Scan(empty); ok {
		t.Error("Scan() reported a code on an empty Mat")
	}
}

func TestQRScanner_Interval(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	scanner := NewQRScanner(0)
	defer scanner.Close()

	if scanner.every != 1 {
		t.Errorf("every = %d, want 1 for non-positive interval", scanner.every)
	}
}
