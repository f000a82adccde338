package capture

import (
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// QRScanner decodes QR codes in camera frames. Only every Nth frame is
// scanned to keep the cost off the detection loop.
type QRScanner struct {
	detector gocv.QRCodeDetector
	every    int
	count    int
	last     string
	mu       sync.Mutex
}

// NewQRScanner creates a scanner that looks at one frame in every.
func NewQRScanner(every int) *QRScanner {
	if every < 1 {
		every = 1
	}
	return &QRScanner{
		detector: gocv.NewQRCodeDetector(),
		every:    every,
	}
}

// Scan returns the payload of a QR code in frame when it differs from the
// previously decoded one.
func (q *QRScanner) Scan(frame gocv.Mat) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.count++
	if q.count%q.every != 0 || frame.Empty() {
		return "", false
	}

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	payload := strings.TrimSpace(q.detector.DetectAndDecode(frame, &points, &straight))
	if payload == "" || payload == q.last {
		return "", false
	}
	q.last = payload
	return payload, true
}

// Forget clears the last payload so that the same code is reported again.
func (q *QRScanner) Forget() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.last = ""
}

// Close releases the detector.
func (q *QRScanner) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.detector.Close()
}
