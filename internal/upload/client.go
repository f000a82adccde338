// Package upload sends locked post-its to the collection backend.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/aei/innovision/internal/geometry"
	"github.com/aei/innovision/internal/session"
)

// Path is the backend route that accepts post-it uploads.
const Path = "/api/postits"

const (
	connectTimeout = 10 * time.Second
	requestTimeout = 30 * time.Second
)

// Bounds is a note's box on the wire.
type Bounds struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// PostIt is one uploaded note.
type PostIt struct {
	TrackID    int     `json:"trackId"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// Request is the upload payload.
type Request struct {
	Timestamp   int64    `json:"timestamp"`
	PostIts     []PostIt `json:"postits"`
	ImageBase64 string   `json:"imageBase64,omitempty"`
}

// Response is the backend reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Endpoint is the backend address.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// DefaultEndpoint is used until one is configured or scanned.
var DefaultEndpoint = Endpoint{Scheme: "http", Host: "192.168.1.100", Port: 8080}

// URL returns the full upload URL.
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s://%s%s", e.Scheme, net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), Path)
}

// String returns the base address without the upload path.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s", e.Scheme, net.JoinHostPort(e.Host, strconv.Itoa(e.Port)))
}

// ParseEndpoint reads an http(s) URL such as the payload of a server QR code.
// A missing port defaults to 80 for http and 443 for https.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Endpoint{}, fmt.Errorf("endpoint %q: scheme must be http or https", raw)
	}
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q: missing host", raw)
	}

	port := 80
	if scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("endpoint %q: invalid port", raw)
		}
	}

	return Endpoint{Scheme: scheme, Host: host, Port: port}, nil
}

// Client posts notes to the backend. The endpoint can be changed while
// uploads are running.
type Client struct {
	http *http.Client

	mu       sync.RWMutex
	endpoint Endpoint
}

// NewClient creates a Client for the given endpoint.
func NewClient(endpoint Endpoint) *Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &Client{
		http: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: connectTimeout,
			},
		},
		endpoint: endpoint,
	}
}

// Endpoint returns the current backend address.
func (c *Client) Endpoint() Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// SetEndpoint changes the backend address.
func (c *Client) SetEndpoint(e Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = e
}

// NewRequest builds the upload payload for notes, attaching the JPEG image
// when one is given.
func NewRequest(notes []session.Note, jpeg []byte, now time.Time) Request {
	req := Request{
		Timestamp: now.UnixMilli(),
		PostIts:   make([]PostIt, 0, len(notes)),
	}
	for _, n := range notes {
		req.PostIts = append(req.PostIts, PostIt{
			TrackID:    n.ID,
			Text:       n.Text,
			Confidence: n.Score,
			Bounds:     boundsOf(n.Box),
		})
	}
	if len(jpeg) > 0 {
		req.ImageBase64 = base64.StdEncoding.EncodeToString(jpeg)
	}
	return req
}

func boundsOf(b geometry.Box) Bounds {
	return Bounds{Left: b.Left, Top: b.Top, Right: b.Right, Bottom: b.Bottom}
}

// Upload sends notes to the backend. Any 2xx status is a success; a body
// that is not a JSON object is treated as a plain acknowledgement.
func (c *Client) Upload(ctx context.Context, notes []session.Note, jpeg []byte) (Response, error) {
	endpoint := c.Endpoint()
	payload, err := json.Marshal(NewRequest(notes, jpeg, time.Now()))
	if err != nil {
		return Response{}, fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL(), bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().Int("notes", len(notes)).Str("url", endpoint.URL()).Msg("uploading notes")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil && resp.StatusCode/100 == 2 {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return Response{}, fmt.Errorf("upload failed: %s", resp.Status)
	}

	return parseResponse(body), nil
}

func parseResponse(body []byte) Response {
	if !gjson.ValidBytes(body) {
		return Response{Success: true, Message: "Uploaded successfully"}
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return Response{Success: true, Message: "Uploaded successfully"}
	}
	return Response{
		Success: parsed.Get("success").Bool(),
		Message: parsed.Get("message").String(),
		ID:      parsed.Get("id").String(),
	}
}
