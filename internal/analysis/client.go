package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"
)

const (
	opUpload  = "upload"
	opProcess = "process-ai"
	opRhythm  = "process-rhythm"

	// maxErrorBody bounds how much of a failed response is kept for the error.
	maxErrorBody = 4 << 10
)

var (
	// ErrMalformedResponse is returned when a remote call succeeds but its
	// body cannot be decoded or lacks the expected payload.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnsupportedFile is returned by Upload for files the remote service
	// refuses by extension.
	ErrUnsupportedFile = errors.New("unsupported audio file")
)

// allowedExtensions mirrors the formats the analysis service stores.
var allowedExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".m4a":  {},
	".flac": {},
	".ogg":  {},
}

// StatusError reports a non-success HTTP status from the remote API.
type StatusError struct {
	Op     string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: remote status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: remote status %d: %s", e.Op, e.Code, e.Detail)
}

// Client talks to the remote analysis API (upload, process-ai, process-rhythm).
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewClient returns a Client rooted at baseURL (e.g. "http://127.0.0.1:8000/api/audio").
// timeout bounds each call; transcription can take minutes so callers should be generous.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

type filenameRequest struct {
	Filename string `json:"filename"`
}

type transcriptionResponse struct {
	Message string         `json:"message"`
	Data    *Transcription `json:"data"`
}

type rhythmResponse struct {
	Message string  `json:"message"`
	Data    *Rhythm `json:"data"`
}

// Upload sends the recording as multipart form data and returns the server
// handle used to reference it in later calls.
func (c *Client) Upload(ctx context.Context, file AudioFile) (string, error) {
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(file.Name))]; !ok {
		return "", fmt.Errorf("%s: %w: %q", opUpload, ErrUnsupportedFile, file.Name)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(file.Name)))
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	hdr.Set("Content-Type", ct)

	fw, err := mw.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("%s: %w", opUpload, err)
	}
	if _, err := fw.Write(file.Data); err != nil {
		return "", fmt.Errorf("%s: %w", opUpload, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%s: %w", opUpload, err)
	}

	var out uploadResponse
	if err := c.post(ctx, opUpload, mw.FormDataContentType(), &body, &out); err != nil {
		return "", err
	}
	if out.Filename == "" {
		return "", fmt.Errorf("%s: %w: missing filename", opUpload, ErrMalformedResponse)
	}

	c.log.Debug("audio uploaded", slog.String("file", file.Name), slog.String("handle", out.Filename))
	return out.Filename, nil
}

// Transcribe runs transcription and diarization for an uploaded recording.
func (c *Client) Transcribe(ctx context.Context, handle string) (*Transcription, error) {
	var out transcriptionResponse
	if err := c.postJSON(ctx, opProcess, filenameRequest{Filename: handle}, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("%s: %w: missing data", opProcess, ErrMalformedResponse)
	}
	return out.Data, nil
}

// AnalyzeRhythm runs rhythm analysis for an uploaded recording.
func (c *Client) AnalyzeRhythm(ctx context.Context, handle string) (Rhythm, error) {
	var out rhythmResponse
	if err := c.postJSON(ctx, opRhythm, filenameRequest{Filename: handle}, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("%s: %w: missing data", opRhythm, ErrMalformedResponse)
	}
	return *out.Data, nil
}

func (c *Client) postJSON(ctx context.Context, op string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.post(ctx, op, "application/json", bytes.NewReader(b), out)
}

func (c *Client) post(ctx context.Context, op, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.log.Debug("remote call",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Int("duration_ms", int(time.Since(start).Milliseconds())))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, Code: resp.StatusCode, Detail: errorDetail(b)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
	}
	return nil
}

// errorDetail extracts {"detail": "..."} from an error body, falling back to
// the raw text.
func errorDetail(b []byte) string {
	var fe struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(b, &fe); err == nil && fe.Detail != nil {
		if s, ok := fe.Detail.(string); ok {
			return s
		}
		if d, err := json.Marshal(fe.Detail); err == nil {
			return string(d)
		}
	}
	return strings.TrimSpace(string(b))
}
