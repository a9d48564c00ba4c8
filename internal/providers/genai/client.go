// Package genai talks to the Gemini REST API and implements the remote
// generator used by the session controllers. Generated bytes are written to
// an ArtifactStore and callers receive a reference, never the bytes.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultImageModel = "gemini-2.5-flash-image"
	defaultFastVideo  = "veo-3.1-fast-generate-preview"
	fastModelMarker   = "-fast"
)

// ArtifactStore persists generated bytes under a relative key.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Options controls how the Gemini client is configured.
type Options struct {
	// APIKey is called for every request so that a re-authorized key is
	// picked up without rebuilding the client.
	APIKey        func() string
	BaseURL       string
	ImageModel    string
	VideoModel    string
	HTTPClient    *http.Client
	Logger        *infra.Logger
	Store         ArtifactStore
	PublicBaseURL string
	// Synthetic renders deterministic placeholders instead of calling
	// the API.
	Synthetic        bool
	PollInterval     time.Duration
	OperationTimeout time.Duration
}

type Client struct {
	apiKey           func() string
	baseURL          string
	imageModel       string
	videoModel       string
	httpClient       *http.Client
	logger           *infra.Logger
	store            ArtifactStore
	publicBaseURL    string
	synthetic        bool
	pollInterval     time.Duration
	operationTimeout time.Duration
	now              func() time.Time
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == nil && !opts.Synthetic {
		return nil, errors.New("genai: api key source is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = defaultImageModel
	}
	videoModel := strings.TrimSpace(opts.VideoModel)
	if videoModel == "" {
		videoModel = defaultFastVideo
	}

	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = 10 * time.Second
	}
	timeout := opts.OperationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	apiKey := opts.APIKey
	if apiKey == nil {
		apiKey = func() string { return "" }
	}

	return &Client{
		apiKey:           apiKey,
		baseURL:          baseURL,
		imageModel:       imageModel,
		videoModel:       videoModel,
		httpClient:       client,
		logger:           logger,
		store:            opts.Store,
		publicBaseURL:    strings.TrimRight(opts.PublicBaseURL, "/"),
		synthetic:        opts.Synthetic,
		pollInterval:     poll,
		operationTimeout: timeout,
		now:              time.Now,
	}, nil
}

// ImageModel returns the configured image model identifier.
func (c *Client) ImageModel() string {
	return c.imageModel
}

// VideoModel returns the model used for the given speed. The quality model
// is the fast model name without its "-fast" marker.
func (c *Client) VideoModel(speed domain.VideoSpeed) string {
	if speed == domain.VideoSpeedQuality {
		return strings.Replace(c.videoModel, fastModelMarker, "", 1)
	}
	return c.videoModel
}

func (c *Client) invokeGemini(ctx context.Context, method, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if key := c.apiKey(); key != "" {
		req.Header.Set("x-goog-api-key", key)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeRemoteError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// decodeRemoteError turns an error response into a *domain.RemoteError.
func decodeRemoteError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	remote := &domain.RemoteError{Status: resp.StatusCode}
	var apiErr geminiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		remote.Code = apiErr.Error.Status
		remote.Message = apiErr.Error.Message
		return remote
	}
	remote.Message = strings.TrimSpace(string(data))
	return remote
}

func (c *Client) downloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if key := c.apiKey(); key != "" && strings.HasPrefix(target, c.baseURL) {
		req.Header.Set("x-goog-api-key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", decodeRemoteError(resp)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

// persist writes data to the artifact store and returns its public
// reference. Without a store images fall back to a data URL.
func (c *Client) persist(ctx context.Context, key, mime string, data []byte, fallbackURL string) (string, error) {
	if c.store == nil {
		if fallbackURL != "" {
			return fallbackURL, nil
		}
		return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
	}
	saved, err := c.store.Write(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("persist artifact: %w", err)
	}
	return c.assetURL(saved), nil
}

func (c *Client) assetURL(storageKey string) string {
	if storageKey == "" {
		return ""
	}
	if c.publicBaseURL == "" {
		return storageKey
	}
	return fmt.Sprintf("%s/%s", c.publicBaseURL, strings.TrimLeft(storageKey, "/"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// inlineAsset resolves an asset handle to base64 bytes. Data URLs are used
// as is; anything else is downloaded. A blank handle yields nil.
func (c *Client) inlineAsset(ctx context.Context, ref domain.AssetRef) (*geminiInlineData, error) {
	if strings.TrimSpace(ref.URL) == "" {
		return nil, nil
	}
	if mime, data, ok := parseDataURL(ref.URL); ok {
		return &geminiInlineData{MimeType: firstNonEmpty(ref.MIME, mime, "image/png"), Data: data}, nil
	}
	blob, mime, err := c.downloadFile(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	return &geminiInlineData{
		MimeType: firstNonEmpty(ref.MIME, mime, "image/png"),
		Data:     base64.StdEncoding.EncodeToString(blob),
	}, nil
}
