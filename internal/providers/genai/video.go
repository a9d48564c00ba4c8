package genai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/domain"
)

type veoMedia struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoInstance struct {
	Prompt    string    `json:"prompt"`
	Image     *veoMedia `json:"image,omitempty"`
	LastFrame *veoMedia `json:"lastFrame,omitempty"`
}

type veoParameters struct {
	AspectRatio    string `json:"aspectRatio,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	SampleCount    int    `json:"sampleCount,omitempty"`
}

type veoRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
			RaiMediaFilteredReasons []string `json:"raiMediaFilteredReasons,omitempty"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// GenerateVideo starts a long-running video operation, polls it until it
// completes and stores the first generated sample.
func (c *Client) GenerateVideo(ctx context.Context, params domain.VideoParams, first, last *domain.AssetRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ctx, cancel := c.withOperationTimeout(ctx)
	defer cancel()

	requestID := uuid.NewString()
	if c.synthetic {
		return c.syntheticVideo(ctx, requestID, params)
	}

	instance := veoInstance{Prompt: strings.TrimSpace(params.Prompt)}
	var err error
	if instance.Image, err = c.frameMedia(ctx, first); err != nil {
		return "", fmt.Errorf("first frame: %w", err)
	}
	if instance.LastFrame, err = c.frameMedia(ctx, last); err != nil {
		return "", fmt.Errorf("last frame: %w", err)
	}

	model := c.VideoModel(params.Speed)
	payload := veoRequest{
		Instances: []veoInstance{instance},
		Parameters: veoParameters{
			AspectRatio:    params.AspectRatio,
			Resolution:     params.Resolution,
			NegativePrompt: strings.TrimSpace(params.NegativePrompt),
			SampleCount:    1,
		},
	}

	var op veoOperation
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(model))
	if err := c.invokeGemini(ctx, http.MethodPost, path, payload, &op); err != nil {
		return "", err
	}
	if op.Name == "" && !op.Done {
		return "", &domain.RemoteError{Message: "video operation was not started"}
	}

	started := c.now()
	for !op.Done {
		if err := c.wait(ctx); err != nil {
			return "", err
		}
		if err := c.invokeGemini(ctx, http.MethodGet, "/"+op.Name, nil, &op); err != nil {
			return "", err
		}
		c.logger.Debug().
			Str("request_id", requestID).
			Str("operation", op.Name).
			Bool("done", op.Done).
			Msg("genai: polled video operation")
	}

	if op.Error != nil {
		return "", &domain.RemoteError{Status: op.Error.Code, Code: op.Error.Status, Message: op.Error.Message}
	}
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		msg := "no video content returned"
		if reasons := op.Response; reasons != nil && len(reasons.GenerateVideoResponse.RaiMediaFilteredReasons) > 0 {
			msg = strings.Join(reasons.GenerateVideoResponse.RaiMediaFilteredReasons, "; ")
		}
		return "", &domain.RemoteError{Message: msg}
	}

	uri := op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI
	if uri == "" {
		return "", &domain.RemoteError{Message: "video sample has no uri"}
	}
	data, mime, err := c.downloadFile(ctx, uri)
	if err != nil {
		return "", err
	}
	mime = firstNonEmpty(mime, "video/mp4")
	key := fmt.Sprintf("generated/videos/%s/video%s", requestID, extensionForMIME(mime))
	ref, err := c.persist(ctx, key, mime, data, uri)
	if err != nil {
		return "", err
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("model", model).
		Dur("elapsed", c.now().Sub(started)).
		Msg("genai: generated remote video")
	return ref, nil
}

func (c *Client) frameMedia(ctx context.Context, ref *domain.AssetRef) (*veoMedia, error) {
	if ref == nil {
		return nil, nil
	}
	inline, err := c.inlineAsset(ctx, *ref)
	if err != nil || inline == nil {
		return nil, err
	}
	return &veoMedia{BytesBase64Encoded: inline.Data, MimeType: inline.MimeType}, nil
}

// parseDataURL splits a base64 data URL into its MIME type and payload.
func parseDataURL(raw string) (string, string, bool) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return "", "", false
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", false
	}
	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", "", false
	}
	return mime, payload, true
}

func (c *Client) wait(ctx context.Context) error {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
