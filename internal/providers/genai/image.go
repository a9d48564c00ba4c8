package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"genstudio/internal/domain"
)

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	CandidateCount     int                `json:"candidateCount,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

// GenerateImage requests params.NumberOfImages candidates, stores each
// returned image and returns the reference of the first one. Reference
// images are sent inline.
func (c *Client) GenerateImage(ctx context.Context, params domain.ImageParams, refs []domain.AssetRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ctx, cancel := c.withOperationTimeout(ctx)
	defer cancel()

	requestID := uuid.NewString()
	if c.synthetic {
		return c.syntheticImage(ctx, requestID, params)
	}

	parts := make([]geminiPart, 0, len(refs)+1)
	for i, ref := range refs {
		inline, err := c.inlineAsset(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("reference image %d: %w", i+1, err)
		}
		if inline == nil {
			continue
		}
		parts = append(parts, geminiPart{InlineData: inline})
	}
	parts = append(parts, geminiPart{Text: buildImagePrompt(params)})

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			CandidateCount:     max(1, params.NumberOfImages),
			ImageConfig: &geminiImageConfig{
				AspectRatio: params.AspectRatio,
				ImageSize:   params.Size,
			},
		},
	}

	var response geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.imageModel))
	if err := c.invokeGemini(ctx, http.MethodPost, path, payload, &response); err != nil {
		return "", err
	}

	// Every returned image is stored; the first one is the artifact.
	var first string
	stored := 0
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return "", fmt.Errorf("decode inline data: %w", err)
			}
			mime := firstNonEmpty(part.InlineData.MimeType, "image/png")
			name := "image"
			if stored > 0 {
				name = fmt.Sprintf("image-%d", stored+1)
			}
			key := fmt.Sprintf("generated/images/%s/%s%s", requestID, name, extensionForMIME(mime))
			ref, err := c.persist(ctx, key, mime, data, "")
			if err != nil {
				return "", err
			}
			if first == "" {
				first = ref
			}
			stored++
		}
	}
	if first != "" {
		c.logger.Debug().
			Str("request_id", requestID).
			Str("model", c.imageModel).
			Int("images", stored).
			Msg("genai: generated remote image")
		return first, nil
	}

	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return "", &domain.RemoteError{Code: response.PromptFeedback.BlockReason, Message: "prompt was blocked: " + strings.ToLower(response.PromptFeedback.BlockReason)}
	}
	return "", &domain.RemoteError{Message: "no image content returned"}
}

func buildImagePrompt(p domain.ImageParams) string {
	var b strings.Builder
	prompt := strings.TrimSpace(p.Prompt)
	if prompt != "" {
		b.WriteString(prompt)
	}
	if negative := strings.TrimSpace(p.NegativePrompt); negative != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Avoid: ")
		b.WriteString(negative)
	}
	if b.Len() == 0 {
		b.WriteString("Create an image")
	}
	return b.String()
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}

func (c *Client) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.operationTimeout)
}
