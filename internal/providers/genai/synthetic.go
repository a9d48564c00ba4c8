package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"genstudio/internal/domain"
)

// Synthetic artifacts stand in for remote output when the client runs
// without an API key. They are deterministic for a given request.

const syntheticEdge = 256

func (c *Client) syntheticImage(ctx context.Context, requestID string, params domain.ImageParams) (string, error) {
	seed := deterministicSeed(requestID, params.Prompt, params.AspectRatio, params.Size)
	width, height := aspectDimensions(params.AspectRatio)
	data := renderSyntheticImage(width, height, seed)
	key := syntheticKey(domain.KindImage, seed, ".png")
	ref, err := c.persist(ctx, key, "image/png", data, "")
	if err != nil {
		return "", err
	}
	c.logger.Debug().
		Str("request_id", requestID).
		Str("model", c.imageModel).
		Msg("genai: generated synthetic image")
	return ref, nil
}

func (c *Client) syntheticVideo(ctx context.Context, requestID string, params domain.VideoParams) (string, error) {
	seed := deterministicSeed(requestID, params.Prompt, params.AspectRatio, params.Resolution, params.Speed)
	lines := []string{
		"synthetic video placeholder",
		"seed: " + seed,
		"model: " + c.VideoModel(params.Speed),
		"prompt: " + strings.TrimSpace(params.Prompt),
	}
	key := syntheticKey(domain.KindVideo, seed, ".txt")
	ref, err := c.persist(ctx, key, "text/plain", []byte(strings.Join(lines, "\n")), "")
	if err != nil {
		return "", err
	}
	c.logger.Debug().
		Str("request_id", requestID).
		Str("model", c.VideoModel(params.Speed)).
		Msg("genai: generated synthetic video")
	return ref, nil
}

func syntheticKey(kind domain.Kind, seed, ext string) string {
	return fmt.Sprintf("synthetic/%s/%s%s", kind, seed, ext)
}

func renderSyntheticImage(width, height int, seed string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{colorFromSeed(seed, 0)}, image.Point{}, draw.Src)

	accent := &image.Uniform{colorFromSeed(seed, 1)}
	stripe := max(8, height/12)
	for y := 0; y < height; y += stripe * 2 {
		draw.Draw(img, image.Rect(0, y, width, min(height, y+stripe)), accent, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < width; x += max(8, width/16) {
		for y := 0; y < height && x+y < width; y++ {
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 255}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// aspectDimensions maps "W:H" onto a small canvas with the longer edge at
// syntheticEdge. Unparseable ratios render square.
func aspectDimensions(aspect string) (int, int) {
	parts := strings.Split(strings.TrimSpace(aspect), ":")
	if len(parts) != 2 {
		return syntheticEdge, syntheticEdge
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return syntheticEdge, syntheticEdge
	}
	if w >= h {
		return syntheticEdge, max(1, syntheticEdge*h/w)
	}
	return max(1, syntheticEdge*w/h), syntheticEdge
}
