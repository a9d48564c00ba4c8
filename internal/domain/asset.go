package domain

import (
	"fmt"
	"strings"
)

// Kind enumerates generation modes. Each mode owns its own history partition.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// ParseKind normalizes user input into a supported kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindImage:
		return KindImage, nil
	case KindVideo:
		return KindVideo, nil
	default:
		return "", fmt.Errorf("unsupported kind %q", s)
	}
}

// AssetRef points at a stored input asset (reference image, first or last
// frame). Only the handle is kept, never the bytes.
type AssetRef struct {
	URL  string `json:"url"`
	MIME string `json:"mime,omitempty"`
}
