package domain

import "strings"

const (
	DefaultAspectRatio = "1:1"
	DefaultVideoAspect = "16:9"
	DefaultImageSize   = "1K"
	DefaultResolution  = "720p"
	MaxImagesPerPrompt = 4
)

// VideoSpeed selects between the fast and the quality video models.
type VideoSpeed string

const (
	VideoSpeedFast    VideoSpeed = "fast"
	VideoSpeedQuality VideoSpeed = "quality"
)

// Params is implemented by every generation configuration snapshot.
type Params interface {
	PromptText() string
	Clone() Params
}

// ImageParams is the configuration snapshot for an image request.
type ImageParams struct {
	Prompt          string     `json:"prompt"`
	NegativePrompt  string     `json:"negative_prompt,omitempty"`
	AspectRatio     string     `json:"aspect_ratio"`
	Size            string     `json:"size"`
	NumberOfImages  int        `json:"number_of_images"`
	ReferenceImages []AssetRef `json:"reference_images,omitempty"`
}

func (p ImageParams) PromptText() string { return p.Prompt }

func (p ImageParams) Clone() Params { return p.Copy() }

// Copy returns a deep copy so later edits of the draft never reach records.
func (p ImageParams) Copy() ImageParams {
	if p.ReferenceImages != nil {
		p.ReferenceImages = append([]AssetRef(nil), p.ReferenceImages...)
	}
	return p
}

// Normalize fills defaults and clamps the image count.
func (p ImageParams) Normalize() ImageParams {
	p.Prompt = strings.TrimSpace(p.Prompt)
	p.NegativePrompt = strings.TrimSpace(p.NegativePrompt)
	if p.AspectRatio == "" {
		p.AspectRatio = DefaultAspectRatio
	}
	if p.Size == "" {
		p.Size = DefaultImageSize
	}
	if p.NumberOfImages <= 0 {
		p.NumberOfImages = 1
	}
	if p.NumberOfImages > MaxImagesPerPrompt {
		p.NumberOfImages = MaxImagesPerPrompt
	}
	return p
}

// VideoParams is the configuration snapshot for a video request.
type VideoParams struct {
	Prompt         string     `json:"prompt"`
	NegativePrompt string     `json:"negative_prompt,omitempty"`
	AspectRatio    string     `json:"aspect_ratio"`
	Resolution     string     `json:"resolution"`
	Speed          VideoSpeed `json:"speed"`
	FirstFrame     *AssetRef  `json:"first_frame,omitempty"`
	LastFrame      *AssetRef  `json:"last_frame,omitempty"`
}

func (p VideoParams) PromptText() string { return p.Prompt }

func (p VideoParams) Clone() Params { return p.Copy() }

func (p VideoParams) Copy() VideoParams {
	if p.FirstFrame != nil {
		f := *p.FirstFrame
		p.FirstFrame = &f
	}
	if p.LastFrame != nil {
		f := *p.LastFrame
		p.LastFrame = &f
	}
	return p
}

func (p VideoParams) Normalize() VideoParams {
	p.Prompt = strings.TrimSpace(p.Prompt)
	p.NegativePrompt = strings.TrimSpace(p.NegativePrompt)
	if p.AspectRatio == "" {
		p.AspectRatio = DefaultVideoAspect
	}
	if p.Resolution == "" {
		p.Resolution = DefaultResolution
	}
	switch VideoSpeed(strings.ToLower(string(p.Speed))) {
	case VideoSpeedQuality:
		p.Speed = VideoSpeedQuality
	default:
		p.Speed = VideoSpeedFast
	}
	return p
}
