package session

import (
	"context"

	"genstudio/internal/domain"
)

// Gate reports and obtains permission to call the remote generator.
type Gate interface {
	IsAuthorized() bool
	// RequestAuthorization may block while the user picks a key. It fails
	// with domain.ErrAuthDialogFailed when no authorization was granted.
	RequestAuthorization(ctx context.Context) error
	// Revoke marks the gate unauthorized.
	Revoke()
}

// RemoteGenerator performs the actual content generation and returns an
// artifact reference (URL or storage handle).
type RemoteGenerator interface {
	GenerateImage(ctx context.Context, params domain.ImageParams, refs []domain.AssetRef) (string, error)
	GenerateVideo(ctx context.Context, params domain.VideoParams, firstFrame, lastFrame *domain.AssetRef) (string, error)
}

// RecordStore is the history surface the controller writes through.
type RecordStore[P domain.Params] interface {
	Put(ctx context.Context, rec domain.Record[P]) error
	Recent(ctx context.Context) ([]domain.Record[P], error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Dispatch sends one request for a mode to the remote generator.
type Dispatch[P domain.Params] func(ctx context.Context, params P) (string, error)

func ImageDispatch(gen RemoteGenerator) Dispatch[domain.ImageParams] {
	return func(ctx context.Context, p domain.ImageParams) (string, error) {
		return gen.GenerateImage(ctx, p, p.ReferenceImages)
	}
}

func VideoDispatch(gen RemoteGenerator) Dispatch[domain.VideoParams] {
	return func(ctx context.Context, p domain.VideoParams) (string, error) {
		return gen.GenerateVideo(ctx, p, p.FirstFrame, p.LastFrame)
	}
}
