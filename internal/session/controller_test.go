package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"genstudio/internal/domain"
	"genstudio/internal/history"
)

type stubGate struct {
	mu         sync.Mutex
	authorized bool
	grant      bool
	requests   int
	revokes    int
}

func (g *stubGate) IsAuthorized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authorized
}

func (g *stubGate) RequestAuthorization(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests++
	if !g.grant {
		return domain.ErrAuthDialogFailed
	}
	g.authorized = true
	return nil
}

func (g *stubGate) Revoke() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revokes++
	g.authorized = false
}

// stubGenerator counts dispatches and optionally blocks until released.
type stubGenerator struct {
	mu      sync.Mutex
	calls   int
	ref     string
	err     error
	release chan struct{}
	entered chan struct{}
}

func (g *stubGenerator) GenerateImage(ctx context.Context, p domain.ImageParams, refs []domain.AssetRef) (string, error) {
	return g.generate()
}

func (g *stubGenerator) GenerateVideo(ctx context.Context, p domain.VideoParams, first, last *domain.AssetRef) (string, error) {
	return g.generate()
}

func (g *stubGenerator) generate() (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	return g.ref, g.err
}

func (g *stubGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fixture struct {
	ctrl  *Controller[domain.ImageParams]
	store *history.Store[domain.ImageParams]
	gate  *stubGate
	gen   *stubGenerator
}

func newFixture(t *testing.T, gen *stubGenerator, gate *stubGate, interactive bool) fixture {
	t.Helper()
	store, err := history.Open[domain.ImageParams](context.Background(), history.NewMemoryMedium(), history.Options{Partition: "image", Capacity: 100})
	if err != nil {
		t.Fatalf("history.Open error: %v", err)
	}
	var counter int
	ctrl, err := New(Options[domain.ImageParams]{
		Kind:        domain.KindImage,
		Store:       store,
		Dispatch:    ImageDispatch(gen),
		Gate:        gate,
		Interactive: interactive,
		Normalize:   domain.ImageParams.Normalize,
		NewID: func() string {
			counter++
			return fmt.Sprintf("rec-%d", counter)
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return fixture{ctrl: ctrl, store: store, gate: gate, gen: gen}
}

func TestSubmitRejectsBlankPrompt(t *testing.T) {
	f := newFixture(t, &stubGenerator{ref: "ref"}, &stubGate{authorized: true}, true)
	for _, prompt := range []string{"", "   ", "\n\t"} {
		err := f.ctrl.Submit(context.Background(), domain.ImageParams{Prompt: prompt})
		if !errors.Is(err, domain.ErrInvalidPrompt) {
			t.Fatalf("prompt %q: expected ErrInvalidPrompt, got %v", prompt, err)
		}
		if phase := f.ctrl.State().Phase; phase != domain.PhaseIdle {
			t.Fatalf("prompt %q: phase changed to %q", prompt, phase)
		}
	}
	if f.gen.Calls() != 0 {
		t.Fatalf("expected no dispatch, got %d", f.gen.Calls())
	}
}

func TestSubmitSuccessPersistsRecord(t *testing.T) {
	f := newFixture(t, &stubGenerator{ref: "https://cdn.example.com/a.png"}, &stubGate{authorized: true}, true)
	ctx := context.Background()
	if err := f.ctrl.Submit(ctx, domain.ImageParams{Prompt: "a red bicycle"}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	state := f.ctrl.State()
	if state.Phase != domain.PhaseSucceeded {
		t.Fatalf("phase = %q, want succeeded", state.Phase)
	}
	if state.LatestArtifactRef != "https://cdn.example.com/a.png" {
		t.Fatalf("unexpected artifact %q", state.LatestArtifactRef)
	}
	items := f.ctrl.ListHistory(ctx)
	if len(items) != 1 {
		t.Fatalf("expected 1 history item, got %d", len(items))
	}
	if items[0].ArtifactRef != state.LatestArtifactRef || items[0].Prompt != "a red bicycle" {
		t.Fatalf("unexpected record %+v", items[0])
	}
	if items[0].Params.AspectRatio != domain.DefaultAspectRatio {
		t.Fatalf("expected normalized params in record, got %+v", items[0].Params)
	}

	if err := f.ctrl.Submit(ctx, domain.ImageParams{Prompt: "another"}); err != nil {
		t.Fatalf("second Submit error: %v", err)
	}
	items = f.ctrl.ListHistory(ctx)
	if len(items) != 2 || items[0].ID == items[1].ID {
		t.Fatalf("expected two records with unique ids, got %+v", items)
	}
}

func TestSubmitWhileInFlightIsRejected(t *testing.T) {
	gen := &stubGenerator{ref: "ref", release: make(chan struct{}), entered: make(chan struct{}, 1)}
	f := newFixture(t, gen, &stubGate{authorized: true}, true)
	ctx := context.Background()

	done, err := f.ctrl.SubmitAsync(ctx, domain.ImageParams{Prompt: "first"})
	if err != nil {
		t.Fatalf("SubmitAsync error: %v", err)
	}
	<-gen.entered

	if phase := f.ctrl.State().Phase; phase != domain.PhaseInFlight {
		t.Fatalf("phase = %q, want in_flight", phase)
	}
	if err := f.ctrl.Submit(ctx, domain.ImageParams{Prompt: "second"}); !errors.Is(err, domain.ErrAlreadyInProgress) {
		t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
	}
	if err := f.ctrl.SetDraft(domain.ImageParams{Prompt: "edit"}); !errors.Is(err, domain.ErrAlreadyInProgress) {
		t.Fatalf("expected SetDraft to be rejected in flight, got %v", err)
	}
	if draft := f.ctrl.State().Draft.Prompt; draft != "first" {
		t.Fatalf("rejected submit changed the draft to %q", draft)
	}

	close(gen.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit error: %v", err)
	}
	if gen.Calls() != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", gen.Calls())
	}
}

func TestCallerCancellationDoesNotAbandonRequest(t *testing.T) {
	gen := &stubGenerator{ref: "ref-late", release: make(chan struct{}), entered: make(chan struct{}, 1)}
	f := newFixture(t, gen, &stubGate{authorized: true}, true)
	ctx, cancel := context.WithCancel(context.Background())

	done, err := f.ctrl.SubmitAsync(ctx, domain.ImageParams{Prompt: "slow"})
	if err != nil {
		t.Fatalf("SubmitAsync error: %v", err)
	}
	<-gen.entered
	cancel()
	close(gen.release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("submit error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not resolve")
	}
	if len(f.ctrl.ListHistory(context.Background())) != 1 {
		t.Fatal("expected late result to be recorded")
	}
}

func TestSubmitAuthExpired(t *testing.T) {
	gate := &stubGate{authorized: true, grant: true}
	gen := &stubGenerator{err: &domain.RemoteError{Status: 404, Message: "Requested entity was not found."}}
	f := newFixture(t, gen, gate, true)

	err := f.ctrl.Submit(context.Background(), domain.ImageParams{Prompt: "cat"})
	if !errors.Is(err, domain.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	state := f.ctrl.State()
	if state.Phase != domain.PhaseFailed || state.Failure != domain.FailureAuthExpired {
		t.Fatalf("unexpected state %+v", state)
	}
	if gate.revokes != 1 || gate.requests != 1 {
		t.Fatalf("expected revoke and re-authorization, got revokes=%d requests=%d", gate.revokes, gate.requests)
	}
	if !gate.IsAuthorized() {
		t.Fatal("expected gate re-authorized after successful request")
	}
	if len(f.ctrl.ListHistory(context.Background())) != 0 {
		t.Fatal("failed request must not be recorded")
	}
}

func TestSubmitAuthExpiredNonInteractive(t *testing.T) {
	gate := &stubGate{authorized: true, grant: true}
	gen := &stubGenerator{err: errors.New("Requested entity was not found.")}
	f := newFixture(t, gen, gate, false)

	_ = f.ctrl.Submit(context.Background(), domain.ImageParams{Prompt: "cat"})
	if gate.requests != 0 {
		t.Fatalf("non-interactive mode must not request authorization, got %d", gate.requests)
	}
	if gate.IsAuthorized() {
		t.Fatal("expected gate to stay unauthorized")
	}
}

func TestSubmitUnauthorizedGateRequestsAuthorization(t *testing.T) {
	gate := &stubGate{authorized: false, grant: false}
	gen := &stubGenerator{ref: "ref"}
	f := newFixture(t, gen, gate, true)

	err := f.ctrl.Submit(context.Background(), domain.ImageParams{Prompt: "cat"})
	if !errors.Is(err, domain.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if gen.Calls() != 0 {
		t.Fatal("must not dispatch without authorization")
	}
	if f.ctrl.State().Failure != domain.FailureAuthExpired {
		t.Fatalf("unexpected state %+v", f.ctrl.State())
	}

	gate.grant = true
	f.ctrl.Dismiss()
	if err := f.ctrl.Submit(context.Background(), domain.ImageParams{Prompt: "cat"}); err != nil {
		t.Fatalf("Submit after grant error: %v", err)
	}
	if gen.Calls() != 1 {
		t.Fatalf("expected dispatch after authorization, got %d", gen.Calls())
	}
}

func TestSubmitRateLimited(t *testing.T) {
	for _, msg := range []string{"gemini status 429", "RESOURCE_EXHAUSTED", "quota exceeded for project"} {
		t.Run(msg, func(t *testing.T) {
			f := newFixture(t, &stubGenerator{err: errors.New(msg)}, &stubGate{authorized: true}, true)
			err := f.ctrl.Submit(context.Background(), domain.ImageParams{Prompt: "keep me", NegativePrompt: "blur"})
			if !errors.Is(err, domain.ErrRateLimited) {
				t.Fatalf("expected ErrRateLimited, got %v", err)
			}
			state := f.ctrl.State()
			if state.Phase != domain.PhaseRateLimited {
				t.Fatalf("phase = %q, want rate_limited", state.Phase)
			}
			if state.Draft.Prompt != "keep me" || state.Draft.NegativePrompt != "blur" {
				t.Fatalf("draft cleared: %+v", state.Draft)
			}
		})
	}
}

func TestSubmitGenericFailureCarriesMessage(t *testing.T) {
	f := newFixture(t, &stubGenerator{err: &domain.RemoteError{Status: 400, Message: "prompt blocked by safety filter"}}, &stubGate{authorized: true}, true)
	err := f.ctrl.Submit(context.Background(), domain.ImageParams{Prompt: "cat"})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	state := f.ctrl.State()
	if state.Phase != domain.PhaseFailed || state.Failure != domain.FailureGeneric {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.Error != "prompt blocked by safety filter" {
		t.Fatalf("unexpected message %q", state.Error)
	}
}

func TestSubmitEmptyArtifactIsGenericFailure(t *testing.T) {
	f := newFixture(t, &stubGenerator{ref: "  "}, &stubGate{authorized: true}, true)
	if err := f.ctrl.Submit(context.Background(), domain.ImageParams{Prompt: "cat"}); !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if f.ctrl.State().Error == "" {
		t.Fatal("expected an error message")
	}
}

type failingStore struct {
	RecordStore[domain.ImageParams]
}

func (failingStore) Put(ctx context.Context, rec domain.Record[domain.ImageParams]) error {
	return errors.New("disk full")
}

func (failingStore) Recent(ctx context.Context) ([]domain.Record[domain.ImageParams], error) {
	return nil, domain.ErrStorageUnavailable
}

func TestSubmitStorageFailureIsReported(t *testing.T) {
	ctrl, err := New(Options[domain.ImageParams]{
		Kind:     domain.KindImage,
		Store:    failingStore{},
		Dispatch: ImageDispatch(&stubGenerator{ref: "ref"}),
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	err = ctrl.Submit(context.Background(), domain.ImageParams{Prompt: "cat"})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	state := ctrl.State()
	if state.Phase != domain.PhaseFailed || state.Error != MessageStorageWrite {
		t.Fatalf("unexpected state %+v", state)
	}
	if items := ctrl.ListHistory(context.Background()); items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil history on read failure, got %#v", items)
	}
}

func TestDismiss(t *testing.T) {
	f := newFixture(t, &stubGenerator{err: errors.New("boom")}, &stubGate{authorized: true}, true)
	f.ctrl.Dismiss()
	if f.ctrl.State().Phase != domain.PhaseIdle {
		t.Fatal("dismiss on idle must be a no-op")
	}
	_ = f.ctrl.Submit(context.Background(), domain.ImageParams{Prompt: "cat"})
	if f.ctrl.State().Phase != domain.PhaseFailed {
		t.Fatalf("expected failed, got %q", f.ctrl.State().Phase)
	}
	f.ctrl.Dismiss()
	state := f.ctrl.State()
	if state.Phase != domain.PhaseIdle || state.Error != "" || state.Failure != domain.FailureNone {
		t.Fatalf("unexpected state after dismiss %+v", state)
	}
	if f.gen.Calls() != 1 {
		t.Fatal("dismiss must not retry")
	}
}

func TestHistoryOperations(t *testing.T) {
	f := newFixture(t, &stubGenerator{ref: "ref"}, &stubGate{authorized: true}, true)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := f.ctrl.Submit(ctx, domain.ImageParams{Prompt: fmt.Sprintf("p%d", i)}); err != nil {
			t.Fatalf("Submit error: %v", err)
		}
	}
	if err := f.ctrl.DeleteHistoryItem(ctx, "rec-2"); err != nil {
		t.Fatalf("DeleteHistoryItem error: %v", err)
	}
	if err := f.ctrl.DeleteHistoryItem(ctx, "does-not-exist"); err != nil {
		t.Fatalf("DeleteHistoryItem missing error: %v", err)
	}
	if n := len(f.ctrl.ListHistory(ctx)); n != 2 {
		t.Fatalf("expected 2 records, got %d", n)
	}
	if err := f.ctrl.ClearHistory(ctx); err != nil {
		t.Fatalf("ClearHistory error: %v", err)
	}
	if n := len(f.ctrl.ListHistory(ctx)); n != 0 {
		t.Fatalf("expected empty history, got %d", n)
	}
}

func TestLoadHistoryRestoresLatestArtifact(t *testing.T) {
	f := newFixture(t, &stubGenerator{ref: "ref"}, &stubGate{authorized: true}, true)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, ref := range []string{"old", "newest", "middle"} {
		offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
		rec := domain.NewRecord(fmt.Sprintf("seed-%d", i), ref, domain.ImageParams{Prompt: ref}, base.Add(offsets[i]))
		if err := f.store.Put(ctx, rec); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}
	f.ctrl.LoadHistory(ctx)
	if got := f.ctrl.State().LatestArtifactRef; got != "newest" {
		t.Fatalf("LatestArtifactRef = %q, want newest", got)
	}
}

func TestVideoControllerIsIndependent(t *testing.T) {
	ctx := context.Background()
	medium := history.NewMemoryMedium()
	imageStore, _ := history.Open[domain.ImageParams](ctx, medium, history.Options{Partition: "image"})
	videoStore, _ := history.Open[domain.VideoParams](ctx, medium, history.Options{Partition: "video"})

	imageGen := &stubGenerator{ref: "img", release: make(chan struct{}), entered: make(chan struct{}, 1)}
	videoGen := &stubGenerator{ref: "vid"}
	images, _ := New(Options[domain.ImageParams]{Kind: domain.KindImage, Store: imageStore, Dispatch: ImageDispatch(imageGen)})
	videos, _ := New(Options[domain.VideoParams]{Kind: domain.KindVideo, Store: videoStore, Dispatch: VideoDispatch(videoGen), Normalize: domain.VideoParams.Normalize})

	done, err := images.SubmitAsync(ctx, domain.ImageParams{Prompt: "still"})
	if err != nil {
		t.Fatalf("image SubmitAsync error: %v", err)
	}
	<-imageGen.entered
	if err := videos.Submit(ctx, domain.VideoParams{Prompt: "moving"}); err != nil {
		t.Fatalf("video Submit error while image in flight: %v", err)
	}
	close(imageGen.release)
	if err := <-done; err != nil {
		t.Fatalf("image submit error: %v", err)
	}
	if len(images.ListHistory(ctx)) != 1 || len(videos.ListHistory(ctx)) != 1 {
		t.Fatal("expected one record per partition")
	}
	if got := videos.ListHistory(ctx)[0].Params.Speed; got != domain.VideoSpeedFast {
		t.Fatalf("expected normalized speed, got %q", got)
	}
}

func TestMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	store, _ := history.Open[domain.ImageParams](context.Background(), history.NewMemoryMedium(), history.Options{Partition: "image"})
	ctrl, _ := New(Options[domain.ImageParams]{
		Kind:     domain.KindImage,
		Store:    store,
		Dispatch: ImageDispatch(&stubGenerator{err: errors.New("quota")}),
		Metrics:  metrics,
	})
	_ = ctrl.Submit(context.Background(), domain.ImageParams{Prompt: "cat"})
	if got := testutil.ToFloat64(metrics.submissions.WithLabelValues("image", "rate_limited")); got != 1 {
		t.Fatalf("rate_limited counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.inFlight.WithLabelValues("image")); got != 0 {
		t.Fatalf("in-flight gauge = %v, want 0", got)
	}
}

func TestMetricsCountUserRemovals(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	store, _ := history.Open[domain.ImageParams](context.Background(), history.NewMemoryMedium(), history.Options{Partition: "image"})
	ctrl, _ := New(Options[domain.ImageParams]{
		Kind:     domain.KindImage,
		Store:    store,
		Dispatch: ImageDispatch(&stubGenerator{ref: "ref-1"}),
		Metrics:  metrics,
	})
	if err := ctrl.DeleteHistoryItem(context.Background(), "missing"); err != nil {
		t.Fatalf("DeleteHistoryItem: %v", err)
	}
	if err := ctrl.ClearHistory(context.Background()); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if err := ctrl.ClearHistory(context.Background()); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if got := testutil.ToFloat64(metrics.removals.WithLabelValues("image", "item")); got != 1 {
		t.Fatalf("item removals = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.removals.WithLabelValues("image", "all")); got != 2 {
		t.Fatalf("clear removals = %v, want 2", got)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options[domain.ImageParams]{}); err == nil {
		t.Fatal("expected error without store")
	}
	store, _ := history.Open[domain.ImageParams](context.Background(), history.NewMemoryMedium(), history.Options{Partition: "image"})
	if _, err := New(Options[domain.ImageParams]{Store: store}); err == nil {
		t.Fatal("expected error without dispatch")
	}
}
