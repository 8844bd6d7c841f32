package mpd

import (
	"context"
	"sync"

	"vibechain/internal/core"
)

// Preview wraps a player for dry runs: reads pass through, queue changes stay in memory.
type Preview struct {
	base core.Player

	mu    sync.Mutex
	added []string
}

func NewPreview(base core.Player) *Preview {
	return &Preview{base: base}
}

func (p *Preview) Append(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, path)
	return nil
}

func (p *Preview) Len(ctx context.Context) (int, error) {
	n, err := p.base.Len(ctx)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return n + len(p.added), nil
}

func (p *Preview) Files(ctx context.Context) ([]string, error) {
	files, err := p.base.Files(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append(files, p.added...), nil
}

func (p *Preview) Current(ctx context.Context) (*core.NowPlaying, error) {
	return p.base.Current(ctx)
}

func (p *Preview) State(ctx context.Context) (string, error) {
	return p.base.State(ctx)
}

func (p *Preview) Clear(context.Context) error { return nil }
func (p *Preview) Crop(context.Context) error  { return nil }
func (p *Preview) Play(context.Context) error  { return nil }
func (p *Preview) Stop(context.Context) error  { return nil }

// Added returns the paths that would have been queued.
func (p *Preview) Added() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.added...)
}
