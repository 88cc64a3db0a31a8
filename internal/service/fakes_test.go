package service

import (
	"context"
	"io"
	"sync"

	"github.com/zey041022/poem-web-app/internal/domain"
)

// sliceStream replays chunks and then returns err, or io.EOF when err is nil.
type sliceStream struct {
	chunks []domain.StreamChunk
	err    error
	closed bool
}

func (s *sliceStream) Next() (domain.StreamChunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return domain.StreamChunk{}, s.err
		}
		return domain.StreamChunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func content(parts ...string) []domain.StreamChunk {
	out := make([]domain.StreamChunk, 0, len(parts))
	for _, p := range parts {
		out = append(out, domain.StreamChunk{ContentDelta: p})
	}
	return out
}

// fakeStreamer answers the n-th call (zero based) with script(n).
type fakeStreamer struct {
	mu     sync.Mutex
	calls  int
	last   domain.GenerationRequest
	script func(n int) (domain.ChunkStream, error)
}

func (f *fakeStreamer) StreamChat(_ context.Context, req domain.GenerationRequest) (domain.ChunkStream, error) {
	f.mu.Lock()
	n := f.calls
	f.calls++
	f.last = req
	f.mu.Unlock()
	return f.script(n)
}

func (f *fakeStreamer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeJobs is a scripted image backend. Job IDs are "job-<submission>".
type fakeJobs struct {
	mu      sync.Mutex
	submits int
	polls   map[string]int
	fetches int
	last    string

	submit func(n int) (*domain.ImageJob, error)
	status func(ctx context.Context, job string, poll int) (*domain.ImageJob, error)
	fetch  func(n int) ([]byte, error)
}

func (f *fakeJobs) SubmitImageJob(_ context.Context, req domain.ImageGenerationRequest) (*domain.ImageJob, error) {
	f.mu.Lock()
	n := f.submits
	f.submits++
	f.last = req.Prompt
	f.mu.Unlock()
	if f.submit != nil {
		return f.submit(n)
	}
	return &domain.ImageJob{ID: jobName(n), Status: domain.JobPending}, nil
}

func (f *fakeJobs) GetImageJob(ctx context.Context, jobID string) (*domain.ImageJob, error) {
	f.mu.Lock()
	if f.polls == nil {
		f.polls = make(map[string]int)
	}
	n := f.polls[jobID]
	f.polls[jobID]++
	f.mu.Unlock()
	return f.status(ctx, jobID, n)
}

func (f *fakeJobs) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.mu.Lock()
	n := f.fetches
	f.fetches++
	f.mu.Unlock()
	return f.fetch(n)
}

func (f *fakeJobs) counts() (submits, polls, fetches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.polls {
		polls += n
	}
	return f.submits, polls, f.fetches
}

func (f *fakeJobs) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func jobName(n int) string {
	return "job-" + string(rune('a'+n))
}

// memStore is an in-memory domain.AssetStore.
type memStore struct {
	mu     sync.Mutex
	assets map[domain.AssetID]domain.ImageAsset
	saves  int
}

func newMemStore() *memStore {
	return &memStore{assets: make(map[domain.AssetID]domain.ImageAsset)}
}

func (m *memStore) Save(_ context.Context, id domain.AssetID, asset domain.ImageAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[id] = asset
	m.saves++
	return nil
}

func (m *memStore) Exists(_ context.Context, id domain.AssetID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.assets[id]
	return ok, nil
}

func (m *memStore) get(id domain.AssetID) (domain.ImageAsset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	return a, ok
}
