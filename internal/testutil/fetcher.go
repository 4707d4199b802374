package testutil

import (
	"context"
	"sync"

	"github.com/dwsmith1983/oacload/internal/artifact"
	"github.com/dwsmith1983/oacload/pkg/types"
)

// FakeFetcher serves canned report bodies and persists them like the real
// fetcher. Keys with neither a body nor an error get Default.
type FakeFetcher struct {
	Artifacts *artifact.Store
	Default   []byte

	mu     sync.Mutex
	bodies map[types.DedupKey][]byte
	errs   map[types.DedupKey]failure
	calls  map[types.DedupKey]int
}

// NewFakeFetcher creates a fake that writes artifacts into store.
func NewFakeFetcher(store *artifact.Store, def []byte) *FakeFetcher {
	return &FakeFetcher{
		Artifacts: store,
		Default:   def,
		bodies:    make(map[types.DedupKey][]byte),
		errs:      make(map[types.DedupKey]failure),
		calls:     make(map[types.DedupKey]int),
	}
}

// SetBody serves body for key.
func (f *FakeFetcher) SetBody(key types.DedupKey, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[key] = body
}

type failure struct {
	err       error
	remaining int
}

// FailWith makes the next times fetches of key return err. A negative times
// fails every fetch.
func (f *FakeFetcher) FailWith(key types.DedupKey, times int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[key] = failure{err: err, remaining: times}
}

// Calls returns how many times key was fetched.
func (f *FakeFetcher) Calls(key types.DedupKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// TotalCalls returns the number of Fetch calls across all keys.
func (f *FakeFetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *FakeFetcher) Fetch(ctx context.Context, asset string, key types.DedupKey) (*types.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls[key]++
	if fail, ok := f.errs[key]; ok && fail.remaining != 0 {
		fail.remaining--
		f.errs[key] = fail
		f.mu.Unlock()
		return nil, fail.err
	}
	body, ok := f.bodies[key]
	if !ok {
		body = f.Default
	}
	f.mu.Unlock()

	path, err := f.Artifacts.Write(asset, key, body)
	if err != nil {
		return nil, err
	}
	return &types.RawTable{Key: key, Data: body, Path: path}, nil
}
