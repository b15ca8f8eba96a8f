package syncjob

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/nerrad567/iot-portal/internal/twin"
)

// fakeRegistry serves twins in pages of the requested size with numeric
// continuation tokens. Fields can be tweaked to simulate misbehaving
// registries.
type fakeRegistry struct {
	mu    sync.Mutex
	twins []twin.Twin

	// total overrides the reported TotalItems when non-negative.
	total int
	// dropTokenAfter clears NextPage after this many pages when > 0.
	dropTokenAfter int
	err            error

	calls   int
	filters []string
	tokens  []string
}

func newFakeRegistry(twins ...twin.Twin) *fakeRegistry {
	return &fakeRegistry{twins: twins, total: -1}
}

func (f *fakeRegistry) GetAllDevices(_ context.Context, token, filter string, pageSize int) (*twin.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.filters = append(f.filters, filter)
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}

	start := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("bad token %q", token)
		}
		start = n
	}
	end := min(start+pageSize, len(f.twins))
	if start > end {
		start = end
	}

	page := &twin.Page{
		Items:      append([]twin.Twin(nil), f.twins[start:end]...),
		TotalItems: len(f.twins),
	}
	if f.total >= 0 {
		page.TotalItems = f.total
	}
	if end < len(f.twins) || f.total > len(f.twins) {
		page.NextPage = strconv.Itoa(end)
	}
	if f.dropTokenAfter > 0 && f.calls >= f.dropTokenAfter {
		page.NextPage = ""
	}
	return page, nil
}

func (f *fakeRegistry) setTwins(twins ...twin.Twin) {
	f.mu.Lock()
	f.twins = twins
	f.mu.Unlock()
}

func deviceTwin(id string, version int64) twin.Twin {
	return twin.Twin{
		DeviceID:        id,
		Version:         version,
		Status:          "enabled",
		ConnectionState: "Disconnected",
		Tags:            map[string]any{twin.TagDeviceName: "name-" + id},
	}
}

func manyTwins(n int) []twin.Twin {
	out := make([]twin.Twin, n)
	for i := range out {
		out[i] = deviceTwin(fmt.Sprintf("dev-%03d", i), 1)
	}
	return out
}

// recorderSpy captures every Result passed to RecordRun.
type recorderSpy struct {
	mu      sync.Mutex
	results []Result
}

func (r *recorderSpy) RecordRun(_ context.Context, res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}
