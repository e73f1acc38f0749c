package reconciler

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"gitlab.bluewillows.net/root/wansync/pkg/provider"
	"gitlab.bluewillows.net/root/wansync/pkg/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Fake source
// =============================================================================

// fakeSource implements source.Source and counts session usage.
type fakeSource struct {
	mu        sync.Mutex
	obs       source.Observation
	openErr   error
	statusErr error
	closeErr  error
	opens     int
	closes    int
}

func newFakeSource(ipv4, ipv6 string) *fakeSource {
	return &fakeSource{obs: source.Observation{IPv4: ipv4, IPv6: ipv6}}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Ping(context.Context) error { return nil }

func (s *fakeSource) Open(context.Context) (source.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opens++
	return &fakeSession{src: s}, nil
}

func (s *fakeSource) sessions() (opens, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

type fakeSession struct {
	src *fakeSource
}

func (s *fakeSession) WANStatus(context.Context) (source.Observation, error) {
	s.src.mu.Lock()
	defer s.src.mu.Unlock()
	if s.src.statusErr != nil {
		return source.Observation{}, s.src.statusErr
	}
	return s.src.obs, nil
}

func (s *fakeSession) Close(context.Context) error {
	s.src.mu.Lock()
	defer s.src.mu.Unlock()
	s.src.closes++
	return s.src.closeErr
}

// =============================================================================
// Fake provider
// =============================================================================

// fakeProvider implements provider.Provider over an in-memory zone and
// records every upsert.
type fakeProvider struct {
	mu        sync.Mutex
	records   map[string]provider.Record
	getErr    map[provider.RecordType]error
	upsertErr map[provider.RecordType]error
	gets      int
	upserts   []provider.Record
}

func newFakeProvider(records ...provider.Record) *fakeProvider {
	p := &fakeProvider{
		records:   make(map[string]provider.Record),
		getErr:    make(map[provider.RecordType]error),
		upsertErr: make(map[provider.RecordType]error),
	}
	for _, r := range records {
		p.records[fakeKey(r.Name, r.Type)] = r
	}
	return p
}

func fakeKey(name string, rt provider.RecordType) string {
	return name + "|" + string(rt)
}

func (p *fakeProvider) Name() string { return "fake-dns" }

func (p *fakeProvider) Ping(context.Context) error { return nil }

func (p *fakeProvider) GetRecord(_ context.Context, _, name string, rt provider.RecordType) (*provider.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	if err := p.getErr[rt]; err != nil {
		return nil, err
	}
	r, ok := p.records[fakeKey(name, rt)]
	if !ok {
		return nil, provider.WrapError("fake-dns", "get", provider.ErrNotFound)
	}
	return &r, nil
}

func (p *fakeProvider) UpsertRecord(_ context.Context, r provider.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.upsertErr[r.Type]; err != nil {
		return err
	}
	p.upserts = append(p.upserts, r)
	p.records[fakeKey(r.Name, r.Type)] = r
	return nil
}

func (p *fakeProvider) upserted() []provider.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.Record(nil), p.upserts...)
}

func (p *fakeProvider) getCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gets
}

// =============================================================================
// Fixtures
// =============================================================================

const (
	testZone = "Z123"
	testName = "home.example.com."
)

var (
	targetA    = Target{ZoneID: testZone, Name: testName, Type: provider.RecordTypeA, TTL: 300}
	targetAAAA = Target{ZoneID: testZone, Name: testName, Type: provider.RecordTypeAAAA, TTL: 300}
)

func published(rt provider.RecordType, value string) provider.Record {
	return provider.Record{ZoneID: testZone, Name: testName, Type: rt, Value: value, TTL: 300}
}
