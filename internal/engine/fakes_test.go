package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pcinventory/internal/config"
	"pcinventory/internal/facts"
	"pcinventory/internal/transport"
)

var (
	t0          = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	errBusy     = &transport.Error{Status: 503, Message: "collector busy"}
	errNoConfig = errors.New("config file is being edited")
)

func completeRecord() facts.Record {
	return facts.Record{
		UUID:        "4c4c4544-0042-3510-8052-b7c04f4e4d32",
		MACAddress:  "00:11:22:33:44:55",
		NetworkType: facts.Ethernet,
		UserName:    "login-user",
		IPAddress:   "192.168.1.100",
		OS:          "Windows",
		OSVersion:   "10.0.19045",
		ModelName:   "OptiPlex 7090",
	}
}

func testConfig() *config.Agent {
	cfg := config.DefaultAgent()
	cfg.Client.CheckIntervalSecs = 60
	cfg.Client.SendIntervalSecs = 60
	cfg.Retry.FirstRetryDelaySecs = 1
	cfg.Retry.SecondRetryDelaySecs = 2
	cfg.PCInfo.UserName = "Taro Yamada"
	cfg.ApplyRecord(completeRecord())
	return cfg
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// instantSleeper records each wait and advances the clock instead of
// blocking.
type instantSleeper struct {
	mu    sync.Mutex
	clock *fakeClock
	waits []time.Duration
}

func (s *instantSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	s.clock.Advance(d)
	return ctx.Err()
}

func (s *instantSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// clone copies cfg; Agent holds only value fields.
func clone(cfg *config.Agent) *config.Agent {
	c := *cfg
	return &c
}

type memStore struct {
	mu       sync.Mutex
	cfg      *config.Agent
	saves    int
	saveErr  error
	loadErrs []error
}

func newStore(cfg *config.Agent) *memStore {
	return &memStore{cfg: clone(cfg)}
}

func (s *memStore) Load() (*config.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.loadErrs) > 0 {
		err := s.loadErrs[0]
		s.loadErrs = s.loadErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return clone(s.cfg), nil
}

func (s *memStore) Save(cfg *config.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.cfg = clone(cfg)
	return nil
}

func (s *memStore) Current() *config.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.cfg)
}

func (s *memStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type fakeSource struct {
	record     facts.Record
	collectErr error
	networkErr error
}

func (f *fakeSource) Collect(context.Context) (facts.Record, error) {
	return f.record, f.collectErr
}

func (f *fakeSource) Network(context.Context) (facts.Network, error) {
	return f.record.Network(), f.networkErr
}

// fakeTransport returns the queued errors in order, then succeeds.
type fakeTransport struct {
	mu       sync.Mutex
	clock    *fakeClock
	errs     []error
	sent     []facts.Record
	calledAt []time.Time
}

func (f *fakeTransport) Submit(_ context.Context, r facts.Record) (transport.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, r)
	f.calledAt = append(f.calledAt, f.clock.Now())
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return transport.Receipt{}, err
		}
	}
	return transport.Receipt{Action: "updated", ID: 1}, nil
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) CalledAt() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.calledAt...)
}

type harness struct {
	clock     *fakeClock
	sleeper   *instantSleeper
	store     *memStore
	source    *fakeSource
	transport *fakeTransport
	pipeline  *Pipeline
}

func newHarness(cfg *config.Agent) *harness {
	clock := newClock()
	h := &harness{
		clock:     clock,
		sleeper:   &instantSleeper{clock: clock},
		store:     newStore(cfg),
		source:    &fakeSource{record: completeRecord()},
		transport: &fakeTransport{clock: clock},
	}
	h.pipeline = &Pipeline{
		Source: h.source,
		Store:  h.store,
		Dial:   func(*config.Agent) Transport { return h.transport },
		Log:    zerolog.Nop(),
		Now:    clock.Now,
	}
	return h
}

func (h *harness) coordinator(opts ...CoordinatorOption) *Coordinator {
	opts = append([]CoordinatorOption{WithSleeper(h.sleeper.Sleep)}, opts...)
	return NewCoordinator(h.pipeline, h.store, zerolog.Nop(), opts...)
}

func (h *harness) scheduler(cfg *config.Agent) *Scheduler {
	return NewScheduler(cfg, h.store, h.pipeline, h.coordinator(), zerolog.Nop())
}
