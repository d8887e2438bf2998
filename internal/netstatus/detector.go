package netstatus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"driftq/internal/events"

	"github.com/rs/zerolog"
)

// Prober performs one connectivity check against the remote backend.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber checks reachability of the remote health endpoint.
type HTTPProber struct {
	client *http.Client
	url    string
}

func NewHTTPProber(client *http.Client, url string) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPProber{client: client, url: url}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("health endpoint returned %s", resp.Status)
	}
	return nil
}

// Detector maintains the online/offline signal. Platform hints are accepted
// through SetHint but a hint never flips the state by itself: the periodic
// probe is the source of truth, since platform connectivity events are known
// to misfire in both directions.
type Detector struct {
	prober   Prober
	interval time.Duration
	bus      *events.EventBus
	logger   *zerolog.Logger

	online atomic.Bool
	probe  chan struct{}

	mu   sync.Mutex
	subs []chan bool
}

func NewDetector(prober Prober, interval time.Duration, bus *events.EventBus, logger *zerolog.Logger) *Detector {
	if interval <= 0 {
		interval = time.Second
	}
	return &Detector{
		prober:   prober,
		interval: interval,
		bus:      bus,
		logger:   logger,
		probe:    make(chan struct{}, 1),
	}
}

// Online reports the current detector verdict.
func (d *Detector) Online() bool {
	return d.online.Load()
}

// SetHint feeds a platform connectivity hint. An "online" hint schedules an
// immediate re-probe instead of trusting the platform outright.
func (d *Detector) SetHint(online bool) {
	if online {
		select {
		case d.probe <- struct{}{}:
		default:
		}
		return
	}
	d.transition(false)
}

// Subscribe returns a buffered channel receiving status transitions. A slow
// consumer drops transitions rather than blocking the detector.
func (d *Detector) Subscribe() <-chan bool {
	ch := make(chan bool, 4)
	d.mu.Lock()
	d.subs = append(d.subs, ch)
	d.mu.Unlock()
	return ch
}

// Start runs the poll loop until ctx is done. The first probe happens
// immediately so consumers do not wait a full interval for the initial state.
func (d *Detector) Start(ctx context.Context) {
	d.check(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.check(ctx)
		case <-d.probe:
			d.check(ctx)
		}
	}
}

func (d *Detector) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, d.interval*5)
	defer cancel()

	err := d.prober.Probe(probeCtx)
	d.transition(err == nil)
}

func (d *Detector) transition(online bool) {
	was := d.online.Swap(online)
	if was == online {
		return
	}

	if d.logger != nil {
		d.logger.Info().Bool("online", online).Msg("Network status changed")
	}
	if d.bus != nil {
		eventType := events.EventNetworkOffline
		if online {
			eventType = events.EventNetworkOnline
		}
		_ = d.bus.PublishJSON(eventType, map[string]bool{"online": online})
	}

	d.mu.Lock()
	subs := append([]chan bool(nil), d.subs...)
	d.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- online:
		default:
		}
	}
}
