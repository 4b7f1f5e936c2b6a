// Package connectivity decides whether the sync agent believes it is
// online. The verdict comes from active probes, never from interface
// state: a cable plugged into a dead switch is still offline.
package connectivity

import (
	"context"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Waesta/Wapos-sub011/internal/events"
	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultProbeURLs are the well-known no-content endpoints fanned out to
// when the server itself is on loopback and cannot vouch for the uplink.
var DefaultProbeURLs = []string{
	"http://clients3.google.com/generate_204",
	"http://connectivitycheck.gstatic.com/generate_204",
	"http://www.msftconnecttest.com/connecttest.txt",
}

const (
	DefaultProbeInterval = 10 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

type Monitor struct {
	client   *resty.Client
	bus      *events.Bus
	logger   *zap.Logger
	interval time.Duration

	// originURL is probed when the server is remote; when empty the
	// monitor fans out to probeURLs instead.
	originURL string
	probeURLs []string

	online atomic.Bool

	// mu serializes the read-compare-store in check against Online readers.
	mu sync.Mutex
}

func NewMonitor(cfg models.AgentConfig, bus *events.Bus, logger *zap.Logger) *Monitor {
	interval := cfg.ProbeInterval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	probeURLs := cfg.ProbeURLs
	if len(probeURLs) == 0 {
		probeURLs = DefaultProbeURLs
	}

	m := &Monitor{
		client:    resty.New().SetTimeout(timeout),
		bus:       bus,
		logger:    logger,
		interval:  interval,
		probeURLs: probeURLs,
	}
	if !isLoopback(cfg.ServerAddr) {
		m.originURL = strings.TrimRight(cfg.ServerAddr, "/") + "/api/v1/ping"
	}
	return m
}

// isLoopback reports whether the server address points at this machine,
// in which case reaching it proves nothing about the uplink.
func isLoopback(serverAddr string) bool {
	u, err := url.Parse(serverAddr)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "" || host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// Online returns the last verdict.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Run probes immediately, then on every tick until the context ends.
func (m *Monitor) Run(ctx context.Context) {
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one probe round and publishes only on verdict transitions.
// The agent starts out assumed offline, so the first successful probe
// publishes and kicks off the initial drain.
func (m *Monitor) check(ctx context.Context) {
	verdict := m.probe(ctx)

	m.mu.Lock()
	was := m.online.Load()
	m.online.Store(verdict)
	m.mu.Unlock()

	if verdict == was {
		return
	}

	m.logger.Info("connectivity changed",
		zap.Bool("was_online", was),
		zap.Bool("is_online", verdict))
	m.bus.PublishConnectivity(events.ConnectivityChanged{WasOnline: was, IsOnline: verdict})
}

func (m *Monitor) probe(ctx context.Context) bool {
	if m.originURL != "" {
		return m.probeOne(ctx, m.originURL)
	}
	return m.probeAny(ctx)
}

func (m *Monitor) probeOne(ctx context.Context, url string) bool {
	resp, err := m.client.R().SetContext(ctx).Get(url)
	return err == nil && resp.StatusCode() >= 200 && resp.StatusCode() < 400
}

// probeAny fans out to every probe URL in parallel; one success is enough.
func (m *Monitor) probeAny(ctx context.Context) bool {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan bool, len(m.probeURLs))
	for _, u := range m.probeURLs {
		go func(target string) {
			results <- m.probeOne(probeCtx, target)
		}(u)
	}

	for range m.probeURLs {
		select {
		case ok := <-results:
			if ok {
				return true
			}
		case <-ctx.Done():
			return false
		}
	}
	return false
}
