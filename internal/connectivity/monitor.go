package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"sendlater/internal/constants"

	"github.com/sirupsen/logrus"
)

// Status describes the network link as last observed.
type Status struct {
	Connected         bool   `json:"connected"`
	InternetReachable *bool  `json:"internetReachable"`
	Type              string `json:"type"`
}

// Online reports whether the link is usable for delivery. An unknown
// reachability flag is treated as reachable; the gateway call will classify
// the failure if the probe was wrong.
func (s Status) Online() bool {
	if !s.Connected {
		return false
	}
	if s.InternetReachable != nil && !*s.InternetReachable {
		return false
	}
	return true
}

// Equal reports whether two observations describe the same link state.
// Reachability compares by value; two unknown flags are equal.
func (s Status) Equal(other Status) bool {
	if s.Connected != other.Connected || s.Type != other.Type {
		return false
	}
	if (s.InternetReachable == nil) != (other.InternetReachable == nil) {
		return false
	}
	return s.InternetReachable == nil || *s.InternetReachable == *other.InternetReachable
}

// Callback receives the new status on every reported transition.
type Callback func(Status)

// Monitor tracks online/offline transitions and fans them out to
// subscribers. Reconnects are debounced: a transition to online is only
// reported after the link has held for the quiet window, so an unstable link
// does not fire sync storms. Offline transitions report immediately.
type Monitor struct {
	probeURL      string
	probeInterval time.Duration
	debounce      time.Duration
	client        *http.Client
	logger        *logrus.Logger

	mu            sync.Mutex
	status        Status
	pendingOnline *time.Timer
	subscribers   map[int]Callback
	nextID        int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewMonitor(probeURL string, probeInterval, debounce time.Duration, logger *logrus.Logger) *Monitor {
	return &Monitor{
		probeURL:      probeURL,
		probeInterval: probeInterval,
		debounce:      debounce,
		client:        &http.Client{Timeout: constants.DefaultProbeTimeoutSec * time.Second},
		logger:        logger,
		subscribers:   make(map[int]Callback),
	}
}

// Start begins the background probe loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("connectivity monitor is already running")
	}
	if m.probeURL == "" {
		return fmt.Errorf("probe URL is required")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	m.wg.Add(1)
	go m.probeLoop()

	m.logger.WithField("interval", m.probeInterval).Info("Connectivity monitor started")
	return nil
}

// Stop gracefully stops the probe loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	if m.pendingOnline != nil {
		m.pendingOnline.Stop()
		m.pendingOnline = nil
	}
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("Connectivity monitor stopped")
}

// IsOnline returns the current reported status.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.Online()
}

// CurrentStatus returns a copy of the last reported status.
func (m *Monitor) CurrentStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe registers a callback for status transitions and returns its
// unsubscribe function. Unsubscribing twice is a no-op, and callbacks may
// unsubscribe themselves during dispatch.
func (m *Monitor) Subscribe(cb Callback) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers[id] = cb

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// SetStatus feeds an observed link state into the monitor. The probe loop
// calls this, and platform hooks or tests may call it directly.
func (m *Monitor) SetStatus(observed Status) {
	m.mu.Lock()

	wasOnline := m.status.Online()
	nowOnline := observed.Online()

	if !nowOnline {
		// Offline cancels any pending reconnect report and fires immediately.
		if m.pendingOnline != nil {
			m.pendingOnline.Stop()
			m.pendingOnline = nil
		}
		if wasOnline || !m.status.Equal(observed) {
			m.status = observed
			subs := m.snapshotSubscribersLocked()
			m.mu.Unlock()
			m.dispatch(subs, observed)
			return
		}
		m.mu.Unlock()
		return
	}

	if wasOnline {
		// Still online; record transport changes without re-notifying.
		m.status = observed
		m.mu.Unlock()
		return
	}

	// Offline -> online: hold for the quiet window before reporting.
	if m.pendingOnline != nil {
		m.pendingOnline.Stop()
	}
	m.pendingOnline = time.AfterFunc(m.debounce, func() {
		m.commitOnline(observed)
	})
	m.mu.Unlock()
}

func (m *Monitor) commitOnline(observed Status) {
	m.mu.Lock()
	m.pendingOnline = nil
	if m.status.Online() {
		m.mu.Unlock()
		return
	}
	m.status = observed
	subs := m.snapshotSubscribersLocked()
	m.mu.Unlock()

	m.logger.WithField("type", observed.Type).Info("Connectivity restored")
	m.dispatch(subs, observed)
}

func (m *Monitor) snapshotSubscribersLocked() []Callback {
	subs := make([]Callback, 0, len(m.subscribers))
	for _, cb := range m.subscribers {
		subs = append(subs, cb)
	}
	return subs
}

// dispatch runs outside the lock so callbacks can subscribe or unsubscribe.
func (m *Monitor) dispatch(subs []Callback, status Status) {
	for _, cb := range subs {
		cb(status)
	}
}

func (m *Monitor) probeLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	m.probe()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *Monitor) probe() {
	ctx, cancel := context.WithTimeout(m.ctx, m.client.Timeout)
	defer cancel()

	reachable := false
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err == nil {
		resp, probeErr := m.client.Do(req)
		if probeErr == nil {
			_ = resp.Body.Close()
			reachable = resp.StatusCode < http.StatusInternalServerError
		}
	}

	m.SetStatus(Status{
		Connected:         reachable,
		InternetReachable: &reachable,
		Type:              "probe",
	})
}
