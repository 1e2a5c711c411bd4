package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sankofa/delivery-geo/pkg/async"
	"github.com/sankofa/delivery-geo/pkg/config"
	"github.com/sankofa/delivery-geo/pkg/logger"
	"go.uber.org/zap"
)

// Record is the last known position of one driver.
type Record struct {
	DriverID   string                 `json:"driver_id"`
	Lat        float64                `json:"lat"`
	Lng        float64                `json:"lng"`
	TS         float64                `json:"ts"`
	Meta       map[string]interface{} `json:"meta"`
	ReceivedAt time.Time              `json:"-"`
}

// Event is the fan-out payload sent to observers.
type Event struct {
	Type     string                 `json:"type"`
	DriverID string                 `json:"driver_id"`
	Lat      float64                `json:"lat"`
	Lng      float64                `json:"lng"`
	TS       float64                `json:"ts"`
	Meta     map[string]interface{} `json:"meta"`
}

// locationMessage is the inbound update shape, from the driver socket or the
// HTTP fallback. Lat/lng are pointers so absence is distinguishable from zero.
type locationMessage struct {
	Lat  *float64               `json:"lat"`
	Lng  *float64               `json:"lng"`
	TS   *float64               `json:"ts"`
	Meta map[string]interface{} `json:"meta"`
}

// Hub keeps one connection per driver, a set of observers and the last known
// position table. Writers never block the hub: fan-out runs on the clients'
// buffered send channels and a slow observer gets dropped, not waited on.
type Hub struct {
	mu        sync.RWMutex
	drivers   map[string]*Client
	observers map[*Client]struct{}
	lastKnown map[string]Record

	retention     time.Duration
	sweepInterval time.Duration
	sendBuffer    int

	stop chan struct{}
	once sync.Once
	now  func() time.Time
}

// NewHub creates a live-location hub from configuration.
func NewHub(cfg config.TrackingConfig) *Hub {
	return &Hub{
		drivers:       make(map[string]*Client),
		observers:     make(map[*Client]struct{}),
		lastKnown:     make(map[string]Record),
		retention:     cfg.Retention,
		sweepInterval: cfg.SweepInterval,
		sendBuffer:    cfg.SendBuffer,
		stop:          make(chan struct{}),
		now:           time.Now,
	}
}

// Start runs the retention sweeper until Stop is called.
func (h *Hub) Start(ctx context.Context) {
	async.Go(ctx, "location-sweeper", func(ctx context.Context) {
		ticker := time.NewTicker(h.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pruned := h.sweep(h.now())
				if pruned > 0 {
					logger.InfoContext(ctx, "Pruned stale driver locations", zap.Int("count", pruned))
				}
			case <-h.stop:
				return
			}
		}
	})
}

// Stop shuts the sweeper down. Safe to call more than once.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.stop) })
}

// RegisterDriver binds a connection to a driver id. A reconnect replaces the
// previous connection, which is closed so only one socket speaks per driver.
func (h *Hub) RegisterDriver(driverID string, c *Client) {
	h.mu.Lock()
	prev := h.drivers[driverID]
	h.drivers[driverID] = c
	connectedDrivers.Set(float64(len(h.drivers)))
	h.mu.Unlock()

	if prev != nil && prev != c {
		prev.Close()
	}
}

// UnregisterDriver removes a driver connection, but only if it is still the
// current one; a stale disconnect must not evict a fresh reconnect.
func (h *Hub) UnregisterDriver(driverID string, c *Client) {
	h.mu.Lock()
	if h.drivers[driverID] == c {
		delete(h.drivers, driverID)
	}
	connectedDrivers.Set(float64(len(h.drivers)))
	h.mu.Unlock()
}

// RegisterObserver adds a monitoring connection.
func (h *Hub) RegisterObserver(c *Client) {
	h.mu.Lock()
	h.observers[c] = struct{}{}
	connectedObservers.Set(float64(len(h.observers)))
	h.mu.Unlock()
}

// UnregisterObserver removes a monitoring connection.
func (h *Hub) UnregisterObserver(c *Client) {
	h.mu.Lock()
	delete(h.observers, c)
	connectedObservers.Set(float64(len(h.observers)))
	h.mu.Unlock()
}

// IngestMessage parses and applies one raw location update for a driver.
func (h *Hub) IngestMessage(driverID string, raw []byte) (Record, error) {
	var msg locationMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Record{}, fmt.Errorf("malformed location update: %w", err)
	}
	if msg.Lat == nil || msg.Lng == nil {
		return Record{}, fmt.Errorf("location update requires numeric lat and lng")
	}
	return h.Ingest(driverID, *msg.Lat, *msg.Lng, msg.TS, msg.Meta), nil
}

// Ingest applies one location update: last-write-wins on the position table,
// then fan-out to observers. A missing timestamp defaults to receipt time.
func (h *Hub) Ingest(driverID string, lat, lng float64, ts *float64, meta map[string]interface{}) Record {
	now := h.now()
	record := Record{
		DriverID:   driverID,
		Lat:        lat,
		Lng:        lng,
		ReceivedAt: now,
	}
	if ts != nil {
		record.TS = *ts
	} else {
		record.TS = float64(now.UnixNano()) / float64(time.Second)
	}
	if meta != nil {
		record.Meta = meta
	} else {
		record.Meta = map[string]interface{}{}
	}

	h.mu.Lock()
	h.lastKnown[driverID] = record
	h.mu.Unlock()
	locationUpdates.Inc()

	h.broadcast(Event{
		Type:     "location",
		DriverID: record.DriverID,
		Lat:      record.Lat,
		Lng:      record.Lng,
		TS:       record.TS,
		Meta:     record.Meta,
	})
	return record
}

// broadcast fans an event out to every observer in the order the hub applied
// the updates; subscription hints never narrow the stream, filtering happens
// client-side. Enqueueing never blocks: a full or broken send buffer
// deregisters only that observer.
func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.observers))
	for c := range h.observers {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.SendEvent(ev); err != nil {
			broadcastFailures.Inc()
			h.UnregisterObserver(c)
			c.Close()
		}
	}
}

// LastKnown returns the current record for one driver.
func (h *Hub) LastKnown(driverID string) (Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	record, ok := h.lastKnown[driverID]
	return record, ok
}

// Snapshot returns a copy of all last known positions, ordered by driver id.
func (h *Hub) Snapshot() []Record {
	h.mu.RLock()
	out := make([]Record, 0, len(h.lastKnown))
	for _, record := range h.lastKnown {
		out = append(out, record)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out
}

// sweep prunes records not refreshed within the retention window. Returns the
// number pruned.
func (h *Hub) sweep(now time.Time) int {
	cutoff := now.Add(-h.retention)
	h.mu.Lock()
	defer h.mu.Unlock()
	pruned := 0
	for id, record := range h.lastKnown {
		if record.ReceivedAt.Before(cutoff) {
			delete(h.lastKnown, id)
			pruned++
		}
	}
	if pruned > 0 {
		prunedRecords.Add(float64(pruned))
	}
	return pruned
}
