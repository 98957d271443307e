// Package realtime pushes appointment changes to the open calendars of each clinic.
package realtime

import (
	"DentalClinic/metrics"
	"DentalClinic/scheduling"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	MessageType = "appointments"
	ActionView  = "view"

	queryTimeout = 10 * time.Second
)

// Message is the envelope of every frame sent to clients. Data is either a
// list of records or a single record.
type Message struct {
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

// Event kinds carried between instances.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event is one appointment change of a tenant.
type Event struct {
	Kind          string             `json:"kind"`
	Tenant        string             `json:"tenant"`
	Record        *scheduling.Record `json:"record,omitempty"`
	AppointmentID string             `json:"appointmentId,omitempty"`
}

// AppointmentSource answers calendar queries. The returned query has its dates filled in.
type AppointmentSource interface {
	View(ctx context.Context, tenant string, q scheduling.ViewQuery) (scheduling.ViewQuery, []scheduling.Record, error)
}

// Publisher fans events out to every instance, this one included.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type tenantView struct {
	query   scheduling.ViewQuery
	records []scheduling.Record
}

// Hub owns the connections of every tenant and the last view sent to them.
// Both maps are guarded by mu; a tenant disappears from both when its last
// connection closes.
type Hub struct {
	mu        sync.Mutex
	clients   map[string]map[*Client]struct{}
	views     map[string]*tenantView
	source    AppointmentSource
	publisher Publisher
	origins   map[string]struct{}
	logger    zerolog.Logger
}

// NewHub creates an empty hub. An empty origins list accepts any origin.
func NewHub(source AppointmentSource, origins []string, logger zerolog.Logger) *Hub {
	h := &Hub{
		clients: make(map[string]map[*Client]struct{}),
		views:   make(map[string]*tenantView),
		source:  source,
		origins: make(map[string]struct{}, len(origins)),
		logger:  logger,
	}
	for _, o := range origins {
		h.origins[o] = struct{}{}
	}
	return h
}

// SetPublisher routes events through p instead of applying them locally.
func (h *Hub) SetPublisher(p Publisher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publisher = p
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.tenant]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.tenant] = set
	}
	set[c] = struct{}{}
	metrics.ConnectionOpened()
	h.logger.Debug().Str("tenant", c.tenant).Str("client", c.id).Int("connections", len(set)).Msg("client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.tenant]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	metrics.ConnectionClosed()
	if len(set) == 0 {
		delete(h.clients, c.tenant)
		delete(h.views, c.tenant)
	}
	h.logger.Debug().Str("tenant", c.tenant).Str("client", c.id).Int("connections", len(set)).Msg("client disconnected")
}

// Connections returns the number of open connections of tenant.
func (h *Hub) Connections(tenant string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[tenant])
}

// Snapshot returns a copy of the cached view of tenant.
func (h *Hub) Snapshot(tenant string) []scheduling.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	view, ok := h.views[tenant]
	if !ok {
		return nil
	}
	return append([]scheduling.Record(nil), view.records...)
}

// query answers a calendar request from c and caches the result for its tenant.
func (h *Hub) query(c *Client, q scheduling.ViewQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	resolved, records, err := h.source.View(ctx, c.tenant, q)
	if err != nil {
		h.logger.Warn().Err(err).Str("tenant", c.tenant).Msg("failed to load calendar view")
		return
	}
	payload, err := encode(records)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode calendar view")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.tenant][c]; !ok {
		return
	}
	h.views[c.tenant] = &tenantView{query: resolved, records: records}
	h.deliver(c, payload)
}

// AppointmentCreated adds a record to live calendars.
func (h *Hub) AppointmentCreated(tenant string, record scheduling.Record) {
	h.dispatch(Event{Kind: EventCreated, Tenant: tenant, Record: &record})
}

// AppointmentUpdated replaces a record in live calendars.
func (h *Hub) AppointmentUpdated(tenant string, record scheduling.Record) {
	h.dispatch(Event{Kind: EventUpdated, Tenant: tenant, Record: &record})
}

// AppointmentDeleted drops a record from live calendars.
func (h *Hub) AppointmentDeleted(tenant string, appointmentID string) {
	h.dispatch(Event{Kind: EventDeleted, Tenant: tenant, AppointmentID: appointmentID})
}

func (h *Hub) dispatch(ev Event) {
	h.mu.Lock()
	publisher := h.publisher
	h.mu.Unlock()

	if publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := publisher.Publish(ctx, ev)
		if err == nil {
			return
		}
		h.logger.Warn().Err(err).Str("tenant", ev.Tenant).Msg("failed to publish appointment event, applying locally")
	}
	h.Apply(ev)
}

// Apply patches the cached view of the event's tenant and pushes the change
// to its connections. Updates push the single record; deletes push the
// patched snapshot, and are dropped while the tenant has no cached view.
func (h *Hub) Apply(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[ev.Tenant]
	if len(set) == 0 {
		return
	}
	view := h.views[ev.Tenant]

	var data interface{}
	switch ev.Kind {
	case EventCreated, EventUpdated:
		if ev.Record == nil {
			return
		}
		if view != nil {
			view.records = upsert(view.records, *ev.Record, view.query)
		}
		data = *ev.Record
	case EventDeleted:
		// without a cached view there is no snapshot to patch
		if view == nil {
			return
		}
		view.records = remove(view.records, ev.AppointmentID)
		data = append([]scheduling.Record{}, view.records...)
	default:
		h.logger.Warn().Str("kind", ev.Kind).Msg("unknown appointment event")
		return
	}

	payload, err := encode(data)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode appointment event")
		return
	}
	for c := range set {
		h.deliver(c, payload)
	}
}

// deliver queues payload for c without blocking. Callers hold mu, which keeps
// c.send open for the duration.
func (h *Hub) deliver(c *Client, payload []byte) {
	select {
	case c.send <- payload:
		metrics.IncBroadcast("delivered")
	default:
		metrics.IncBroadcast("skipped")
		h.logger.Debug().Str("tenant", c.tenant).Str("client", c.id).Msg("client buffer full, message dropped")
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()
	for _, c := range all {
		c.close()
	}
}

func upsert(records []scheduling.Record, record scheduling.Record, q scheduling.ViewQuery) []scheduling.Record {
	for i := range records {
		if records[i].AppointmentID != record.AppointmentID {
			continue
		}
		if !q.Contains(record) {
			return append(records[:i], records[i+1:]...)
		}
		records[i] = record
		return records
	}
	if q.Contains(record) {
		records = append(records, record)
	}
	return records
}

func remove(records []scheduling.Record, appointmentID string) []scheduling.Record {
	for i := range records {
		if records[i].AppointmentID == appointmentID {
			return append(records[:i], records[i+1:]...)
		}
	}
	return records
}

func encode(data interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: MessageType, Action: ActionView, Data: data})
}
