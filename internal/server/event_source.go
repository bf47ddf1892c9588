// Package server connects the NATS transport to the per-device dispatchers.
// Decoded events arrive as JSON on mesh.device.<id>.event.<kind> subjects;
// this adapter types them and hands them to the device's sequential
// processing loop.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mesh-state/mesh-state-server/internal/events"
	"github.com/mesh-state/mesh-state-server/internal/models"
	"github.com/mesh-state/mesh-state-server/internal/session"
	meshsync "github.com/mesh-state/mesh-state-server/internal/sync"
)

const eventBuffer = 256

// EventSource subscribes to device event subjects and feeds each device's
// dispatcher. One goroutine per device keeps event handling sequential per
// device and concurrent across devices.
type EventSource struct {
	nc       *nats.Conn
	registry *session.Registry
	syncer   *meshsync.Adapter

	mu      sync.Mutex
	closed  bool
	devices map[models.DeviceID]chan events.Event
	wg      sync.WaitGroup
}

// NewEventSource creates an event source over an established NATS
// connection. The sync adapter may be nil to run without remote mirroring.
func NewEventSource(nc *nats.Conn, registry *session.Registry, syncer *meshsync.Adapter) *EventSource {
	return &EventSource{
		nc:       nc,
		registry: registry,
		syncer:   syncer,
		devices:  make(map[models.DeviceID]chan events.Event),
	}
}

// Start subscribes and blocks until the context is cancelled, then waits
// for the device loops, which exit on the same context. In-flight sync
// calls are left to finish on their own.
func (s *EventSource) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe("mesh.device.*.event.*", func(msg *nats.Msg) {
		s.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe device events: %w", err)
	}

	log.Info().Msg("Event source started")

	<-ctx.Done()

	sub.Unsubscribe()
	s.shutdown()

	return ctx.Err()
}

// shutdown marks the source closed and waits for the device loops.
// Unsubscribe does not join a callback already in flight; the closed flag
// makes such stragglers drop their events rather than send into teardown,
// and the device channels are never closed while a sender may hold them.
func (s *EventSource) shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
}

// handleMessage types one transport message and queues it on the device's
// loop. Malformed subjects and payloads are logged and dropped; processing
// continues with the next event.
func (s *EventSource) handleMessage(ctx context.Context, msg *nats.Msg) {
	deviceID, kind, err := parseSubject(msg.Subject)
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("Invalid event subject")
		return
	}

	ev, err := decodeEvent(kind, msg.Data)
	if err != nil {
		log.Error().
			Err(err).
			Str("kind", kind).
			Int64("device", int64(deviceID)).
			Msg("Failed to decode event")
		return
	}

	ch := s.deviceChan(ctx, deviceID)
	if ch == nil {
		return
	}

	// All subjects share the subscription's delivery goroutine, so a full
	// device buffer stalls delivery to every device until that consumer
	// drains. Events are never dropped while running; a slow device slows
	// the rest rather than losing its ordering.
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

// deviceChan returns the event channel for a device, creating the session
// and starting its dispatcher loop on first access. After shutdown it
// returns nil and the event is dropped.
func (s *EventSource) deviceChan(ctx context.Context, id models.DeviceID) chan events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	ch, ok := s.devices[id]
	if ok {
		return ch
	}

	sess := s.registry.GetOrCreate(id)

	var opts []session.Option
	if s.syncer != nil {
		opts = append(opts, session.WithSyncAdapter(s.syncer))
	}
	dispatcher := session.NewDispatcher(sess, opts...)

	ch = make(chan events.Event, eventBuffer)
	s.devices[id] = ch

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Int64("device", int64(id)).Msg("Device event loop started")
		if err := dispatcher.Run(ctx, ch); err != nil && err != context.Canceled {
			log.Error().Err(err).Int64("device", int64(id)).Msg("Device event loop stopped")
		}
	}()

	return ch
}

// parseSubject extracts the device identifier and event kind from
// mesh.device.<id>.event.<kind>.
func parseSubject(subject string) (models.DeviceID, string, error) {
	parts := strings.Split(subject, ".")
	if len(parts) != 5 || parts[0] != "mesh" || parts[1] != "device" || parts[3] != "event" {
		return 0, "", fmt.Errorf("unexpected subject shape: %s", subject)
	}

	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse device id: %w", err)
	}

	return models.DeviceID(id), parts[4], nil
}

// decodeEvent unmarshals a payload into the typed event for its kind.
func decodeEvent(kind string, data []byte) (events.Event, error) {
	switch kind {
	case "device-metadata":
		return unmarshalEvent[events.DeviceMetadata](data)
	case "routing-result":
		return unmarshalEvent[events.RoutingResult](data)
	case "telemetry":
		return unmarshalEvent[events.Telemetry](data)
	case "device-status":
		return unmarshalEvent[events.DeviceStatus](data)
	case "waypoint":
		return unmarshalEvent[events.Waypoint](data)
	case "my-node-info":
		return unmarshalEvent[events.MyNodeInfo](data)
	case "user-info":
		return unmarshalEvent[events.UserInfo](data)
	case "position":
		return unmarshalEvent[events.Position](data)
	case "node-info":
		return unmarshalEvent[events.NodeInfo](data)
	case "channel":
		return unmarshalEvent[events.Channel](data)
	case "config":
		return unmarshalEvent[events.ConfigSection](data)
	case "module-config":
		return unmarshalEvent[events.ModuleConfigSection](data)
	case "message":
		return unmarshalEvent[events.MessagePacket](data)
	case "traceroute":
		return unmarshalEvent[events.TraceRoute](data)
	case "pending-settings":
		return unmarshalEvent[events.PendingSettings](data)
	case "mesh-packet":
		return unmarshalEvent[events.MeshPacket](data)
	case "client-notification":
		return unmarshalEvent[events.ClientNotification](data)
	case "neighbor-info":
		return unmarshalEvent[events.NeighborInfo](data)
	default:
		return nil, fmt.Errorf("unknown event kind: %s", kind)
	}
}

func unmarshalEvent[T events.Event](data []byte) (events.Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}
