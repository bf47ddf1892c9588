package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mesh-state/mesh-state-server/internal/events"
	"github.com/mesh-state/mesh-state-server/internal/models"
	"github.com/mesh-state/mesh-state-server/internal/state"
	meshsync "github.com/mesh-state/mesh-state-server/internal/sync"
)

// NodeNumChangedFunc is notified when the device learns a new own node
// number, before any later event is classified against it.
type NodeNumChangedFunc func(deviceID models.DeviceID, num models.NodeNum)

// Dispatcher applies one device's event stream to its stores. Events are
// handled strictly in arrival order; only the sync adapter runs off this
// path.
type Dispatcher struct {
	session *Session
	syncer  *meshsync.Adapter

	// Own node number cache mirrored from the device state, used to
	// classify messages and errors without taking the store lock.
	myNodeNum models.NodeNum

	onNodeNumChanged NodeNumChangedFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSyncAdapter mirrors node and packet projections to a remote backend.
func WithSyncAdapter(a *meshsync.Adapter) Option {
	return func(d *Dispatcher) { d.syncer = a }
}

// WithNodeNumChanged installs a hook for own-node-number changes.
func WithNodeNumChanged(fn NodeNumChangedFunc) Option {
	return func(d *Dispatcher) { d.onNodeNumChanged = fn }
}

// NewDispatcher creates a dispatcher bound to one session's stores.
func NewDispatcher(s *Session, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		session:   s,
		myNodeNum: s.Device.MyNodeNum(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes events until the channel closes or the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			d.Handle(ev)
		}
	}
}

// Handle routes a single event to the store mutations it implies. The switch
// is exhaustive over the closed event set; an event never makes Handle
// panic or return an error, per the background-sync contract.
func (d *Dispatcher) Handle(ev events.Event) {
	switch ev := ev.(type) {
	case events.DeviceMetadata:
		d.session.Device.AddMetadata(ev.From, ev.Metadata)

	case events.RoutingResult:
		d.handleRoutingResult(ev)

	case events.Telemetry:
		// Reserved for metrics wiring.

	case events.DeviceStatus:
		d.session.Device.SetStatus(ev.Status)

	case events.Waypoint:
		d.session.Device.AddWaypoint(models.WaypointWithMetadata{
			Waypoint: ev.Waypoint,
			Channel:  ev.Channel,
			From:     ev.From,
			RxTime:   ev.RxTime,
		})

	case events.MyNodeInfo:
		changed := d.session.Device.SetMyNodeNum(ev.MyNodeNum)
		d.myNodeNum = ev.MyNodeNum
		if changed {
			// Make sure the own node resolves in the registry before
			// anything references it.
			d.session.Nodes.AddNode(models.Node{Num: ev.MyNodeNum})
			if d.onNodeNumChanged != nil {
				d.onNodeNumChanged(d.session.Device.ID(), ev.MyNodeNum)
			}
		}

	case events.UserInfo:
		d.session.Nodes.AddUser(ev.From, ev.User)

	case events.Position:
		d.session.Nodes.AddPosition(ev.From, ev.Position)

	case events.NodeInfo:
		d.session.Nodes.AddNode(models.Node{
			Num:       ev.Num,
			User:      ev.User,
			Position:  ev.Position,
			SNR:       ev.SNR,
			LastHeard: ev.LastHeard,
			Metrics:   ev.Metrics,
		})
		if d.syncer != nil {
			d.syncer.SyncNode(nodeRecord(ev))
		}

	case events.Channel:
		d.session.Device.AddChannel(ev.Channel)

	case events.ConfigSection:
		d.session.Device.SetConfig(ev.Section, ev.Payload)

	case events.ModuleConfigSection:
		d.session.Device.SetModuleConfig(ev.Section, ev.Payload)

	case events.MessagePacket:
		d.handleMessage(ev)

	case events.TraceRoute:
		d.session.Device.AddTraceRoute(ev.TraceRoute)

	case events.PendingSettings:
		d.session.Device.SetPendingSettingsChanges(ev.Pending)

	case events.MeshPacket:
		d.session.Nodes.ProcessPacket(ev.From, ev.SNR, ev.RxTime)
		if d.syncer != nil {
			d.syncer.SyncPacket(packetRecord(ev))
		}

	case events.ClientNotification:
		d.session.Device.AddClientNotification(ev.Notification)
		d.session.Device.SetDialogOpen(models.DialogClientNotification, true)

	case events.NeighborInfo:
		d.session.Device.AddNeighborInfo(ev.From, ev.Neighbors)
	}
}

// handleRoutingResult applies the error-reason routing rows.
func (d *Dispatcher) handleRoutingResult(ev events.RoutingResult) {
	switch ev.Error {
	case models.RoutingErrorNone:
		return

	case models.RoutingErrorMaxRetransmit:
		log.Error().
			Stringer("reason", ev.Error).
			Uint32("from", uint32(ev.From)).
			Msg("Routing error")

	case models.RoutingErrorNoChannel, models.RoutingErrorPKIUnknownPubkey:
		log.Error().
			Stringer("reason", ev.Error).
			Uint32("from", uint32(ev.From)).
			Msg("Routing error")
		d.session.Nodes.SetNodeError(ev.From, ev.Error)
		d.session.Device.SetDialogOpen(models.DialogRefreshKeys, true)

	default:
		log.Info().
			Stringer("reason", ev.Error).
			Uint32("from", uint32(ev.From)).
			Msg("Routing error")
	}
}

// handleMessage converts a text/alert packet, appends it to the log and
// updates unread counters. A message arriving before the own node number is
// known gets best-effort classification; that transient window is accepted.
func (d *Dispatcher) handleMessage(ev events.MessagePacket) {
	msg, err := events.ToMessage(ev.Packet, d.myNodeNum)
	if err != nil {
		log.Error().
			Err(err).
			Uint32("from", uint32(ev.Packet.From)).
			Uint32("id", ev.Packet.ID).
			Msg("Dropping undecodable message")
		return
	}

	d.session.Messages.Save(msg)

	switch msg.Type {
	case models.MessageTypeDirect:
		if msg.To == d.myNodeNum && msg.From != d.myNodeNum {
			d.session.Messages.IncrementUnread(state.DirectConversation(msg.From))
		}
	case models.MessageTypeBroadcast:
		if msg.From != d.myNodeNum {
			d.session.Messages.IncrementUnread(state.BroadcastConversation(msg.Channel))
		}
	}
}

// nodeRecord projects a node-info event into the sync record shape. Integer
// fixed-point coordinates become degrees only when present.
func nodeRecord(ev events.NodeInfo) meshsync.NodeRecord {
	rec := meshsync.NodeRecord{
		Num:       uint32(ev.Num),
		LastHeard: ev.LastHeard,
	}
	if rec.LastHeard.IsZero() {
		rec.LastHeard = time.Now()
	}

	if ev.User != nil {
		longName := ev.User.LongName
		shortName := ev.User.ShortName
		hwModel := ev.User.HWModel
		rec.LongName = &longName
		rec.ShortName = &shortName
		rec.HWModel = &hwModel
	}

	if ev.Position != nil {
		if ev.Position.LatitudeI != 0 {
			lat := float64(ev.Position.LatitudeI) / 1e7
			rec.Lat = &lat
		}
		if ev.Position.LongitudeI != 0 {
			lng := float64(ev.Position.LongitudeI) / 1e7
			rec.Lng = &lng
		}
		altitude := ev.Position.Altitude
		rec.Altitude = &altitude
	}

	if ev.Metrics != nil {
		rec.BatteryLevel = copyUint32(ev.Metrics.BatteryLevel)
		rec.Voltage = copyFloat32(ev.Metrics.Voltage)
		rec.ChannelUtilization = copyFloat32(ev.Metrics.ChannelUtilization)
		rec.AirUtilTx = copyFloat32(ev.Metrics.AirUtilTx)
		rec.UptimeSeconds = copyUint32(ev.Metrics.UptimeSeconds)
	}

	return rec
}

// packetRecord projects mesh packet metadata into the packet-log shape.
func packetRecord(ev events.MeshPacket) meshsync.PacketRecord {
	rxTime := ev.RxTime
	if rxTime.IsZero() {
		rxTime = time.Now()
	}
	return meshsync.PacketRecord{
		ID:       uuid.New(),
		FromNode: uint32(ev.From),
		ToNode:   uint32(ev.To),
		RxSNR:    ev.SNR,
		RxRSSI:   ev.RSSI,
		HopLimit: ev.HopLimit,
		RxTime:   rxTime,
	}
}

func copyUint32(v *uint32) *uint32 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyFloat32(v *float32) *float32 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
