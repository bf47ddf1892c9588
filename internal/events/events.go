// Package events defines the closed set of decoded protocol events the
// dispatcher routes, one type per event kind. The transport layer hands the
// core fully-decoded events; nothing here parses radio bytes.
package events

import (
	"encoding/json"
	"time"

	"github.com/mesh-state/mesh-state-server/internal/models"
)

// Event is the sealed interface over all decoded protocol events. The
// unexported marker keeps the set closed so the dispatcher's type switch
// covers every case.
type Event interface {
	event()
}

// DeviceMetadata reports a node's capability blob.
type DeviceMetadata struct {
	From     models.NodeNum        `json:"from"`
	Metadata models.DeviceMetadata `json:"metadata"`
}

// RoutingResult is the error variant of a routing packet.
type RoutingResult struct {
	From  models.NodeNum      `json:"from"`
	Error models.RoutingError `json:"error"`
}

// Telemetry is a periodic metrics packet. Currently unused by the dispatcher
// but part of the event set so its arrival is never an error.
type Telemetry struct {
	From models.NodeNum `json:"from"`
	Time time.Time      `json:"time"`
}

// DeviceStatus reports a connection state transition for the device itself.
type DeviceStatus struct {
	Status models.DeviceStatus `json:"status"`
}

// Waypoint carries a shared map marker.
type Waypoint struct {
	Waypoint models.Waypoint `json:"waypoint"`
	Channel  uint32          `json:"channel"`
	From     models.NodeNum  `json:"from"`
	RxTime   time.Time       `json:"rxTime"`
}

// MyNodeInfo announces the device's own node number.
type MyNodeInfo struct {
	MyNodeNum models.NodeNum `json:"myNodeNum"`
}

// UserInfo carries the identity fields of a peer node.
type UserInfo struct {
	From models.NodeNum `json:"from"`
	User models.User    `json:"user"`
}

// Position carries a position report for a peer node.
type Position struct {
	From     models.NodeNum  `json:"from"`
	Position models.Position `json:"position"`
}

// NodeInfo is a full node record. Optional sub-records are nil when the
// sender did not include them.
type NodeInfo struct {
	Num       models.NodeNum        `json:"num"`
	User      *models.User          `json:"user,omitempty"`
	Position  *models.Position      `json:"position,omitempty"`
	SNR       float32               `json:"snr"`
	LastHeard time.Time             `json:"lastHeard"`
	Metrics   *models.DeviceMetrics `json:"deviceMetrics,omitempty"`
}

// Channel carries one channel slot of the device configuration.
type Channel struct {
	Channel models.Channel `json:"channel"`
}

// ConfigSection carries one section of the device configuration.
type ConfigSection struct {
	Section string          `json:"section"`
	Payload json.RawMessage `json:"payload"`
}

// ModuleConfigSection carries one section of the module configuration.
type ModuleConfigSection struct {
	Section string          `json:"section"`
	Payload json.RawMessage `json:"payload"`
}

// MessagePacket is a decoded text or alert message.
type MessagePacket struct {
	Packet models.MessagePacket `json:"packet"`
}

// TraceRoute is a completed traceroute exchange.
type TraceRoute struct {
	TraceRoute models.TraceRoute `json:"traceRoute"`
}

// PendingSettings signals that settings changes await a commit.
type PendingSettings struct {
	Pending bool `json:"pending"`
}

// MeshPacket is the metadata of any raw packet heard on the mesh.
type MeshPacket struct {
	From     models.NodeNum `json:"from"`
	To       models.NodeNum `json:"to"`
	SNR      float32        `json:"snr"`
	RSSI     int32          `json:"rssi"`
	HopLimit uint32         `json:"hopLimit"`
	RxTime   time.Time      `json:"rxTime"`
}

// ClientNotification is a firmware-originated notice for the user.
type ClientNotification struct {
	Notification models.ClientNotification `json:"notification"`
}

// NeighborInfo is a node's report of its direct radio neighbors.
type NeighborInfo struct {
	From      models.NodeNum    `json:"from"`
	Neighbors []models.Neighbor `json:"neighbors"`
}

func (DeviceMetadata) event()      {}
func (RoutingResult) event()       {}
func (Telemetry) event()           {}
func (DeviceStatus) event()        {}
func (Waypoint) event()            {}
func (MyNodeInfo) event()          {}
func (UserInfo) event()            {}
func (Position) event()            {}
func (NodeInfo) event()            {}
func (Channel) event()             {}
func (ConfigSection) event()       {}
func (ModuleConfigSection) event() {}
func (MessagePacket) event()       {}
func (TraceRoute) event()          {}
func (PendingSettings) event()     {}
func (MeshPacket) event()          {}
func (ClientNotification) event()  {}
func (NeighborInfo) event()        {}
