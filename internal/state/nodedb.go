// Package state holds the in-memory stores kept per connected device: the
// node registry, the message log and the device state. Each store is mutated
// only by its device's dispatcher and read concurrently by API handlers, so
// every mutation runs under the store lock and readers get copies.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/mesh-state/mesh-state-server/internal/models"
)

// NodeDB is the registry of known peer nodes for one device.
type NodeDB struct {
	mu    sync.RWMutex
	nodes map[models.NodeNum]*models.Node
}

// NewNodeDB creates an empty node registry.
func NewNodeDB() *NodeDB {
	return &NodeDB{
		nodes: make(map[models.NodeNum]*models.Node),
	}
}

// get returns the record for num, creating it on first reference.
// Callers must hold the write lock.
func (db *NodeDB) get(num models.NodeNum) *models.Node {
	node, ok := db.nodes[num]
	if !ok {
		node = &models.Node{Num: num}
		db.nodes[num] = node
	}
	return node
}

// AddNode merges a full node record. Absent sub-records leave previously
// known fields untouched; a node is never replaced wholesale.
func (db *NodeDB) AddNode(n models.Node) {
	db.mu.Lock()
	defer db.mu.Unlock()

	node := db.get(n.Num)
	if n.User != nil {
		u := *n.User
		node.User = &u
	}
	if n.Position != nil {
		p := *n.Position
		node.Position = &p
	}
	if n.Metrics != nil {
		mergeMetrics(node, n.Metrics)
	}
	if n.SNR != 0 {
		node.SNR = n.SNR
	}
	if !n.LastHeard.IsZero() {
		node.LastHeard = n.LastHeard
	}
}

// AddUser merges identity fields into the node record.
func (db *NodeDB) AddUser(num models.NodeNum, user models.User) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u := user
	db.get(num).User = &u
}

// AddPosition merges position fields into the node record.
func (db *NodeDB) AddPosition(num models.NodeNum, pos models.Position) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p := pos
	db.get(num).Position = &p
}

// ProcessPacket records last-heard and SNR bookkeeping for the sender of any
// packet heard on the mesh.
func (db *NodeDB) ProcessPacket(from models.NodeNum, snr float32, rxTime time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()

	node := db.get(from)
	node.SNR = snr
	if !rxTime.IsZero() {
		node.LastHeard = rxTime
	}
}

// SetNodeError sets the error classification on a node.
func (db *NodeDB) SetNodeError(num models.NodeNum, errReason models.RoutingError) {
	db.mu.Lock()
	defer db.mu.Unlock()

	e := errReason
	db.get(num).Error = &e
}

// ClearNodeError removes the error classification from a node.
func (db *NodeDB) ClearNodeError(num models.NodeNum) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if node, ok := db.nodes[num]; ok {
		node.Error = nil
	}
}

// Node returns a copy of the record for num.
func (db *NodeDB) Node(num models.NodeNum) (models.Node, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	node, ok := db.nodes[num]
	if !ok {
		return models.Node{}, false
	}
	return cloneNode(node), true
}

// Nodes returns copies of all known nodes ordered by node number.
func (db *NodeDB) Nodes() []models.Node {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.Node, 0, len(db.nodes))
	for _, node := range db.nodes {
		out = append(out, cloneNode(node))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// Len returns the number of known nodes.
func (db *NodeDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.nodes)
}

// mergeMetrics overwrites only the metric fields present in the update.
func mergeMetrics(node *models.Node, in *models.DeviceMetrics) {
	if node.Metrics == nil {
		node.Metrics = &models.DeviceMetrics{}
	}
	if in.BatteryLevel != nil {
		v := *in.BatteryLevel
		node.Metrics.BatteryLevel = &v
	}
	if in.Voltage != nil {
		v := *in.Voltage
		node.Metrics.Voltage = &v
	}
	if in.ChannelUtilization != nil {
		v := *in.ChannelUtilization
		node.Metrics.ChannelUtilization = &v
	}
	if in.AirUtilTx != nil {
		v := *in.AirUtilTx
		node.Metrics.AirUtilTx = &v
	}
	if in.UptimeSeconds != nil {
		v := *in.UptimeSeconds
		node.Metrics.UptimeSeconds = &v
	}
}

// cloneNode deep-copies a node so readers never alias store memory.
func cloneNode(node *models.Node) models.Node {
	out := *node
	if node.User != nil {
		u := *node.User
		out.User = &u
	}
	if node.Position != nil {
		p := *node.Position
		out.Position = &p
	}
	if node.Metrics != nil {
		m := *node.Metrics
		out.Metrics = &m
	}
	if node.Error != nil {
		e := *node.Error
		out.Error = &e
	}
	return out
}
