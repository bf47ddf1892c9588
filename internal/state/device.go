package state

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/mesh-state/mesh-state-server/internal/models"
)

// DeviceState holds everything known about one connected device that is not
// a peer node or a message: connection status, configuration, waypoints,
// traceroutes, notifications and dialog flags.
type DeviceState struct {
	mu sync.RWMutex

	id              models.DeviceID
	status          models.DeviceStatus
	myNodeNum       models.NodeNum
	config          models.ConfigSections
	moduleConfig    models.ConfigSections
	metadata        map[models.NodeNum]models.DeviceMetadata
	channels        map[uint32]models.Channel
	waypoints       map[models.WaypointKey]models.WaypointWithMetadata
	traceRoutes     []models.TraceRoute
	neighbors       map[models.NodeNum][]models.Neighbor
	notifications   []models.ClientNotification
	pendingSettings bool
	dialogs         map[string]bool
}

// NewDeviceState creates the state store for one device identifier.
func NewDeviceState(id models.DeviceID) *DeviceState {
	return &DeviceState{
		id:           id,
		status:       models.DeviceStatusDisconnected,
		config:       make(models.ConfigSections),
		moduleConfig: make(models.ConfigSections),
		metadata:     make(map[models.NodeNum]models.DeviceMetadata),
		channels:     make(map[uint32]models.Channel),
		waypoints:    make(map[models.WaypointKey]models.WaypointWithMetadata),
		neighbors:    make(map[models.NodeNum][]models.Neighbor),
		dialogs:      make(map[string]bool),
	}
}

// ID returns the device identifier this state belongs to.
func (d *DeviceState) ID() models.DeviceID {
	return d.id
}

// SetStatus sets the connection status.
func (d *DeviceState) SetStatus(status models.DeviceStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = status
}

// Status returns the connection status.
func (d *DeviceState) Status() models.DeviceStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// SetMyNodeNum records the device's own node number and reports whether the
// value changed. Replaying the same announcement is a no-op.
func (d *DeviceState) SetMyNodeNum(num models.NodeNum) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.myNodeNum == num {
		return false
	}
	d.myNodeNum = num
	return true
}

// MyNodeNum returns the device's own node number, zero until learned.
func (d *DeviceState) MyNodeNum() models.NodeNum {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.myNodeNum
}

// SetConfig merges one config section without disturbing others.
func (d *DeviceState) SetConfig(section string, payload json.RawMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config[section] = append(json.RawMessage(nil), payload...)
}

// SetModuleConfig merges one module-config section.
func (d *DeviceState) SetModuleConfig(section string, payload json.RawMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moduleConfig[section] = append(json.RawMessage(nil), payload...)
}

// AddMetadata merges the metadata blob for the reporting node.
func (d *DeviceState) AddMetadata(from models.NodeNum, md models.DeviceMetadata) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metadata[from] = md
}

// AddChannel upserts a channel slot by index.
func (d *DeviceState) AddChannel(ch models.Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[ch.Index] = ch
}

// AddWaypoint upserts a waypoint keyed by (channel, id). An older receipt
// never overwrites a newer one.
func (d *DeviceState) AddWaypoint(wp models.WaypointWithMetadata) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := models.WaypointKey{Channel: wp.Channel, ID: wp.ID}
	if existing, ok := d.waypoints[key]; ok && existing.RxTime.After(wp.RxTime) {
		return
	}
	d.waypoints[key] = wp
}

// AddTraceRoute appends a traceroute record verbatim.
func (d *DeviceState) AddTraceRoute(tr models.TraceRoute) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.traceRoutes = append(d.traceRoutes, tr)
}

// AddNeighborInfo merges the neighbor list keyed by the reporting node.
func (d *DeviceState) AddNeighborInfo(from models.NodeNum, neighbors []models.Neighbor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.neighbors[from] = append([]models.Neighbor(nil), neighbors...)
}

// AddClientNotification appends a firmware notification.
func (d *DeviceState) AddClientNotification(n models.ClientNotification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifications = append(d.notifications, n)
}

// SetPendingSettingsChanges sets the pending-changes flag.
func (d *DeviceState) SetPendingSettingsChanges(pending bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingSettings = pending
}

// PendingSettingsChanges reports whether settings changes await a commit.
func (d *DeviceState) PendingSettingsChanges() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pendingSettings
}

// SetDialogOpen flags a dialog open or closed.
func (d *DeviceState) SetDialogOpen(name string, open bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialogs[name] = open
}

// DialogOpen reports whether a dialog is flagged open.
func (d *DeviceState) DialogOpen(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dialogs[name]
}

// Snapshot is a point-in-time copy of the device state for readers.
type Snapshot struct {
	ID                     models.DeviceID                          `json:"id"`
	Status                 models.DeviceStatus                      `json:"status"`
	MyNodeNum              models.NodeNum                           `json:"myNodeNum"`
	Config                 models.ConfigSections                    `json:"config"`
	ModuleConfig           models.ConfigSections                    `json:"moduleConfig"`
	Metadata               map[models.NodeNum]models.DeviceMetadata `json:"metadata"`
	Channels               []models.Channel                         `json:"channels"`
	Waypoints              []models.WaypointWithMetadata            `json:"waypoints"`
	TraceRoutes            []models.TraceRoute                      `json:"traceRoutes"`
	Neighbors              map[models.NodeNum][]models.Neighbor     `json:"neighbors"`
	Notifications          []models.ClientNotification              `json:"notifications"`
	PendingSettingsChanges bool                                     `json:"pendingSettingsChanges"`
	Dialogs                map[string]bool                          `json:"dialogs"`
}

// Snapshot returns a consistent copy of the whole device state.
func (d *DeviceState) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := Snapshot{
		ID:                     d.id,
		Status:                 d.status,
		MyNodeNum:              d.myNodeNum,
		Config:                 make(models.ConfigSections, len(d.config)),
		ModuleConfig:           make(models.ConfigSections, len(d.moduleConfig)),
		Metadata:               make(map[models.NodeNum]models.DeviceMetadata, len(d.metadata)),
		Channels:               make([]models.Channel, 0, len(d.channels)),
		Waypoints:              make([]models.WaypointWithMetadata, 0, len(d.waypoints)),
		TraceRoutes:            append([]models.TraceRoute(nil), d.traceRoutes...),
		Neighbors:              make(map[models.NodeNum][]models.Neighbor, len(d.neighbors)),
		Notifications:          append([]models.ClientNotification(nil), d.notifications...),
		PendingSettingsChanges: d.pendingSettings,
		Dialogs:                make(map[string]bool, len(d.dialogs)),
	}

	for section, payload := range d.config {
		snap.Config[section] = append(json.RawMessage(nil), payload...)
	}
	for section, payload := range d.moduleConfig {
		snap.ModuleConfig[section] = append(json.RawMessage(nil), payload...)
	}
	for num, md := range d.metadata {
		snap.Metadata[num] = md
	}
	for _, ch := range d.channels {
		snap.Channels = append(snap.Channels, ch)
	}
	sort.Slice(snap.Channels, func(i, j int) bool { return snap.Channels[i].Index < snap.Channels[j].Index })
	for _, wp := range d.waypoints {
		snap.Waypoints = append(snap.Waypoints, wp)
	}
	sort.Slice(snap.Waypoints, func(i, j int) bool {
		if snap.Waypoints[i].Channel != snap.Waypoints[j].Channel {
			return snap.Waypoints[i].Channel < snap.Waypoints[j].Channel
		}
		return snap.Waypoints[i].ID < snap.Waypoints[j].ID
	})
	for num, list := range d.neighbors {
		snap.Neighbors[num] = append([]models.Neighbor(nil), list...)
	}
	for name, open := range d.dialogs {
		snap.Dialogs[name] = open
	}

	return snap
}
