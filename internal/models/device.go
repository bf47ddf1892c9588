package models

import (
	"encoding/json"
	"time"
)

// DeviceID is the stable key distinguishing one connected radio from another.
type DeviceID int64

// DeviceStatus represents the connection lifecycle of a device.
type DeviceStatus string

const (
	DeviceStatusDisconnected DeviceStatus = "disconnected"
	DeviceStatusConnecting   DeviceStatus = "connecting"
	DeviceStatusConnected    DeviceStatus = "connected"
	DeviceStatusReconnecting DeviceStatus = "reconnecting"
	DeviceStatusDisabled     DeviceStatus = "disabled"
)

// ChannelRole describes how a channel slot is used.
type ChannelRole string

const (
	ChannelRoleDisabled  ChannelRole = "disabled"
	ChannelRolePrimary   ChannelRole = "primary"
	ChannelRoleSecondary ChannelRole = "secondary"
)

// Channel is one channel slot of the device configuration.
type Channel struct {
	Index uint32      `json:"index"`
	Role  ChannelRole `json:"role"`
	Name  string      `json:"name"`
}

// DeviceMetadata is the capability blob a node reports about itself.
type DeviceMetadata struct {
	FirmwareVersion    string `json:"firmwareVersion"`
	DeviceStateVersion uint32 `json:"deviceStateVersion"`
	CanShutdown        bool   `json:"canShutdown"`
	HasWifi            bool   `json:"hasWifi"`
	HasBluetooth       bool   `json:"hasBluetooth"`
	HasEthernet        bool   `json:"hasEthernet"`
	Role               int32  `json:"role"`
	HWModel            int32  `json:"hwModel"`
}

// ConfigSections maps a config section name to its latest raw value.
// Sections arrive independently and are merged, never wholesale-replaced.
type ConfigSections map[string]json.RawMessage

// WaypointKey identifies a waypoint within a device: waypoint ids are only
// unique per channel.
type WaypointKey struct {
	Channel uint32 `json:"channel"`
	ID      uint32 `json:"id"`
}

// Waypoint is a shared map marker.
type Waypoint struct {
	ID          uint32 `json:"id"`
	LatitudeI   int32  `json:"latitudeI"`
	LongitudeI  int32  `json:"longitudeI"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        uint32 `json:"icon"`
	Expire      uint32 `json:"expire"`
	LockedTo    uint32 `json:"lockedTo"`
}

// WaypointWithMetadata is a waypoint plus receipt bookkeeping. Receipt time
// decides last-write-wins on upsert.
type WaypointWithMetadata struct {
	Waypoint
	Channel uint32    `json:"channel"`
	From    NodeNum   `json:"from"`
	RxTime  time.Time `json:"rxTime"`
}

// TraceRoute is a completed traceroute exchange, stored verbatim.
type TraceRoute struct {
	From       NodeNum   `json:"from"`
	To         NodeNum   `json:"to"`
	Route      []NodeNum `json:"route"`
	RouteBack  []NodeNum `json:"routeBack"`
	SNRTowards []int32   `json:"snrTowards"`
	SNRBack    []int32   `json:"snrBack"`
	RxTime     time.Time `json:"rxTime"`
}

// ClientNotification is a firmware-originated notice for the user.
type ClientNotification struct {
	ReplyID uint32    `json:"replyId"`
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Dialog flag names set by the event dispatcher.
const (
	DialogRefreshKeys        = "refreshKeys"
	DialogClientNotification = "clientNotification"
)
