package models

import (
	"time"
)

// NodeNum is the numeric identity of a peer radio on the mesh.
type NodeNum uint32

// BroadcastNum is the all-nodes destination address.
const BroadcastNum NodeNum = 0xFFFFFFFF

// RoutingError classifies a protocol-level delivery failure.
type RoutingError int32

// Routing error reasons carried by routing packets.
const (
	RoutingErrorNone             RoutingError = 0
	RoutingErrorNoRoute          RoutingError = 1
	RoutingErrorTimeout          RoutingError = 3
	RoutingErrorMaxRetransmit    RoutingError = 5
	RoutingErrorNoChannel        RoutingError = 6
	RoutingErrorPKIFailed        RoutingError = 34
	RoutingErrorPKIUnknownPubkey RoutingError = 35
)

// String returns a readable name for the error reason.
func (e RoutingError) String() string {
	switch e {
	case RoutingErrorNone:
		return "NONE"
	case RoutingErrorNoRoute:
		return "NO_ROUTE"
	case RoutingErrorTimeout:
		return "TIMEOUT"
	case RoutingErrorMaxRetransmit:
		return "MAX_RETRANSMIT"
	case RoutingErrorNoChannel:
		return "NO_CHANNEL"
	case RoutingErrorPKIFailed:
		return "PKI_FAILED"
	case RoutingErrorPKIUnknownPubkey:
		return "PKI_UNKNOWN_PUBKEY"
	default:
		return "UNKNOWN"
	}
}

// User holds the identity fields of a node.
type User struct {
	ID        string `json:"id"`
	LongName  string `json:"longName"`
	ShortName string `json:"shortName"`
	HWModel   int32  `json:"hwModel"`
}

// Position is a node position in integer fixed-point degrees (x1e7).
type Position struct {
	LatitudeI  int32  `json:"latitudeI"`
	LongitudeI int32  `json:"longitudeI"`
	Altitude   int32  `json:"altitude"`
	Time       uint32 `json:"time"`
}

// DeviceMetrics carries periodic device health readings. All fields are
// optional; absent fields must not overwrite previously known values.
type DeviceMetrics struct {
	BatteryLevel       *uint32  `json:"batteryLevel,omitempty"`
	Voltage            *float32 `json:"voltage,omitempty"`
	ChannelUtilization *float32 `json:"channelUtilization,omitempty"`
	AirUtilTx          *float32 `json:"airUtilTx,omitempty"`
	UptimeSeconds      *uint32  `json:"uptimeSeconds,omitempty"`
}

// Node aggregates everything known about a peer node. Sub-records are
// pointers so that a partial update can leave the rest untouched.
type Node struct {
	Num       NodeNum        `json:"num"`
	User      *User          `json:"user,omitempty"`
	Position  *Position      `json:"position,omitempty"`
	SNR       float32        `json:"snr"`
	LastHeard time.Time      `json:"lastHeard"`
	Metrics   *DeviceMetrics `json:"deviceMetrics,omitempty"`
	Error     *RoutingError  `json:"error,omitempty"`
}

// Neighbor is one entry of a neighbor-info report.
type Neighbor struct {
	NodeID NodeNum `json:"nodeId"`
	SNR    float32 `json:"snr"`
}
