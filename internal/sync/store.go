// Package sync mirrors a narrow projection of local state to an external
// persistence backend. Every operation is best effort: failures are logged
// and discarded, and nothing here can slow down event processing.
package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NodeRecord is the projection of a node upserted to the backend. Optional
// fields are pointers so absent values stay absent instead of defaulting to
// zero.
type NodeRecord struct {
	Num                uint32
	LongName           *string
	ShortName          *string
	HWModel            *int32
	Lat                *float64
	Lng                *float64
	Altitude           *int32
	BatteryLevel       *uint32
	Voltage            *float32
	ChannelUtilization *float32
	AirUtilTx          *float32
	UptimeSeconds      *uint32
	LastHeard          time.Time
}

// PacketRecord is the metadata of one mesh packet logged to the backend.
type PacketRecord struct {
	ID       uuid.UUID
	FromNode uint32
	ToNode   uint32
	RxSNR    float32
	RxRSSI   int32
	HopLimit uint32
	RxTime   time.Time
}

// Store is the outbound persistence interface of the sync adapter.
type Store interface {
	UpsertNode(ctx context.Context, rec *NodeRecord) error
	InsertPacket(ctx context.Context, rec *PacketRecord) error
	Close() error
}
