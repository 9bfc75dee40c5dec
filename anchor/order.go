package anchor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bitfsorg/anchorgate-go/storage"
)

// Status is the lifecycle state of a storage order.
//
//	[none] --PlaceOrder--> Pending
//	Pending --included, replicated--> Success
//	Pending --rejected/invalid/dropped--> Failed
//	Pending|Success --past expiry--> Expired
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailed
	StatusExpired
)

var statusNames = [...]string{"Pending", "Success", "Failed", "Expired"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusExpired
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the status name in any case.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("anchor: status: %w", err)
	}
	for i, n := range statusNames {
		if strings.EqualFold(n, name) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("anchor: unknown status %q", name)
}

// StorageOrder is one revision of the order recorded for a content id.
type StorageOrder struct {
	ContentID    storage.ContentID `json:"contentId"`
	FileSize     int64             `json:"fileSize"`
	Status       Status            `json:"status"`
	ReplicaCount int               `json:"replicaCount"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	Amount       string            `json:"amount"`
	// Placeholder marks an order recorded without a transaction because the
	// anchoring account had no balance.
	Placeholder bool      `json:"placeholder"`
	TxID        string    `json:"txId,omitempty"`
	BlockHash   string    `json:"blockHash,omitempty"`
	BlockHeight uint64    `json:"blockHeight,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Expired reports whether the order has outlived its term at now.
func (o StorageOrder) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// Included reports whether the order transaction is in a block.
func (o StorageOrder) Included() bool {
	return o.BlockHash != ""
}

// revise returns a copy of o moved to status at now.
func (o StorageOrder) revise(status Status, now time.Time) StorageOrder {
	o.Status = status
	o.UpdatedAt = now
	return o
}

// FormatAmount renders an order price in the storage token unit.
func FormatAmount(price uint64, unit string) string {
	return fmt.Sprintf("%d %s", price, unit)
}

// mib is the pricing granularity.
const mib = 1 << 20

// Price returns the order price for size bytes: pricePerMiB for every
// started MiB, with a one MiB minimum.
func Price(size int64, pricePerMiB uint64) uint64 {
	units := uint64(1)
	if size > mib {
		units = (uint64(size) + mib - 1) / mib
	}
	return units * pricePerMiB
}
