// Package collector defines the contract between monitor families and the
// snapshot scheduler. Each family package (process, network, ebpf, ...)
// exposes a Collector whose Kinds method lists the snapshot kinds it
// produces; the scheduler invokes each kind once per tick.
package collector

import (
	"context"

	"github.com/clueless-admin/cladm/pkg/response"
)

// SnapshotFunc reads one kernel-exposed interface and returns the result as
// an envelope. Implementations never return nil and never let an error
// escape: failures are reported inside the envelope.
type SnapshotFunc func(ctx context.Context) *response.Envelope

// Kind is one named snapshot within a monitor family. Name becomes the file
// name prefix of each persisted iteration.
type Kind struct {
	Name string
	Func SnapshotFunc
}

// Collector is implemented by every monitor family.
type Collector interface {
	Kinds() []Kind
}
