// Package types defines the persisted resource kinds of the storage fabric:
// nodes, pools, replicas, nexuses and volumes, plus the shared spec envelope
// (lifecycle state, pending operation, dirty flag) every one of them carries.
package types

import "github.com/google/uuid"

// NodeID, PoolID, ReplicaID, NexusID and VolumeID are opaque identifiers,
// either a caller-supplied name or a UUID. Uniqueness is global within kind.
type (
	NodeID    string
	PoolID    string
	ReplicaID string
	NexusID   string
	VolumeID  string
)

// NewReplicaID generates a random replica identifier.
func NewReplicaID() ReplicaID { return ReplicaID(uuid.NewString()) }

// NewNexusID generates a random nexus identifier.
func NewNexusID() NexusID { return NexusID(uuid.NewString()) }

// NewVolumeID generates a random volume identifier.
func NewVolumeID() VolumeID { return VolumeID(uuid.NewString()) }

// NewWatchID generates a random watch subscription identifier.
func NewWatchID() WatchID { return WatchID(uuid.NewString()) }

// Protocol is the wire protocol a replica or nexus is shared over.
type Protocol string

const (
	ProtocolOff  Protocol = "Off"
	ProtocolNvmf Protocol = "Nvmf"
	ProtocolIscsi Protocol = "Iscsi"
)

// ReplicaShareProtocol is the narrower set of protocols a replica (as
// opposed to a nexus) may be shared over.
type ReplicaShareProtocol string

const ReplicaShareProtocolNvmf ReplicaShareProtocol = "Nvmf"

// AsProtocol widens a ReplicaShareProtocol into the general Protocol enum.
func (p ReplicaShareProtocol) AsProtocol() Protocol {
	return Protocol(p)
}
