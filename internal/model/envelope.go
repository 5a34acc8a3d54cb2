package model

import "meshtastic-exporter/internal/meshproto"

// QueueSize is the default capacity of each IPC direction.
const QueueSize = 128

type IPCKind string

const (
	IPCFromRadio IPCKind = "from_radio"
	IPCToRadio   IPCKind = "to_radio"
)

// IPCMessage is the tagged message exchanged between the connection worker
// and the supervisor. Exactly one of FromRadio and ToRadio is set, matching
// Kind.
type IPCMessage struct {
	Kind      IPCKind
	FromRadio *meshproto.FromRadio
	ToRadio   *meshproto.ToRadio
}

func FromRadio(m *meshproto.FromRadio) IPCMessage {
	return IPCMessage{Kind: IPCFromRadio, FromRadio: m}
}

func ToRadio(m *meshproto.ToRadio) IPCMessage {
	return IPCMessage{Kind: IPCToRadio, ToRadio: m}
}

// Queues holds both directions of the IPC channel. Each direction has a
// single producer and a single consumer.
type Queues struct {
	Inbound  chan IPCMessage // worker -> supervisor
	Outbound chan IPCMessage // supervisor -> worker
}

func NewQueues(size int) Queues {
	if size <= 0 {
		size = QueueSize
	}
	return Queues{
		Inbound:  make(chan IPCMessage, size),
		Outbound: make(chan IPCMessage, size),
	}
}
