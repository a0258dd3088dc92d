// Package noc provides the network-on-chip that carries messages between the
// devices of the system.
package noc

// NodeID identifies a node attached to the network.
type NodeID uint32

// A Msg is a piece of information that is transferred between nodes.
type Msg interface {
	Meta() *MsgMeta
}

// MsgMeta contains the meta data that is attached to every message.
type MsgMeta struct {
	ID           string
	Src, Dst     NodeID
	TrafficBytes int
}

// An Endpoint receives the messages delivered to its node.
type Endpoint interface {
	RecvMsg(msg Msg)
}
