package lra

import (
	"errors"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// ProtocolNumber is the host L3 protocol id service packets are sent with.
const ProtocolNumber uint16 = 0x0800

// TTLMax is the hop ceiling used for the hop-count metric.
const TTLMax = 64

// ErrNoRouteToHost is reported when next-hop selection and on-demand
// reversal are both exhausted. Never retried internally.
var ErrNoRouteToHost = errors.New("no route to host")

// Packet is an opaque body traveling through the host network.
type Packet struct {
	// UID identifies the packet across hops for tracing.
	UID uuid.UUID

	// Payload is the raw packet body.
	Payload []byte

	// TTLTag caps the number of transmissions the host allows for this
	// packet. Zero means the host default (TTLMax) applies. Service
	// packets carry 1 and are never relayed.
	TTLTag uint8
}

// Header carries the IPv4 header fields the protocol inspects.
type Header struct {
	// Source is the originating node address.
	Source netip.Addr

	// Destination is the final destination address.
	Destination netip.Addr

	// TTL counts the transmissions the packet has traveled: the host
	// stamps 1 on first delivery and increments per forward, so
	// TTLMax - TTL is the hop metric accumulated at the sink.
	TTL uint8
}

// Route tells the host where to send a packet next.
type Route struct {
	// Source is the address the packet claims to come from.
	Source netip.Addr

	// Destination is the final destination address.
	Destination netip.Addr

	// Gateway is the one-hop target. Equal to Destination for direct
	// sends and to the local address for local delivery.
	Gateway netip.Addr

	// OutputDevice is the device the host must emit on.
	OutputDevice NetDevice
}

// NetDevice is a host network device attached to an interface.
type NetDevice interface {
	// Index is the host interface index the device is attached to.
	Index() int
}

// InterfaceAddress is one address bound to a host interface.
type InterfaceAddress struct {
	// Local is the interface's own address.
	Local netip.Addr

	// Broadcast is the broadcast address of the local subnet.
	Broadcast netip.Addr
}

// L3 is the slice of the host network layer the protocol relies on. Send
// is treated as non-blocking; concurrent emissions from a handler are
// serialised by the host.
type L3 interface {
	// Address returns the addrIndex-th address of interface iface.
	Address(iface, addrIndex int) InterfaceAddress

	// NetDevice returns the device attached to interface i.
	NetDevice(i int) NetDevice

	// Send transmits pkt along route.
	Send(pkt *Packet, src, dst netip.Addr, protocol uint16, route *Route)
}

// Event is a handle to a scheduled callback. Dropping a handle does not
// cancel the event; cancellation is explicit.
type Event interface {
	// Cancel prevents the event from firing. Calling Cancel on an event
	// that already fired, or twice, is a no-op.
	Cancel()
}

// Scheduler is the host's discrete-event scheduler. Handlers never block;
// all deferred work is expressed by scheduling a fresh callback.
type Scheduler interface {
	// Schedule runs fn after delay of virtual time and returns a
	// cancellable handle. Events scheduled for the same time fire in
	// insertion order.
	Schedule(delay time.Duration, fn func()) Event
}

// UnicastForwardCallback hands a packet back to the host for forwarding.
type UnicastForwardCallback func(route *Route, pkt *Packet, hdr Header)

// MulticastForwardCallback is unused by this protocol but part of the
// host contract.
type MulticastForwardCallback func(route *Route, pkt *Packet, hdr Header)

// LocalDeliverCallback delivers a packet up the local stack.
type LocalDeliverCallback func(pkt *Packet, hdr Header, iface int)

// ErrorCallback reports a routing failure for an in-flight packet.
type ErrorCallback func(pkt *Packet, hdr Header, err error)

// Router is the host-facing surface of an IPv4 routing protocol.
type Router interface {
	RouteOutput(pkt *Packet, hdr Header) (*Route, error)
	RouteInput(pkt *Packet, hdr Header, dev NetDevice,
		ucb UnicastForwardCallback, mcb MulticastForwardCallback,
		lcb LocalDeliverCallback, ecb ErrorCallback) bool
}
