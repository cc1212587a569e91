package lra

// Host is a node the Helper can install a routing protocol on.
type Host interface {
	// L3 is the host network layer handed to the protocol.
	L3() L3

	// Scheduler is the host's event scheduler.
	Scheduler() Scheduler

	// SetRouting aggregates a routing protocol onto the node.
	SetRouting(Router)

	// Routing returns the aggregated protocol, if any.
	Routing() Router
}

// Helper constructs one RoutingProtocol per host node and wires it in.
type Helper struct{}

// Create builds a protocol for h, hands it the host L3 and aggregates it
// onto the node.
func (Helper) Create(h Host) *RoutingProtocol {
	p := New(h.Scheduler())
	p.SetIpv4(h.L3())
	h.SetRouting(p)
	return p
}

// AssignStreams gives every LRA instance found in hosts its own fixed RNG
// streams (two per instance) and returns the number of streams actually
// consumed.
func (Helper) AssignStreams(hosts []Host, stream int64) int64 {
	current := stream
	for _, h := range hosts {
		if proto, ok := Find(h.Routing()); ok {
			current += proto.AssignStreams(current)
		}
	}
	return current - stream
}

// Find locates an LRA instance behind r, looking through a list router
// when one is aggregated instead of the protocol itself.
func Find(r Router) (*RoutingProtocol, bool) {
	switch v := r.(type) {
	case *RoutingProtocol:
		return v, true
	case *ListRouting:
		for i := 0; i < v.NumProtocols(); i++ {
			proto, _ := v.Protocol(i)
			if lra, ok := proto.(*RoutingProtocol); ok {
				return lra, true
			}
		}
	}
	return nil, false
}

// ListRouting chains routing protocols by priority; the highest priority
// answering a query wins.
type ListRouting struct {
	entries []listEntry
}

type listEntry struct {
	router   Router
	priority int16
}

// Add inserts r keeping the list ordered by descending priority. Equal
// priorities keep insertion order.
func (l *ListRouting) Add(r Router, priority int16) {
	e := listEntry{router: r, priority: priority}
	at := len(l.entries)
	for i, cur := range l.entries {
		if cur.priority < priority {
			at = i
			break
		}
	}
	l.entries = append(l.entries, listEntry{})
	copy(l.entries[at+1:], l.entries[at:])
	l.entries[at] = e
}

// NumProtocols is the number of chained protocols.
func (l *ListRouting) NumProtocols() int {
	return len(l.entries)
}

// Protocol returns the i-th protocol and its priority.
func (l *ListRouting) Protocol(i int) (Router, int16) {
	return l.entries[i].router, l.entries[i].priority
}

// RouteOutput asks each protocol in priority order until one produces a
// route.
func (l *ListRouting) RouteOutput(pkt *Packet, hdr Header) (*Route, error) {
	for _, e := range l.entries {
		if route, err := e.router.RouteOutput(pkt, hdr); err == nil {
			return route, nil
		}
	}
	return nil, ErrNoRouteToHost
}

// RouteInput offers the packet to each protocol in priority order until
// one accepts it.
func (l *ListRouting) RouteInput(pkt *Packet, hdr Header, dev NetDevice,
	ucb UnicastForwardCallback, mcb MulticastForwardCallback,
	lcb LocalDeliverCallback, ecb ErrorCallback) bool {

	for _, e := range l.entries {
		if e.router.RouteInput(pkt, hdr, dev, ucb, mcb, lcb, ecb) {
			return true
		}
	}
	return false
}
