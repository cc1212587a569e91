package lra

import (
	"net/netip"
	"testing"
)

func TestNextHopPrefersHighestAddress(t *testing.T) {
	p, _, _ := newTestProtocol(t, "10.0.0.1", "10.0.0.9")
	p.enableLinkTo(addr("10.0.0.2"))
	p.enableLinkTo(addr("10.0.0.4"))
	p.enableLinkTo(addr("10.0.0.3"))

	got, ok := p.nextHop()
	if !ok {
		t.Fatal("nextHop() = none, want a hop")
	}
	if got != addr("10.0.0.4") {
		t.Errorf("nextHop() = %v, want 10.0.0.4", got)
	}
}

func TestNextHopSkipsInboundLinks(t *testing.T) {
	p, _, _ := newTestProtocol(t, "10.0.0.1", "10.0.0.9")
	p.enableLinkTo(addr("10.0.0.2"))
	p.disableLinkTo(addr("10.0.0.4"), true)

	got, ok := p.internalNextHop()
	if !ok || got != addr("10.0.0.2") {
		t.Errorf("internalNextHop() = %v, %v; want 10.0.0.2, true", got, ok)
	}
}

func TestNextHopOrientsUnknownLinks(t *testing.T) {
	p, _, _ := newTestProtocol(t, "10.0.0.1", "10.0.0.9")
	p.initLinkTo(addr("10.0.0.2"))

	got, ok := p.internalNextHop()
	if !ok || got != addr("10.0.0.2") {
		t.Fatalf("internalNextHop() = %v, %v; want 10.0.0.2, true", got, ok)
	}
	if p.linkStatus[addr("10.0.0.2")] != LinkOutbound {
		t.Error("selecting an unknown link did not orient it outbound")
	}
}

func TestNextHopAtSink(t *testing.T) {
	p, _, _ := newTestProtocol(t, "10.0.0.9", "10.0.0.9")
	p.enableLinkTo(addr("10.0.0.2"))

	if _, ok := p.nextHop(); ok {
		t.Error("sink elected a next hop")
	}
}

func TestNextHopReactiveReversal(t *testing.T) {
	p, l3, _ := newTestProtocol(t, "10.0.0.1", "10.0.0.9")
	p.disableLinkTo(addr("10.0.0.2"), true)
	p.disableLinkTo(addr("10.0.0.3"), true)

	got, ok := p.nextHop()
	if !ok {
		t.Fatal("nextHop() = none, want a hop after reactive reversal")
	}
	if got != addr("10.0.0.3") {
		t.Errorf("nextHop() = %v, want 10.0.0.3", got)
	}
	for _, n := range []netip.Addr{addr("10.0.0.2"), addr("10.0.0.3")} {
		if p.linkStatus[n] != LinkOutbound {
			t.Errorf("link %v = %v after reversal, want %v", n, p.linkStatus[n], LinkOutbound)
		}
	}
	if got := l3.sentTo(broadcastAddr, ReversalSend); got != 1 {
		t.Errorf("reversal broadcasts = %d, want 1", got)
	}
}

func TestCycleSuppression(t *testing.T) {
	p, _, _ := newTestProtocol(t, "10.0.0.1", "10.0.0.9")
	b := addr("10.0.0.2")
	p.enableLinkTo(b)

	// Three ACK requests arriving while the link to the prober is
	// outbound: each disable bounces back through a local reversal,
	// which is the bilateral-outbound observation.
	for i := 1; i <= 3; i++ {
		ok, rec := deliverService(p, AckSend, b)
		if ok {
			t.Fatalf("RouteInput() = true on cycle observation %d, want false", i)
		}
		if rec.delivered != 0 {
			t.Fatalf("cycle observation %d reached local delivery", i)
		}
		if got := p.cycleCount[b]; got != uint(i) {
			t.Fatalf("cycleCount after observation %d = %d", i, got)
		}
	}

	// Saturated: the neighbor is permanently excluded.
	if _, ok := p.internalNextHop(); ok {
		t.Error("internalNextHop() still returns the saturated neighbor")
	}
	if _, ok := p.nextHop(); ok {
		t.Error("nextHop() still returns the saturated neighbor after reversal")
	}
}

func TestSaturatedNodeDeclaresItselfDisconnected(t *testing.T) {
	p, _, _ := newTestProtocol(t, "10.0.0.1", "10.0.0.9")
	b := addr("10.0.0.2")
	p.enableLinkTo(b)
	for i := 0; i < 3; i++ {
		deliverService(p, AckSend, b)
	}

	// The next disable finds no usable hop even after reversing.
	p.disableLinkTo(b, false)
	if p.initialized {
		t.Fatal("node still initialized with every neighbor suppressed")
	}

	// Declared disconnected: every packet is dropped.
	ok, rec := deliver(p, dataPacket("x"), Header{Source: b, Destination: p.self, TTL: 1})
	if ok || rec.delivered != 0 {
		t.Error("disconnected node still accepts traffic")
	}
	if _, err := p.RouteOutput(dataPacket("x"), Header{Source: p.self, Destination: p.sink}); err != ErrNoRouteToHost {
		t.Errorf("RouteOutput() error = %v, want ErrNoRouteToHost", err)
	}
}
