package lra

import (
	"testing"
)

func TestLinkStatus_String(t *testing.T) {
	tests := []struct {
		name   string
		status LinkStatus
		want   string
	}{
		{
			name:   "unknown",
			status: LinkUnknown,
			want:   "UNKNOWN",
		},
		{
			name:   "inbound",
			status: LinkInbound,
			want:   "INBOUND",
		},
		{
			name:   "outbound",
			status: LinkOutbound,
			want:   "OUTBOUND",
		},
		{
			name:   "out of range",
			status: LinkStatus(7),
			want:   "INVALID",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLinkReversalFlipsEveryNeighbor(t *testing.T) {
	p, _, _ := newTestProtocol(t, "10.0.0.1", "10.0.0.9")
	p.enableLinkTo(addr("10.0.0.2"))
	p.disableLinkTo(addr("10.0.0.3"), true)
	p.initLinkTo(addr("10.0.0.4"))

	p.linkReversal()

	for n := range p.neighbors {
		if got := p.linkStatus[n]; got != LinkOutbound {
			t.Errorf("link %v = %v after reversal, want %v", n, got, LinkOutbound)
		}
	}
}

func TestLinkReversalNoopAtSink(t *testing.T) {
	p, _, _ := newTestProtocol(t, "10.0.0.9", "10.0.0.9")
	p.disableLinkTo(addr("10.0.0.2"), true)

	p.linkReversal()

	if got := p.linkStatus[addr("10.0.0.2")]; got != LinkInbound {
		t.Errorf("sink link = %v after reversal, want %v", got, LinkInbound)
	}
}

func TestDisableLinkCascadeFromReversalMessage(t *testing.T) {
	// A neighbor's reversal turns our edge toward it inbound and may
	// trigger our own reversal in turn.
	p, l3, _ := newTestProtocol(t, "10.0.0.2", "10.0.0.9")
	b := addr("10.0.0.3")
	c := addr("10.0.0.1")
	p.enableLinkTo(b)
	p.disableLinkTo(c, true)

	ok, _ := deliverService(p, ReversalSend, b)
	if !ok {
		t.Fatal("RouteInput() = false, want true")
	}
	// Only outbound link lost: local reversal flips everything back.
	if got := p.linkStatus[b]; got != LinkOutbound {
		t.Errorf("link to reversed neighbor = %v, want %v", got, LinkOutbound)
	}
	if got := p.linkStatus[c]; got != LinkOutbound {
		t.Errorf("link to other neighbor = %v, want %v", got, LinkOutbound)
	}
	if got := l3.sentTo(broadcastAddr, ReversalSend); got != 1 {
		t.Errorf("reversal broadcasts = %d, want 1", got)
	}
}

func TestDisableLinkWithAlternativeDoesNotReverse(t *testing.T) {
	p, l3, _ := newTestProtocol(t, "10.0.0.1", "10.0.0.9")
	b := addr("10.0.0.2")
	c := addr("10.0.0.3")
	p.enableLinkTo(b)
	p.enableLinkTo(c)

	ok, _ := deliverService(p, ReversalSend, c)
	if !ok {
		t.Fatal("RouteInput() = false, want true")
	}
	if got := p.linkStatus[c]; got != LinkInbound {
		t.Errorf("link to reversed neighbor = %v, want %v", got, LinkInbound)
	}
	if got := p.linkStatus[b]; got != LinkOutbound {
		t.Errorf("untouched link = %v, want %v", got, LinkOutbound)
	}
	if got := l3.sentTo(broadcastAddr, ReversalSend); got != 0 {
		t.Errorf("reversal broadcasts = %d, want 0", got)
	}
}

func TestSinkNeverReverses(t *testing.T) {
	p, l3, _ := newTestProtocol(t, "10.0.0.9", "10.0.0.9")
	b := addr("10.0.0.2")

	ok, _ := deliverService(p, ReversalSend, b)
	if !ok {
		t.Fatal("RouteInput() = false, want true")
	}
	if got := p.linkStatus[b]; got != LinkInbound {
		t.Errorf("sink link = %v, want %v", got, LinkInbound)
	}
	if got := l3.sentTo(broadcastAddr, ReversalSend); got != 0 {
		t.Errorf("sink broadcast a reversal: %d", got)
	}
	if !p.initialized {
		t.Error("sink declared itself disconnected")
	}
}
