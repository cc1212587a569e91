package lra

// Telemetry accumulates data-plane delivery statistics for one node.
type Telemetry struct {
	// hopSum totals the hop metric over every delivered data packet.
	hopSum float64

	// packetsReceived counts delivered data packets.
	packetsReceived int
}

// Observe records the hop metric of one delivered data packet.
func (t *Telemetry) Observe(hops int) {
	t.hopSum += float64(hops)
	t.packetsReceived++
}

// PacketsReceived is the number of data packets delivered so far.
func (t *Telemetry) PacketsReceived() int {
	return t.packetsReceived
}

// HopSum is the accumulated hop metric.
func (t *Telemetry) HopSum() float64 {
	return t.hopSum
}

// AverageHopCount is hopSum over packetsReceived, zero before the first
// delivery.
func (t *Telemetry) AverageHopCount() float64 {
	if t.packetsReceived == 0 {
		return 0
	}
	return t.hopSum / float64(t.packetsReceived)
}
