package sim

import (
	"bufio"
	"errors"
	"io"
	"net/netip"
	"time"
)

// Topology represents the ad-hoc network topology as directed links with
// time-varying availability.
type Topology struct {
	links map[netip.Addr]map[netip.Addr]Link
}

func NewTopology() *Topology {
	return &Topology{links: make(map[netip.Addr]map[netip.Addr]Link)}
}

// NewTopologyFromScript builds a topology from a link-state script, one
// transition per line, sorted by non-decreasing time.
func NewTopologyFromScript(in io.Reader) (*Topology, error) {
	t := NewTopology()

	scanner := bufio.NewScanner(in)
	currTime := time.Duration(0)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		ls, err := parseLinkState(line)
		if err != nil {
			return nil, err
		}

		if ls.at < currTime {
			return nil, errors.New("entries in input must be sorted by increasing time")
		}
		currTime = ls.at

		t.addState(*ls)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return t, nil
}

// SetLink appends a state transition to the directed link from → to,
// creating the link if needed.
func (t *Topology) SetLink(from, to netip.Addr, at time.Duration, status LinkStatus) {
	t.addState(LinkState{at: at, status: status, from: from, to: to})
}

// SetDuplexLink appends the same transition to both directions at once.
func (t *Topology) SetDuplexLink(a, b netip.Addr, at time.Duration, status LinkStatus) {
	t.SetLink(a, b, at, status)
	t.SetLink(b, a, at, status)
}

func (t *Topology) addState(ls LinkState) {
	dsts, ok := t.links[ls.from]
	if !ok {
		dsts = make(map[netip.Addr]Link)
		t.links[ls.from] = dsts
	}

	link, ok := dsts[ls.to]
	if !ok {
		link = Link{from: ls.from, to: ls.to}
	}
	link.states = append(link.states, ls)
	dsts[ls.to] = link
}

// Query determines whether the directed link from → to is up at the
// given moment. Links never declared are down.
func (t *Topology) Query(from, to netip.Addr, at time.Duration) bool {
	links, ok := t.links[from]
	if !ok {
		return false
	}

	link, ok := links[to]
	if !ok {
		return false
	}

	return link.isUp(at)
}
