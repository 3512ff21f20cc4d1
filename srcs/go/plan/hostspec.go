package plan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errInvalidHostSpec = errors.New("invalid HostSpec")

// HostSpec is one -H entry: <internal IP>[:<nslots>[:<public addr>]]
type HostSpec struct {
	IPv4       uint32
	Slots      int
	PublicAddr string
}

var DefaultHostSpec = HostSpec{
	IPv4:       MustParseIPv4(`127.0.0.1`),
	Slots:      1,
	PublicAddr: `127.0.0.1`,
}

func (h HostSpec) String() string {
	return fmt.Sprintf("%s:%d:%s", FormatIPv4(h.IPv4), h.Slots, h.PublicAddr)
}

func parseHostSpec(spec string) (*HostSpec, error) {
	parts := strings.Split(spec, ":")
	ipv4, err := ParseIPv4(parts[0])
	if err != nil {
		return nil, err
	}
	h := &HostSpec{IPv4: ipv4, Slots: 1, PublicAddr: parts[0]}
	switch len(parts) {
	case 1:
		return h, nil
	case 2, 3:
		slots, err := strconv.Atoi(parts[1])
		if err != nil || slots < 0 {
			return nil, errInvalidHostSpec
		}
		h.Slots = slots
		if len(parts) == 3 {
			h.PublicAddr = parts[2]
		}
		return h, nil
	}
	return nil, errInvalidHostSpec
}

type HostList []HostSpec

func (hl HostList) String() string {
	var ss []string
	for _, h := range hl {
		ss = append(ss, h.String())
	}
	return strings.Join(ss, ",")
}

func ParseHostList(hostlist string) (HostList, error) {
	var hostSpecs HostList
	for _, h := range strings.Split(hostlist, ",") {
		spec, err := parseHostSpec(h)
		if err != nil {
			return nil, err
		}
		hostSpecs = append(hostSpecs, *spec)
	}
	return hostSpecs, nil
}

func (hl HostList) Cap() int {
	var cap int
	for _, h := range hl {
		cap += h.Slots
	}
	return cap
}

func (hl HostList) Lookup(ipv4 uint32) (HostSpec, bool) {
	for _, h := range hl {
		if h.IPv4 == ipv4 {
			return h, true
		}
	}
	return HostSpec{}, false
}

// Slot is the placement of one worker process.
type Slot struct {
	Host      HostSpec
	Rank      int
	LocalRank int
}

var errNoEnoughCapacity = errors.New("no enough capacity")

// GenSlots fills hosts in order: the first host gets ranks 0..slots-1.
func (hl HostList) GenSlots(np int) ([]Slot, error) {
	if cap := hl.Cap(); cap < np {
		return nil, fmt.Errorf("%v: %d slots for %d workers", errNoEnoughCapacity, cap, np)
	}
	var slots []Slot
	for _, h := range hl {
		for j := 0; j < h.Slots && len(slots) < np; j++ {
			slots = append(slots, Slot{Host: h, Rank: len(slots), LocalRank: j})
		}
	}
	return slots, nil
}
