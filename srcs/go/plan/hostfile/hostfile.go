package hostfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/frostml/frost/srcs/go/plan"
)

// ParseFile parses an mpirun style hostfile: one `<ip> [slots=N] [public_addr=A]` per line.
func ParseFile(filename string) (plan.HostList, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(string(bs))
}

func Parse(text string) (plan.HostList, error) {
	var hl plan.HostList
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(trimComment(line))
		if len(line) == 0 {
			continue
		}
		h, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		hl = append(hl, *h)
	}
	return hl, nil
}

var errInvalidHostfile = errors.New("invalid hostfile")

func parseLine(line string) (*plan.HostSpec, error) {
	parts := strings.Fields(line)
	ipv4, err := plan.ParseIPv4(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%v: %q", err, parts[0])
	}
	h := &plan.HostSpec{
		IPv4:       ipv4,
		Slots:      1,
		PublicAddr: plan.FormatIPv4(ipv4),
	}
	for _, kv := range parts[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errInvalidHostfile
		}
		switch k {
		case `slots`:
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, errInvalidHostfile
			}
			h.Slots = n
		case `public_addr`:
			h.PublicAddr = v
		default:
			return nil, errInvalidHostfile
		}
	}
	return h, nil
}

func trimComment(line string) string {
	parts := strings.SplitN(line, "#", 2)
	return parts[0]
}
