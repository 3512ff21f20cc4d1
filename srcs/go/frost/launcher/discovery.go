package launcher

import (
	"errors"
	"net"

	"github.com/frostml/frost/srcs/go/plan"
)

// InferSelfIPv4 returns the internal IPv4 of this host: hostname if given,
// else the first IPv4 of nic, else the loopback address.
func InferSelfIPv4(hostname string, nic string) (uint32, error) {
	if len(hostname) > 0 {
		return plan.ParseIPv4(hostname)
	}
	if len(nic) > 0 {
		return inferIPv4(nic)
	}
	return plan.MustParseIPv4(`127.0.0.1`), nil
}

var errNoIPv4Found = errors.New("no ipv4 found")

func inferIPv4(nic string) (uint32, error) {
	i, err := net.InterfaceByName(nic)
	if err != nil {
		return 0, err
	}
	addrs, err := i.Addrs()
	if err != nil {
		return 0, err
	}
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip = ip.To4(); ip != nil {
			return plan.PackIPv4(ip), nil
		}
	}
	return 0, errNoIPv4Found
}
