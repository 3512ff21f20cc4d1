package dist

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/frostml/frost/srcs/go/frost/env"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/pkg/errors"
)

type DeviceKind string

const (
	CPU  DeviceKind = "cpu"
	CUDA DeviceKind = "cuda"
)

// Device is a compute device, Index is only meaningful for CUDA.
type Device struct {
	Kind  DeviceKind
	Index int
}

func (d Device) String() string {
	if d.Kind == CUDA {
		return fmt.Sprintf("cuda:%d", d.Index)
	}
	return string(d.Kind)
}

// ParseDevice accepts cpu, cuda and cuda:N.
func ParseDevice(s string) (Device, error) {
	kind, idx, hasIdx := strings.Cut(strings.TrimSpace(s), ":")
	switch DeviceKind(kind) {
	case CPU:
		if hasIdx {
			return Device{}, errors.Errorf("invalid device %q", s)
		}
		return Device{Kind: CPU}, nil
	case CUDA:
		d := Device{Kind: CUDA}
		if hasIdx {
			n, err := strconv.Atoi(idx)
			if err != nil || n < 0 {
				return Device{}, errors.Errorf("invalid device index in %q", s)
			}
			d.Index = n
		}
		return d, nil
	}
	return Device{}, errors.Errorf("unknown device %q", s)
}

// Bind returns the device this process should use: in distributed mode a
// CUDA device is replaced by the local device ordinal.
func (c *Context) Bind(d Device) Device {
	if d.Kind != CUDA || !c.IsDistributed {
		return d
	}
	d.Index = c.LocalDevice
	if phy := env.CudaIndex(os.LookupEnv, c.LocalDevice); phy >= 0 {
		log.Debugf("rank %d uses %s (physical GPU %d)", c.Rank, d, phy)
	} else {
		log.Warnf("local device %d of rank %d is not visible under %s", c.LocalDevice, c.Rank, env.CudaVisibleDevicesKey)
	}
	return d
}
