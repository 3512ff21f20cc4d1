package env

import (
	"errors"
	"strconv"
	"strings"
)

// https://devblogs.nvidia.com/cuda-pro-tip-control-gpu-visibility-cuda_visible_devices/
const CudaVisibleDevicesKey = `CUDA_VISIBLE_DEVICES`

// CudaIndex maps a local rank to a physical device under the current
// CUDA_VISIBLE_DEVICES, -1 if it can't be mapped.
func CudaIndex(lookup func(string) (string, bool), localRank int) int {
	val, ok := lookup(CudaVisibleDevicesKey)
	if !ok {
		return localRank
	}
	ids, err := ParseCudaVisibleDevices(val)
	if err != nil {
		return -1
	}
	if len(ids) <= localRank {
		return -1
	}
	return ids[localRank]
}

func visibleDeviceCount(lookup lookupFunc) int {
	val, ok := lookup(CudaVisibleDevicesKey)
	if !ok {
		return 1
	}
	ids, err := ParseCudaVisibleDevices(val)
	if err != nil || len(ids) == 0 {
		return 1
	}
	return len(ids)
}

var errInvalidCudaVisibleDevices = errors.New("invalid " + CudaVisibleDevicesKey)

func ParseCudaVisibleDevices(val string) ([]int, error) {
	if len(val) == 0 {
		return nil, nil
	}
	parts := strings.Split(val, ",")
	set := make(map[int]struct{})
	var ids []int
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			continue
		}
		if _, ok := set[n]; ok {
			return nil, errInvalidCudaVisibleDevices
		}
		set[n] = struct{}{}
		ids = append(ids, n)
	}
	return ids, nil
}
