package utils

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/cpuid/v2"
)

func ProgName() string {
	if len(os.Args) > 0 {
		return path.Base(os.Args[0])
	}
	return ""
}

func LogArgs() {
	for i, a := range os.Args {
		fmt.Printf("[arg] [%d]=%s\n", i, a)
	}
}

func LogEnvWithPrefix(prefix string, logPrefix string) {
	var kvs []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix) {
			kvs = append(kvs, kv)
		}
	}
	sort.Strings(kvs)
	for _, kv := range kvs {
		fmt.Printf("[%s]: %s\n", logPrefix, kv)
	}
}

func LogCudaEnv() {
	LogEnvWithPrefix(`CUDA_`, `cuda-env`)
}

func LogFrostEnv() {
	LogEnvWithPrefix(`FROST_`, `frost-env`)
}

// LogCPUInfo prints the host CPU model and the vector extensions relevant to
// the float64 kernels of the reference models.
func LogCPUInfo() {
	c := cpuid.CPU
	fmt.Printf("[cpu] %s, %d physical cores, %d logical cores\n", c.BrandName, c.PhysicalCores, c.LogicalCores)
	var exts []string
	for _, f := range []cpuid.FeatureID{cpuid.SSE2, cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F, cpuid.ASIMD} {
		if c.Supports(f) {
			exts = append(exts, f.String())
		}
	}
	fmt.Printf("[cpu] features: %s\n", strings.Join(exts, " "))
}

func Measure(f func() error) (time.Duration, error) {
	t0 := time.Now()
	err := f()
	d := time.Since(t0)
	return d, err
}

// Poll calls f until it returns true or ctx is done.
// It returns the number of failed calls and whether f eventually succeeded.
func Poll(ctx context.Context, f func() bool) (int, bool) {
	return PollWithPeriod(ctx, 0, f)
}

func PollWithPeriod(ctx context.Context, period time.Duration, f func() bool) (int, bool) {
	for i := 0; ; i++ {
		if f() {
			return i, true
		}
		select {
		case <-ctx.Done():
			return i + 1, false
		default:
		}
		if period > 0 {
			select {
			case <-ctx.Done():
				return i + 1, false
			case <-time.After(period):
			}
		}
	}
}

func pluralize(n int, singular, plural string) string {
	if n > 1 {
		return plural
	}
	return singular
}

func Pluralize(n int, singular, plural string) string {
	return fmt.Sprintf("%d %s", n, pluralize(n, singular, plural))
}
