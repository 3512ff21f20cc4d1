package metrics

import "fmt"

// Accumulator tracks one scalar metric over an epoch.
// Averages of an accumulator without observations are 0.
type Accumulator struct {
	last  float64
	sum   float64
	count float64

	globalSum   float64
	globalCount float64
	synced      bool
}

func (a *Accumulator) Update(v float64) {
	a.last = v
	a.sum += v
	a.count++
	a.synced = false
}

// Value is the last observation.
func (a *Accumulator) Value() float64 {
	return a.last
}

func (a *Accumulator) Count() int {
	return int(a.count)
}

// Average is the running mean of the observations of this process.
func (a *Accumulator) Average() float64 {
	return mean(a.sum, a.count)
}

// GlobalAverage is the mean over the observations of all processes as of the
// last synchronization, or the local mean if the accumulator was not synchronized.
func (a *Accumulator) GlobalAverage() float64 {
	if !a.synced {
		return a.Average()
	}
	return mean(a.globalSum, a.globalCount)
}

func (a *Accumulator) String() string {
	return fmt.Sprintf("%.4f (%.4f)", a.last, a.Average())
}

func mean(sum, count float64) float64 {
	if count == 0 {
		return 0
	}
	return sum / count
}
