package telemetry

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// EventWriter writes TensorBoard event files: a TFRecord stream of Event
// protos carrying scalar summaries.
type EventWriter struct {
	sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
	now  func() time.Time
}

var crc32c = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, crc32c)
	return ((c >> 15) | (c << 17)) + 0xa282ead8
}

// NewEventWriter creates dir if needed and opens a new event file in it.
func NewEventWriter(dir string) (*EventWriter, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	now := time.Now()
	name := fmt.Sprintf("events.out.tfevents.%d.%s.%d", now.Unix(), host, os.Getpid())
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	e := &EventWriter{f: f, w: bufio.NewWriter(f), path: path, now: time.Now}
	if err := e.writeEvent(encodeVersionEvent(e.wallTime())); err != nil {
		f.Close()
		return nil, err
	}
	return e, e.w.Flush()
}

func (e *EventWriter) Path() string {
	return e.path
}

func (e *EventWriter) wallTime() float64 {
	return float64(e.now().UnixNano()) / 1e9
}

func (e *EventWriter) AddScalar(tag string, value float64, step int) error {
	e.Lock()
	defer e.Unlock()
	if e.f == nil {
		return errors.Errorf("add scalar %q: event file closed", tag)
	}
	return e.writeEvent(encodeScalarEvent(e.wallTime(), tag, value, step))
}

// Flush makes the events written so far visible to readers.
func (e *EventWriter) Flush() error {
	e.Lock()
	defer e.Unlock()
	if e.f == nil {
		return nil
	}
	return e.w.Flush()
}

func (e *EventWriter) Close() error {
	e.Lock()
	defer e.Unlock()
	if e.f == nil {
		return nil
	}
	err := e.w.Flush()
	if cerr := e.f.Close(); err == nil {
		err = cerr
	}
	e.f = nil
	return err
}

// writeEvent frames data as a TFRecord:
// uint64 length, masked crc of length, data, masked crc of data.
func (e *EventWriter) writeEvent(data []byte) error {
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(hdr[8:], maskedCRC(hdr[:8]))
	var ftr [4]byte
	binary.LittleEndian.PutUint32(ftr[:], maskedCRC(data))
	for _, b := range [][]byte{hdr[:], data, ftr[:]} {
		if _, err := e.w.Write(b); err != nil {
			return errors.Wrap(err, e.path)
		}
	}
	return nil
}

// Event fields.
const (
	eventWallTime    = 1
	eventStep        = 2
	eventFileVersion = 3
	eventSummary     = 5

	summaryValue = 1

	valueTag         = 1
	valueSimpleValue = 2
)

func encodeVersionEvent(wallTime float64) []byte {
	var b []byte
	b = protowire.AppendTag(b, eventWallTime, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(wallTime))
	b = protowire.AppendTag(b, eventFileVersion, protowire.BytesType)
	b = protowire.AppendString(b, "brain.Event:2")
	return b
}

func encodeScalarEvent(wallTime float64, tag string, value float64, step int) []byte {
	var v []byte
	v = protowire.AppendTag(v, valueTag, protowire.BytesType)
	v = protowire.AppendString(v, tag)
	v = protowire.AppendTag(v, valueSimpleValue, protowire.Fixed32Type)
	v = protowire.AppendFixed32(v, math.Float32bits(float32(value)))
	var s []byte
	s = protowire.AppendTag(s, summaryValue, protowire.BytesType)
	s = protowire.AppendBytes(s, v)
	var b []byte
	b = protowire.AppendTag(b, eventWallTime, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(wallTime))
	b = protowire.AppendTag(b, eventStep, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(step))
	b = protowire.AppendTag(b, eventSummary, protowire.BytesType)
	b = protowire.AppendBytes(b, s)
	return b
}
