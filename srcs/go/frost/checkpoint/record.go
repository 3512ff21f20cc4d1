// Package checkpoint persists training state so that a run can be resumed.
package checkpoint

import (
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field identifies a part of a record.
type Field uint8

const (
	Epoch Field = 1 << iota
	Model
	Optimizer
	Scheduler
)

var fieldNames = []struct {
	f    Field
	name string
}{
	{Epoch, "epoch"},
	{Model, "model"},
	{Optimizer, "optimizer"},
	{Scheduler, "scheduler"},
}

func (f Field) String() string {
	var names []string
	for _, n := range fieldNames {
		if f&n.f != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Record is the state of a run after an epoch. State blobs are opaque.
type Record struct {
	epoch     int
	model     []byte
	optimizer []byte
	scheduler []byte
	present   Field
}

// NewRecord creates a complete record.
func NewRecord(epoch int, model, optimizer, scheduler []byte) *Record {
	return (&Record{}).WithEpoch(epoch).WithModel(model).WithOptimizer(optimizer).WithScheduler(scheduler)
}

func (r *Record) WithEpoch(epoch int) *Record {
	r.epoch = epoch
	r.present |= Epoch
	return r
}

func (r *Record) WithModel(b []byte) *Record {
	r.model = b
	r.present |= Model
	return r
}

func (r *Record) WithOptimizer(b []byte) *Record {
	r.optimizer = b
	r.present |= Optimizer
	return r
}

func (r *Record) WithScheduler(b []byte) *Record {
	r.scheduler = b
	r.present |= Scheduler
	return r
}

// Has reports whether all fields of f are present.
func (r *Record) Has(f Field) bool {
	return r.present&f == f
}

// Present returns the set of present fields.
func (r *Record) Present() Field {
	return r.present
}

// Resumable reports whether training can continue where the record was
// taken: epoch, optimizer and scheduler are all present.
func (r *Record) Resumable() bool {
	return r.Has(Epoch | Optimizer | Scheduler)
}

func (r *Record) Epoch() int { return r.epoch }

func (r *Record) Model() []byte { return r.model }

func (r *Record) Optimizer() []byte { return r.optimizer }

func (r *Record) Scheduler() []byte { return r.scheduler }

// Wire format: 1: epoch (zigzag varint), 2: model, 3: optimizer, 4: scheduler (bytes).
// Absent fields are not written.
func (r *Record) Marshal() []byte {
	var b []byte
	if r.Has(Epoch) {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(r.epoch)))
	}
	for i, f := range []struct {
		field Field
		data  []byte
	}{{Model, r.model}, {Optimizer, r.optimizer}, {Scheduler, r.scheduler}} {
		if r.Has(f.field) {
			b = protowire.AppendTag(b, protowire.Number(i+2), protowire.BytesType)
			b = protowire.AppendBytes(b, f.data)
		}
	}
	return b
}

var ErrCorrupt = errors.New("corrupt checkpoint")

func Unmarshal(b []byte) (*Record, error) {
	r := &Record{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(ErrCorrupt, protowire.ParseError(n).Error())
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(ErrCorrupt, protowire.ParseError(n).Error())
			}
			r.WithEpoch(int(protowire.DecodeZigZag(v)))
			b = b[n:]
		case num >= 2 && num <= 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.Wrap(ErrCorrupt, protowire.ParseError(n).Error())
			}
			v = append([]byte{}, v...)
			switch num {
			case 2:
				r.WithModel(v)
			case 3:
				r.WithOptimizer(v)
			case 4:
				r.WithScheduler(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrap(ErrCorrupt, protowire.ParseError(n).Error())
			}
			b = b[n:]
		}
	}
	return r, nil
}
