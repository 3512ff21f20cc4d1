package connection

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var endian = binary.LittleEndian

// helloHeader is sent by a joining worker right after dialing the coordinator.
type helloHeader struct {
	Rank      uint32
	WorldSize uint32
	Token     [16]byte
}

func (h helloHeader) WriteTo(w io.Writer) error {
	return binary.Write(w, endian, &h)
}

func (h *helloHeader) ReadFrom(r io.Reader) error {
	return binary.Read(r, endian, h)
}

type AckStatus uint32

const (
	AckOK AckStatus = iota
	AckRejected
)

type helloACK struct {
	Status AckStatus
}

func (a helloACK) WriteTo(w io.Writer) error {
	return binary.Write(w, endian, &a)
}

func (a *helloACK) ReadFrom(r io.Reader) error {
	return binary.Read(r, endian, a)
}

type MessageHeader struct {
	NameLength uint32
	Name       []byte
}

func (h *MessageHeader) WriteTo(w io.Writer) error {
	if err := binary.Write(w, endian, h.NameLength); err != nil {
		return err
	}
	_, err := w.Write(h.Name)
	return err
}

// ReadFrom reads the messageHeader from a reader into new buffer.
func (h *MessageHeader) ReadFrom(r io.Reader) error {
	if err := binary.Read(r, endian, &h.NameLength); err != nil {
		return err
	}
	if h.NameLength > maxNameLength {
		return fmt.Errorf("name too long: %d", h.NameLength)
	}
	h.Name = make([]byte, h.NameLength)
	_, err := io.ReadFull(r, h.Name)
	return err
}

const maxNameLength = 1 << 10

// ErrNameMismatch means the two ends called different collectives.
var ErrNameMismatch = errors.New("collective name mismatch")

// Expect reads the messageHeader and checks it against name.
func (h *MessageHeader) Expect(r io.Reader, name string) error {
	if err := h.ReadFrom(r); err != nil {
		return err
	}
	if string(h.Name) != name {
		return fmt.Errorf("%w: got %q, want %q", ErrNameMismatch, h.Name, name)
	}
	return nil
}

func (h MessageHeader) String() string {
	return fmt.Sprintf("messageHeader{length=%d,name=%s}", h.NameLength, string(h.Name))
}

// Message is the payload following a MessageHeader
type Message struct {
	Length uint32
	Data   []byte
}

func (m Message) WriteTo(w io.Writer) error {
	if err := binary.Write(w, endian, m.Length); err != nil {
		return err
	}
	_, err := w.Write(m.Data)
	return err
}

// ReadFrom reads the message from a reader into new buffer.
func (m *Message) ReadFrom(r io.Reader) error {
	if err := binary.Read(r, endian, &m.Length); err != nil {
		return err
	}
	m.Data = make([]byte, m.Length)
	_, err := io.ReadFull(r, m.Data)
	return err
}

var errUnexpectedMessageLength = errors.New("unexpected message length")

// ReadInto reads the message from a reader into existing buffer.
func (m *Message) ReadInto(r io.Reader) error {
	var length uint32
	if err := binary.Read(r, endian, &length); err != nil {
		return err
	}
	if length != m.Length {
		return errUnexpectedMessageLength
	}
	_, err := io.ReadFull(r, m.Data)
	return err
}

func (m Message) String() string {
	return fmt.Sprintf("message{length=%d}", m.Length)
}

// EncodeF64 packs xs as little-endian IEEE 754 doubles.
func EncodeF64(xs []float64) Message {
	bs := make([]byte, 8*len(xs))
	for i, x := range xs {
		endian.PutUint64(bs[8*i:], math.Float64bits(x))
	}
	return Message{Length: uint32(len(bs)), Data: bs}
}

// DecodeF64 unpacks m into xs, which must have the right length.
func DecodeF64(m Message, xs []float64) error {
	if int(m.Length) != 8*len(xs) {
		return errUnexpectedMessageLength
	}
	for i := range xs {
		xs[i] = math.Float64frombits(endian.Uint64(m.Data[8*i:]))
	}
	return nil
}
