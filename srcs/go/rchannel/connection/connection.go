package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/frostml/frost/srcs/go/frost/config"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/plan"
	"github.com/frostml/frost/srcs/go/utils"
)

// Hello identifies a worker joining a group.
type Hello struct {
	Rank      int
	WorldSize int
	Token     [16]byte
}

// Connection is a duplex logical connection between a worker and the coordinator
type Connection interface {
	Hello() Hello
	Send(name string, m Message) error
	Read(name string, m *Message) error
	SetDeadline(t time.Time) error
	Close() error
}

// Admitter is implemented by connections returned from Upgrade.
type Admitter interface {
	Admit(ok bool) error
}

type tcpConnection struct {
	sync.Mutex
	hello Hello
	conn  net.Conn
}

var errCantEstablishConnection = errors.New("can't establish connection")

// Dial connects to the coordinator, retrying until ctx is done, then sends hello.
// The returned connection is not usable until Accept is called on it.
func Dial(ctx context.Context, remote plan.NetAddr, h Hello) (*tcpConnection, error) {
	var conn net.Conn
	t0 := time.Now()
	var d net.Dialer
	failed, ok := utils.PollWithPeriod(ctx, config.ConnRetryPeriod, func() bool {
		var err error
		conn, err = d.DialContext(ctx, "tcp", remote.String())
		if err != nil {
			log.Debugf("failed to connect to #<%s>: %v", remote, err)
			return false
		}
		return true
	})
	if !ok {
		return nil, fmt.Errorf("%v to %s after %d trials: %v", errCantEstablishConnection, remote, failed, ctx.Err())
	}
	log.Debugf("connection to #<%s> established after %d trials, took %s", remote, failed+1, time.Since(t0))
	c := &tcpConnection{hello: h, conn: conn}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	hdr := helloHeader{Rank: uint32(h.Rank), WorldSize: uint32(h.WorldSize), Token: h.Token}
	if err := hdr.WriteTo(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// ErrRejected is returned to a worker the coordinator refused to admit.
var ErrRejected = errors.New("rejected by coordinator")

// WaitAccepted blocks until the coordinator admits or rejects this worker.
func (c *tcpConnection) WaitAccepted() error {
	var ack helloACK
	if err := ack.ReadFrom(c.conn); err != nil {
		return err
	}
	c.conn.SetDeadline(time.Time{})
	if ack.Status != AckOK {
		return ErrRejected
	}
	return nil
}

// Upgrade performs the coordinator side of the handshake: it reads the hello
// of a freshly accepted TCP connection.
func Upgrade(conn net.Conn) (*tcpConnection, error) {
	var hdr helloHeader
	if err := hdr.ReadFrom(conn); err != nil {
		return nil, err
	}
	return &tcpConnection{
		hello: Hello{Rank: int(hdr.Rank), WorldSize: int(hdr.WorldSize), Token: hdr.Token},
		conn:  conn,
	}, nil
}

// Admit answers the hello of a connection returned by Upgrade.
func (c *tcpConnection) Admit(ok bool) error {
	ack := helloACK{Status: AckOK}
	if !ok {
		ack.Status = AckRejected
	}
	return ack.WriteTo(c.conn)
}

func (c *tcpConnection) Hello() Hello {
	return c.hello
}

func (c *tcpConnection) Send(name string, m Message) error {
	c.Lock()
	defer c.Unlock()
	bs := []byte(name)
	mh := MessageHeader{
		NameLength: uint32(len(bs)),
		Name:       bs,
	}
	if err := mh.WriteTo(c.conn); err != nil {
		return err
	}
	return m.WriteTo(c.conn)
}

// Read reads a message named name into m; m.Length must be set when m.Data
// is pre-allocated, otherwise a new buffer is allocated.
func (c *tcpConnection) Read(name string, m *Message) error {
	c.Lock()
	defer c.Unlock()
	var mh MessageHeader
	if err := mh.Expect(c.conn, name); err != nil {
		return err
	}
	if m.Data == nil {
		return m.ReadFrom(c.conn)
	}
	return m.ReadInto(c.conn)
}

func (c *tcpConnection) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *tcpConnection) Close() error {
	return c.conn.Close()
}
