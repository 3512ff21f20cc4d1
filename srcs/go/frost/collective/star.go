package collective

import (
	"context"
	"fmt"
	"net"

	"github.com/frostml/frost/srcs/go/frost/config"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/plan"
	"github.com/frostml/frost/srcs/go/rchannel/connection"
	"github.com/frostml/frost/srcs/go/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Star is a TCP group where rank 0 is the coordinator: it listens on the
// rendezvous address, sums the contributions of all workers in rank order and
// sends the result back, so every member ends with bit-identical values.
type Star struct {
	rank  int
	size  int
	conns []connection.Connection // coordinator: indexed by rank, conns[0] is nil; worker: conns[0] is the coordinator
}

// Join forms the group. It blocks until all size members have joined or ctx is done.
func Join(ctx context.Context, coordinator plan.NetAddr, rank, size int, token [16]byte) (*Star, error) {
	if rank < 0 || rank >= size {
		return nil, errors.Errorf("invalid rank %d for world size %d", rank, size)
	}
	if rank == 0 {
		return listenAndAdmit(ctx, coordinator, size, token)
	}
	c, err := connection.Dial(ctx, coordinator, connection.Hello{Rank: rank, WorldSize: size, Token: token})
	if err != nil {
		return nil, errors.Wrap(err, "rendezvous")
	}
	if err := c.WaitAccepted(); err != nil {
		c.Close()
		return nil, errors.Wrapf(err, "rendezvous with %s", coordinator)
	}
	return &Star{rank: rank, size: size, conns: []connection.Connection{c}}, nil
}

func listenAndAdmit(ctx context.Context, coordinator plan.NetAddr, size int, token [16]byte) (*Star, error) {
	s := &Star{rank: 0, size: size, conns: make([]connection.Connection, size)}
	if size == 1 {
		return s, nil
	}
	ln, err := net.Listen("tcp", coordinator.ListenAddr().String())
	if err != nil {
		return nil, errors.Wrap(err, "rendezvous")
	}
	defer ln.Close()
	log.Debugf("coordinator listening on %s for %d workers", ln.Addr(), size-1)
	if deadline, ok := ctx.Deadline(); ok {
		ln.(*net.TCPListener).SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	for joined := 1; joined < size; {
		conn, err := ln.Accept()
		if err != nil {
			s.Close()
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return nil, errors.Wrapf(err, "rendezvous: %d of %d joined", joined, size)
		}
		c, err := connection.Upgrade(conn)
		if err != nil {
			log.Warnf("bad hello from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}
		if err := s.validate(c.Hello(), token); err != nil {
			c.Admit(false)
			c.Close()
			s.Close()
			return nil, errors.Wrapf(err, "rendezvous: from %s", conn.RemoteAddr())
		}
		s.conns[c.Hello().Rank] = c
		joined++
		log.Debugf("rank %d joined from %s", c.Hello().Rank, conn.RemoteAddr())
	}
	for r := 1; r < size; r++ {
		if err := s.conns[r].(connection.Admitter).Admit(true); err != nil {
			s.Close()
			return nil, errors.Wrapf(err, "rendezvous: admit rank %d", r)
		}
	}
	return s, nil
}

func (s *Star) validate(h connection.Hello, token [16]byte) error {
	if h.WorldSize != s.size {
		return fmt.Errorf("world size mismatch: rank %d has %d, coordinator has %d", h.Rank, h.WorldSize, s.size)
	}
	if h.Rank <= 0 || h.Rank >= s.size {
		return fmt.Errorf("invalid rank %d for world size %d", h.Rank, s.size)
	}
	if h.Token != token {
		return fmt.Errorf("rank %d belongs to another run", h.Rank)
	}
	if s.conns[h.Rank] != nil {
		return fmt.Errorf("duplicated rank %d", h.Rank)
	}
	return nil
}

func (s *Star) Rank() int { return s.rank }

func (s *Star) Size() int { return s.size }

func (s *Star) String() string {
	return fmt.Sprintf("star(rank=%d, size=%d)", s.rank, s.size)
}

func (s *Star) AllReduce(ctx context.Context, name string, xs []float64) error {
	if s.size == 1 {
		return nil
	}
	if s.closed() {
		return errors.Wrapf(errClosed, "AllReduce(%s) on rank %d", name, s.rank)
	}
	defer utils.InstallStallDetector(fmt.Sprintf("AllReduce(%s)", name), config.StallPeriod).Stop()
	s.setDeadline(ctx)
	defer s.setDeadline(context.Background())
	var err error
	if s.rank == 0 {
		err = s.reduceAndBroadcast(name, xs)
	} else {
		err = s.sendAndWait(name, xs)
	}
	if err != nil {
		// peers blocked on us fail instead of hanging
		s.Close()
		return errors.Wrapf(err, "AllReduce(%s) on rank %d", name, s.rank)
	}
	return nil
}

func (s *Star) reduceAndBroadcast(name string, xs []float64) error {
	buf := make([]float64, len(xs))
	for r := 1; r < s.size; r++ {
		m := connection.Message{Length: uint32(8 * len(xs)), Data: make([]byte, 8*len(xs))}
		if err := s.conns[r].Read(name, &m); err != nil {
			return errors.Wrapf(err, "from rank %d", r)
		}
		if err := connection.DecodeF64(m, buf); err != nil {
			return errors.Wrapf(err, "from rank %d", r)
		}
		floats.Add(xs, buf)
	}
	out := connection.EncodeF64(xs)
	for r := 1; r < s.size; r++ {
		if err := s.conns[r].Send(name, out); err != nil {
			return errors.Wrapf(err, "to rank %d", r)
		}
	}
	return nil
}

func (s *Star) sendAndWait(name string, xs []float64) error {
	root := s.conns[0]
	if err := root.Send(name, connection.EncodeF64(xs)); err != nil {
		return err
	}
	m := connection.Message{Length: uint32(8 * len(xs)), Data: make([]byte, 8*len(xs))}
	if err := root.Read(name, &m); err != nil {
		return err
	}
	return connection.DecodeF64(m, xs)
}

func (s *Star) setDeadline(ctx context.Context) {
	deadline, _ := ctx.Deadline()
	for _, c := range s.conns {
		if c != nil {
			c.SetDeadline(deadline)
		}
	}
}

var errClosed = errors.New("group closed")

func (s *Star) closed() bool {
	for r, c := range s.conns {
		if r != s.rank && c == nil {
			return true
		}
	}
	return false
}

func (s *Star) Barrier(ctx context.Context) error {
	return s.AllReduce(ctx, barrierName, nil)
}

func (s *Star) Close() error {
	var errs []error
	for i, c := range s.conns {
		if c != nil {
			errs = append(errs, c.Close())
			s.conns[i] = nil
		}
	}
	return utils.MergeErrors(errs, "close")
}
