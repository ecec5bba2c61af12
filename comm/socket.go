package comm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pithecene-io/mural/ipc"
	"github.com/pithecene-io/mural/iox"
)

// Socket ranks. The accepting side is the root.
const (
	SocketRootRank = 0
	SocketPeerRank = 1
)

// Socket is a two-member controller over one TCP connection, framed with
// ipc tagged frames.
type Socket struct {
	conn net.Conn
	rank int

	sendMu sync.Mutex
	enc    *ipc.FrameEncoder

	recvMu sync.Mutex
	dec    *ipc.FrameDecoder

	closeOnce sync.Once
	closed    chan struct{}
}

func newSocket(conn net.Conn, rank int) *Socket {
	return &Socket{
		conn:   conn,
		rank:   rank,
		enc:    ipc.NewFrameEncoder(conn),
		dec:    ipc.NewFrameDecoder(conn),
		closed: make(chan struct{}),
	}
}

// Listener accepts the peer of a Socket.
type Listener struct {
	ln net.Listener
}

// Listen binds addr ("host:port"; port 0 picks a free port).
func Listen(ctx context.Context, addr string) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Accept waits for one peer and returns the root-side Socket. Cancelling ctx
// closes the listener.
func (l *Listener) Accept(ctx context.Context) (*Socket, error) {
	stop := iox.CloseOnDone(ctx, l.ln)
	defer stop()

	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("accept: %w", ctx.Err())
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	return newSocket(conn, SocketRootRank), nil
}

// Close stops listening.
func (l *Listener) Close() error { return l.ln.Close() }

// Dial connects to a listening root and returns the peer-side Socket.
func Dial(ctx context.Context, addr string) (*Socket, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newSocket(conn, SocketPeerRank), nil
}

// Send implements Controller.
func (s *Socket) Send(data []byte, rank, tag int) error {
	if err := s.checkPeer(rank); err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.enc.WriteFrame(int32(tag), data); err != nil {
		return s.wrap(err)
	}
	return nil
}

// Receive implements Controller.
func (s *Socket) Receive(rank, tag int) ([]byte, error) {
	if err := s.checkPeer(rank); err != nil {
		return nil, err
	}
	s.recvMu.Lock()
	defer s.recvMu.Unlock()
	payload, err := s.dec.ReadTagged(int32(tag))
	if err != nil {
		return nil, s.wrap(err)
	}
	return payload, nil
}

func (s *Socket) checkPeer(rank int) error {
	if err := checkRank(rank, 2); err != nil {
		return err
	}
	if rank == s.rank {
		return fmt.Errorf("%w: rank %d is this socket", ErrRank, rank)
	}
	select {
	case <-s.closed:
		return ErrClosed
	default:
		return nil
	}
}

// wrap maps errors caused by Close to ErrClosed.
func (s *Socket) wrap(err error) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

// LocalProcessID implements Controller.
func (s *Socket) LocalProcessID() int { return s.rank }

// NumberOfProcesses implements Controller.
func (s *Socket) NumberOfProcesses() int { return 2 }

// RemoteAddr returns the peer address.
func (s *Socket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Close implements Controller.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

var _ Controller = (*Socket)(nil)
