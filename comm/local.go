package comm

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/mural/ipc"
)

type message struct {
	tag  int
	data []byte
}

// mailbox is an unbounded FIFO from one rank to another.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []message
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) put(msg message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.queue = append(m.queue, msg)
	m.cond.Signal()
	return nil
}

func (m *mailbox) take() (message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.queue) == 0 {
		return message{}, ErrClosed
	}
	msg := m.queue[0]
	m.queue[0] = message{}
	m.queue = m.queue[1:]
	return msg, nil
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

// LocalGroup is an in-memory process group whose members run as goroutines
// of one process. It backs local worker partitions and multi-rank tests.
type LocalGroup struct {
	size  int
	boxes []*mailbox // boxes[src*size+dst]
	ranks []*LocalController
}

// NewLocalGroup creates a group of size members.
func NewLocalGroup(size int) *LocalGroup {
	size = max(size, 1)
	g := &LocalGroup{
		size:  size,
		boxes: make([]*mailbox, size*size),
		ranks: make([]*LocalController, size),
	}
	for i := range g.boxes {
		g.boxes[i] = newMailbox()
	}
	for r := range g.ranks {
		g.ranks[r] = &LocalController{group: g, rank: r}
	}
	return g
}

// Size returns the number of members.
func (g *LocalGroup) Size() int { return g.size }

// Rank returns the controller for member r.
func (g *LocalGroup) Rank(r int) *LocalController { return g.ranks[r] }

// Run calls fn once per member, each in its own goroutine, and waits for all
// of them. A failing member closes the group so its peers do not block
// forever; the first error is returned.
func (g *LocalGroup) Run(fn func(c Controller) error) error {
	var eg errgroup.Group
	for _, c := range g.ranks {
		eg.Go(func() error {
			if err := fn(c); err != nil {
				g.Close()
				return fmt.Errorf("rank %d: %w", c.rank, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// Close closes every member.
func (g *LocalGroup) Close() {
	for _, b := range g.boxes {
		b.close()
	}
}

func (g *LocalGroup) box(src, dst int) *mailbox { return g.boxes[src*g.size+dst] }

// LocalController is one member of a LocalGroup.
type LocalController struct {
	group *LocalGroup
	rank  int
}

// Send implements Controller. Sends never block.
func (c *LocalController) Send(data []byte, rank, tag int) error {
	if err := checkRank(rank, c.group.size); err != nil {
		return err
	}
	return c.group.box(c.rank, rank).put(message{tag: tag, data: append([]byte(nil), data...)})
}

// Receive implements Controller.
func (c *LocalController) Receive(rank, tag int) ([]byte, error) {
	if err := checkRank(rank, c.group.size); err != nil {
		return nil, err
	}
	msg, err := c.group.box(rank, c.rank).take()
	if err != nil {
		return nil, err
	}
	if err := ipc.CheckTag(int32(msg.tag), int32(tag)); err != nil {
		return nil, fmt.Errorf("from rank %d: %w", rank, err)
	}
	if msg.data == nil {
		msg.data = []byte{}
	}
	return msg.data, nil
}

// LocalProcessID implements Controller.
func (c *LocalController) LocalProcessID() int { return c.rank }

// NumberOfProcesses implements Controller.
func (c *LocalController) NumberOfProcesses() int { return c.group.size }

// Close implements Controller. It closes every mailbox this member sends to
// or receives from.
func (c *LocalController) Close() error {
	for r := range c.group.size {
		c.group.box(c.rank, r).close()
		c.group.box(r, c.rank).close()
	}
	return nil
}

var _ Controller = (*LocalController)(nil)
