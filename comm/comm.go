// Package comm provides the process-group controllers that the compositor
// and the relay exchange messages over.
//
// Every call blocks until the peer responds; there are no timeouts at this
// layer. Messages between a pair of ranks are delivered in order, and a
// Receive whose tag does not match the next message from that rank fails
// with a fatal ipc.FrameError.
package comm

import (
	"errors"
	"fmt"
)

// Sentinel errors for controller failures.
var (
	// ErrClosed is returned by calls on a closed controller.
	ErrClosed = errors.New("comm: controller closed")
	// ErrRank is returned for a rank outside the group.
	ErrRank = errors.New("comm: rank out of range")
)

// Controller is a process group seen from one member.
type Controller interface {
	// Send delivers data to rank under tag. The controller does not retain
	// data after Send returns.
	Send(data []byte, rank, tag int) error
	// Receive returns the next message from rank, which must carry tag.
	Receive(rank, tag int) ([]byte, error)
	// LocalProcessID is this member's rank.
	LocalProcessID() int
	// NumberOfProcesses is the group size.
	NumberOfProcesses() int
	// Close releases the controller. Blocked calls return ErrClosed.
	Close() error
}

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrRank, rank, size)
	}
	return nil
}
