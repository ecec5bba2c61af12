package compositor

import (
	"fmt"

	"github.com/pithecene-io/mural/comm"
	"github.com/pithecene-io/mural/ipc"
)

// topologyCheck is what every rank reports on the first frame.
type topologyCheck struct {
	Reduction int  `msgpack:"reduction"`
	Cols      int  `msgpack:"cols"`
	Rows      int  `msgpack:"rows"`
	MullionX  int  `msgpack:"mx"`
	MullionY  int  `msgpack:"my"`
	Kind      Kind `msgpack:"kind"`
}

type topologyVerdict struct {
	OK     bool   `msgpack:"ok"`
	Reason string `msgpack:"reason,omitempty"`
}

// checkTopology gathers every rank's parameters on rank 0, which
// broadcasts one verdict. A mismatch fails on all ranks.
func checkTopology(ctrl comm.Controller, local topologyCheck) error {
	size, me := ctrl.NumberOfProcesses(), ctrl.LocalProcessID()
	if size < 2 {
		return nil
	}

	if me != 0 {
		data, err := ipc.EncodeMessage(local)
		if err != nil {
			return err
		}
		if err := ctrl.Send(data, 0, TagTopologyCheck); err != nil {
			return fmt.Errorf("send topology check: %w", err)
		}
		payload, err := ctrl.Receive(0, TagTopologyVerdict)
		if err != nil {
			return fmt.Errorf("receive topology verdict: %w", err)
		}
		var verdict topologyVerdict
		if err := ipc.DecodeMessage(payload, &verdict); err != nil {
			return err
		}
		if !verdict.OK {
			return fmt.Errorf("%w: %s", ErrInconsistentTopology, verdict.Reason)
		}
		return nil
	}

	verdict := topologyVerdict{OK: true}
	for r := 1; r < size; r++ {
		payload, err := ctrl.Receive(r, TagTopologyCheck)
		if err != nil {
			return fmt.Errorf("receive topology check from rank %d: %w", r, err)
		}
		var remote topologyCheck
		if err := ipc.DecodeMessage(payload, &remote); err != nil {
			return err
		}
		if remote != local && verdict.OK {
			verdict = topologyVerdict{Reason: fmt.Sprintf("rank %d has %+v, rank 0 has %+v", r, remote, local)}
		}
	}

	data, err := ipc.EncodeMessage(verdict)
	if err != nil {
		return err
	}
	for r := 1; r < size; r++ {
		if err := ctrl.Send(data, r, TagTopologyVerdict); err != nil {
			return fmt.Errorf("send topology verdict to rank %d: %w", r, err)
		}
	}
	if !verdict.OK {
		return fmt.Errorf("%w: %s", ErrInconsistentTopology, verdict.Reason)
	}
	return nil
}
