package reader

import (
	"fmt"

	"github.com/pithecene-io/mural/topology"
)

// PlanView is the rendered form of a resolved topology plan.
type PlanView struct {
	Role       string   `json:"role"`
	Rank       int      `json:"rank"`
	Builtin    bool     `json:"builtin"`
	Components []string `json:"components"`
	Codec      string   `json:"codec,omitempty"`

	Compositor      string `json:"compositor,omitempty"`
	ReductionFactor int    `json:"reduction_factor,omitempty"`
	Tiles           string `json:"tiles,omitempty"`
	Mullions        string `json:"mullions,omitempty"`
	DataReplicated  bool   `json:"data_replicated"`
	WriteBack       bool   `json:"write_back"`

	CaveDisplays int `json:"cave_displays,omitempty"`
	CaveScreens  int `json:"cave_screens,omitempty"`

	ProducerFromCompositor bool `json:"producer_from_compositor"`
	ConsumerLossLess       bool `json:"consumer_loss_less"`
	ConsumerWriteBack      bool `json:"consumer_write_back"`
}

// NewPlanView flattens p for rendering.
func NewPlanView(p topology.Plan) *PlanView {
	v := &PlanView{
		Role:       string(p.Role),
		Rank:       p.Rank,
		Builtin:    p.Builtin(),
		Components: p.Components(),
		Codec:      p.Codec,

		ProducerFromCompositor: p.ProducerFromCompositor,
		ConsumerLossLess:       p.ConsumerLossLess,
		ConsumerWriteBack:      p.ConsumerWriteBack,
	}
	if v.Components == nil {
		v.Components = []string{}
	}
	if p.Compositor {
		cols, rows := p.Cluster.TileGrid()
		v.Compositor = p.CompositorKind.String()
		v.ReductionFactor = p.CompositorCfg.ReductionFactor
		v.Tiles = fmt.Sprintf("%dx%d", cols, rows)
		v.Mullions = fmt.Sprintf("%dx%d", p.CompositorCfg.MullionX, p.CompositorCfg.MullionY)
		v.DataReplicated = p.CompositorCfg.DataReplicated
		v.WriteBack = p.CompositorCfg.WriteBack
	}
	if p.Cave {
		v.CaveDisplays = p.CaveCfg.NumberOfDisplays
		v.CaveScreens = len(p.Displays)
	}
	return v
}
