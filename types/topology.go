package types

import "fmt"

// ClusterTopology describes the display and partition layout of a session.
// It is fixed once topology resolution has run.
type ClusterTopology struct {
	TileColumns int `json:"tile_columns" yaml:"tile_columns" msgpack:"tile_columns"`
	TileRows    int `json:"tile_rows" yaml:"tile_rows" msgpack:"tile_rows"`
	// MullionX and MullionY are the pixel gaps between adjacent tiles.
	MullionX int `json:"mullion_x" yaml:"mullion_x" msgpack:"mullion_x"`
	MullionY int `json:"mullion_y" yaml:"mullion_y" msgpack:"mullion_y"`

	NumberOfDisplayNodes    int `json:"display_nodes" yaml:"display_nodes" msgpack:"display_nodes"`
	NumberOfLocalPartitions int `json:"local_partitions" yaml:"local_partitions" msgpack:"local_partitions"`
}

// InTileDisplayMode is true when either tile dimension is set.
func (t ClusterTopology) InTileDisplayMode() bool {
	return t.TileColumns > 0 || t.TileRows > 0
}

// InCaveMode is true when display nodes are configured outside tile mode.
func (t ClusterTopology) InCaveMode() bool {
	return !t.InTileDisplayMode() && t.NumberOfDisplayNodes > 0
}

// TileGrid returns the effective tile grid. A zero dimension counts as one.
func (t ClusterTopology) TileGrid() (cols, rows int) {
	cols, rows = t.TileColumns, t.TileRows
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// Validate rejects negative values.
func (t ClusterTopology) Validate() error {
	switch {
	case t.TileColumns < 0 || t.TileRows < 0:
		return fmt.Errorf("tile dimensions must be >= 0, got %dx%d", t.TileColumns, t.TileRows)
	case t.MullionX < 0 || t.MullionY < 0:
		return fmt.Errorf("tile mullions must be >= 0, got %dx%d", t.MullionX, t.MullionY)
	case t.NumberOfDisplayNodes < 0:
		return fmt.Errorf("display nodes must be >= 0, got %d", t.NumberOfDisplayNodes)
	case t.NumberOfLocalPartitions < 0:
		return fmt.Errorf("local partitions must be >= 0, got %d", t.NumberOfLocalPartitions)
	}
	return nil
}
