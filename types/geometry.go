package types

// Vec3 is a 3D point or direction in world coordinates.
type Vec3 [3]float64

// DisplayGeometry is one physical CAVE screen: its lower-left corner and the
// two edge vectors spanning it.
type DisplayGeometry struct {
	Rank          int     `json:"rank" yaml:"rank"`
	Origin        Vec3    `json:"origin" yaml:"origin"`
	EdgeX         Vec3    `json:"edge_x" yaml:"edge_x"`
	EdgeY         Vec3    `json:"edge_y" yaml:"edge_y"`
	EyeSeparation float64 `json:"eye_separation" yaml:"eye_separation"`
}

// Degenerate reports whether the edges cannot span a screen.
func (g DisplayGeometry) Degenerate() bool {
	cx := g.EdgeX[1]*g.EdgeY[2] - g.EdgeX[2]*g.EdgeY[1]
	cy := g.EdgeX[2]*g.EdgeY[0] - g.EdgeX[0]*g.EdgeY[2]
	cz := g.EdgeX[0]*g.EdgeY[1] - g.EdgeX[1]*g.EdgeY[0]
	return cx == 0 && cy == 0 && cz == 0
}
