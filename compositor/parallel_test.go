package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/pithecene-io/mural/comm"
	"github.com/pithecene-io/mural/metrics"
	"github.com/pithecene-io/mural/types"
)

type captureFunc func() (Partial, error)

func (f captureFunc) CapturePartial() (Partial, error) { return f() }

// runRanks composites one frame on every rank of a local group and returns
// each rank's tile and error.
func runRanks(t *testing.T, size int, cfgFor func(rank int) Config, partialFor func(rank int) Partial, opts ...Option) ([]types.RawImage, []error) {
	t.Helper()
	g := comm.NewLocalGroup(size)
	t.Cleanup(g.Close)

	tiles := make([]types.RawImage, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for r := range size {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := NewParallel(IceTStyle, g.Rank(r), cfgFor(r), opts...)
			if err != nil {
				errs[r] = err
				return
			}
			errs[r] = p.Composite(captureFunc(func() (Partial, error) { return partialFor(r), nil }))
			tiles[r] = p.LastRenderedTile()
		}()
	}
	wg.Wait()
	return tiles, errs
}

func sameConfig(cfg Config) func(int) Config {
	return func(int) Config { return cfg }
}

func requireNoErrors(t *testing.T, errs []error) {
	t.Helper()
	for r, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", r, err)
		}
	}
}

// fill paints rect [x0,x1)x[y0,y1) of an RGBA image.
func fill(img types.RawImage, x0, y0, x1, y1 int, px [4]byte) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			copy(img.Pixels[(y*img.Width+x)*4:], px[:])
		}
	}
}

func quadrantColor(r int) [4]byte {
	return [4]byte{byte(40 * (r + 1)), byte(255 - 40*r), byte(r), 0xFF}
}

// quadrantPartial renders only quadrant r of an 8x6 viewport split 2x2.
func quadrantPartial(r int) Partial {
	img := types.NewRawImage(8, 6, 4)
	x0, y0 := (r%2)*4, (r/2)*3
	fill(img, x0, y0, x0+4, y0+3, quadrantColor(r))
	return Partial{Color: img}
}

func quadrantReference() types.RawImage {
	ref := types.NewRawImage(8, 6, 4)
	for r := range 4 {
		x0, y0 := (r%2)*4, (r/2)*3
		fill(ref, x0, y0, x0+4, y0+3, quadrantColor(r))
	}
	return ref
}

func TestComposite_TileWallWriteBack(t *testing.T) {
	cfg := Config{TileColumns: 2, TileRows: 2, WriteBack: true}
	tiles, errs := runRanks(t, 4, sameConfig(cfg), quadrantPartial)
	requireNoErrors(t, errs)

	ref := quadrantReference()
	for r, tile := range tiles {
		if !tile.Valid {
			t.Fatalf("rank %d: tile invalid", r)
		}
		if tile.Width != 8 || tile.Height != 6 {
			t.Errorf("rank %d: tile %dx%d, want 8x6", r, tile.Width, tile.Height)
		}
		if !bytes.Equal(tile.Pixels, ref.Pixels) {
			t.Errorf("rank %d: composite does not match the reference quadrants", r)
		}
	}
}

func TestComposite_TileModeEachRankHoldsItsTile(t *testing.T) {
	for _, kind := range []Kind{IceTStyle, SimpleGather} {
		t.Run(kind.String(), func(t *testing.T) {
			g := comm.NewLocalGroup(4)
			t.Cleanup(g.Close)

			var mu sync.Mutex
			tiles := map[int]types.RawImage{}
			err := g.Run(func(c comm.Controller) error {
				p, err := NewParallel(kind, c, Config{TileColumns: 2, TileRows: 2})
				if err != nil {
					return err
				}
				me := c.LocalProcessID()
				if err := p.Composite(captureFunc(func() (Partial, error) { return quadrantPartial(me), nil })); err != nil {
					return err
				}
				mu.Lock()
				tiles[me] = p.LastRenderedTile()
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			for r := range 4 {
				tile := tiles[r]
				if !tile.Valid || tile.Width != 4 || tile.Height != 3 {
					t.Fatalf("rank %d: tile valid=%v %dx%d, want valid 4x3", r, tile.Valid, tile.Width, tile.Height)
				}
				want := quadrantColor(r)
				for p := 0; p < len(tile.Pixels); p += 4 {
					if !bytes.Equal(tile.Pixels[p:p+4], want[:]) {
						t.Fatalf("rank %d: pixel %d = %v, want %v", r, p/4, tile.Pixels[p:p+4], want)
					}
				}
			}
		})
	}
}

// TestComposite_MoreTilesThanRanks splits a 2x2 wall over fewer ranks, so
// some ranks merge several tiles.
func TestComposite_MoreTilesThanRanks(t *testing.T) {
	for _, size := range []int{2, 3} {
		// Rank r renders every quadrant q with q%size == r.
		partial := func(r int) Partial {
			img := types.NewRawImage(8, 6, 4)
			for q := r; q < 4; q += size {
				x0, y0 := (q%2)*4, (q/2)*3
				fill(img, x0, y0, x0+4, y0+3, quadrantColor(q))
			}
			return Partial{Color: img}
		}

		t.Run(fmt.Sprintf("%d ranks/write-back", size), func(t *testing.T) {
			cfg := Config{TileColumns: 2, TileRows: 2, WriteBack: true}
			tiles, errs := runRanks(t, size, sameConfig(cfg), partial)
			requireNoErrors(t, errs)
			ref := quadrantReference()
			for r, tile := range tiles {
				if !tile.Valid || !bytes.Equal(tile.Pixels, ref.Pixels) {
					t.Errorf("rank %d: composite does not match the reference quadrants", r)
				}
			}
		})

		t.Run(fmt.Sprintf("%d ranks/tiles", size), func(t *testing.T) {
			cfg := Config{TileColumns: 2, TileRows: 2}
			tiles, errs := runRanks(t, size, sameConfig(cfg), partial)
			requireNoErrors(t, errs)
			for r, tile := range tiles {
				if !tile.Valid || tile.Width != 4 || tile.Height != 3 {
					t.Fatalf("rank %d: tile valid=%v %dx%d, want valid 4x3", r, tile.Valid, tile.Width, tile.Height)
				}
				want := quadrantColor(r)
				for p := 0; p < len(tile.Pixels); p += 4 {
					if !bytes.Equal(tile.Pixels[p:p+4], want[:]) {
						t.Fatalf("rank %d: pixel %d = %v, want %v", r, p/4, tile.Pixels[p:p+4], want)
					}
				}
			}
		})
	}
}

func TestComposite_SingleImageOnlyRootHoldsResult(t *testing.T) {
	partial := func(r int) Partial {
		img := types.NewRawImage(6, 2, 4)
		fill(img, 2*r, 0, 2*r+2, 2, quadrantColor(r))
		return Partial{Color: img}
	}
	tiles, errs := runRanks(t, 3, sameConfig(Config{}), partial)
	requireNoErrors(t, errs)

	if !tiles[0].Valid {
		t.Fatal("rank 0 should hold the composited image")
	}
	ref := types.NewRawImage(6, 2, 4)
	for r := range 3 {
		fill(ref, 2*r, 0, 2*r+2, 2, quadrantColor(r))
	}
	if !bytes.Equal(tiles[0].Pixels, ref.Pixels) {
		t.Error("rank 0 image does not match the reference")
	}
	for r := 1; r < 3; r++ {
		if tiles[r].Valid {
			t.Errorf("rank %d should hold no image", r)
		}
	}
}

func TestComposite_SimpleGatherWriteBack(t *testing.T) {
	g := comm.NewLocalGroup(4)
	t.Cleanup(g.Close)

	var mu sync.Mutex
	tiles := map[int]types.RawImage{}
	err := g.Run(func(c comm.Controller) error {
		p, err := NewParallel(SimpleGather, c, Config{TileColumns: 2, TileRows: 2, WriteBack: true})
		if err != nil {
			return err
		}
		me := c.LocalProcessID()
		if err := p.Composite(captureFunc(func() (Partial, error) { return quadrantPartial(me), nil })); err != nil {
			return err
		}
		mu.Lock()
		tiles[me] = p.LastRenderedTile()
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	ref := quadrantReference()
	for r := range 4 {
		if !bytes.Equal(tiles[r].Pixels, ref.Pixels) {
			t.Errorf("rank %d: gathered image does not match the reference", r)
		}
	}
}

func TestComposite_DataReplicatedUsesLocalRender(t *testing.T) {
	// Every rank paints the whole viewport with its own colour; with
	// replicated data nothing is exchanged, so tile r is rank r's paint.
	partial := func(r int) Partial {
		img := types.NewRawImage(8, 6, 4)
		fill(img, 0, 0, 8, 6, quadrantColor(r))
		return Partial{Color: img}
	}
	cfg := Config{TileColumns: 2, TileRows: 2, DataReplicated: true}
	tiles, errs := runRanks(t, 4, sameConfig(cfg), partial)
	requireNoErrors(t, errs)

	for r, tile := range tiles {
		want := quadrantColor(r)
		if !bytes.Equal(tile.Pixels[:4], want[:]) {
			t.Errorf("rank %d: pixel = %v, want own colour %v", r, tile.Pixels[:4], want)
		}
	}
}

func TestComposite_MullionGapsAreZero(t *testing.T) {
	// 2x1 tiles of 4 pixels with a 2 pixel mullion: width 10.
	partial := func(int) Partial {
		img := types.NewRawImage(10, 2, 4)
		fill(img, 0, 0, 10, 2, [4]byte{9, 9, 9, 0xFF})
		return Partial{Color: img}
	}
	cfg := Config{TileColumns: 2, TileRows: 1, MullionX: 2, WriteBack: true}
	tiles, errs := runRanks(t, 2, sameConfig(cfg), partial)
	requireNoErrors(t, errs)

	img := tiles[0]
	for y := range 2 {
		for x := range 10 {
			px := img.Pixels[(y*10+x)*4 : (y*10+x)*4+4]
			gap := x == 4 || x == 5
			if gap && !bytes.Equal(px, []byte{0, 0, 0, 0}) {
				t.Errorf("gap pixel (%d,%d) = %v, want zero", x, y, px)
			}
			if !gap && !bytes.Equal(px, []byte{9, 9, 9, 0xFF}) {
				t.Errorf("tile pixel (%d,%d) = %v, want content", x, y, px)
			}
		}
	}
}

func TestComposite_ImageReduction(t *testing.T) {
	partial := func(int) Partial {
		img := types.NewRawImage(16, 16, 4)
		fill(img, 0, 0, 16, 16, [4]byte{200, 100, 50, 0xFF})
		return Partial{Color: img}
	}
	tiles, errs := runRanks(t, 2, sameConfig(Config{ReductionFactor: 4}), partial)
	requireNoErrors(t, errs)

	img := tiles[0]
	if img.Width != 16 || img.Height != 16 {
		t.Fatalf("result %dx%d, want full resolution 16x16", img.Width, img.Height)
	}
	for p := 0; p < len(img.Pixels); p += 4 {
		if !bytes.Equal(img.Pixels[p:p+4], []byte{200, 100, 50, 0xFF}) {
			t.Fatalf("pixel %d = %v, want flat colour preserved", p/4, img.Pixels[p:p+4])
		}
	}
}

func TestComposite_DepthNearestWins(t *testing.T) {
	partial := func(r int) Partial {
		img := types.NewRawImage(2, 1, 4)
		fill(img, 0, 0, 2, 1, quadrantColor(r))
		depth := []float32{0.5, 0.5}
		if r == 1 {
			depth[1] = 0.25 // nearer on pixel 1 only
		}
		return Partial{Color: img, Depth: depth}
	}
	tiles, errs := runRanks(t, 2, sameConfig(Config{}), partial)
	requireNoErrors(t, errs)

	c0, c1 := quadrantColor(0), quadrantColor(1)
	if got := tiles[0].Pixels[0:4]; !bytes.Equal(got, c0[:]) {
		t.Errorf("tie pixel = %v, want lower rank %v", got, c0)
	}
	if got := tiles[0].Pixels[4:8]; !bytes.Equal(got, c1[:]) {
		t.Errorf("nearer pixel = %v, want rank 1 %v", got, c1)
	}
}

func TestComposite_OrderedBlend(t *testing.T) {
	partial := func(r int) Partial {
		img := types.NewRawImage(1, 1, 4)
		if r == 0 {
			copy(img.Pixels, []byte{128, 0, 0, 128}) // half-transparent red
		} else {
			copy(img.Pixels, []byte{0, 0, 255, 255}) // opaque blue
		}
		return Partial{Color: img}
	}

	tests := []struct {
		order []int
		want  []byte
	}{
		{[]int{1, 0}, []byte{128, 0, 127, 255}},
		{[]int{0, 1}, []byte{0, 0, 255, 255}},
	}
	for _, tt := range tests {
		tiles, errs := runRanks(t, 2, sameConfig(Config{}), partial, WithOrdering(FixedOrdering(tt.order)))
		requireNoErrors(t, errs)
		if got := tiles[0].Pixels; !bytes.Equal(got, tt.want) {
			t.Errorf("order %v: pixel = %v, want %v", tt.order, got, tt.want)
		}
	}
}

func TestComposite_InconsistentTopologyFailsEveryRank(t *testing.T) {
	cfgFor := func(r int) Config {
		if r == 2 {
			return Config{ReductionFactor: 2}
		}
		return Config{}
	}
	_, errs := runRanks(t, 3, cfgFor, quadrantPartial)
	for r, err := range errs {
		if !errors.Is(err, ErrInconsistentTopology) {
			t.Errorf("rank %d: error = %v, want ErrInconsistentTopology", r, err)
		}
	}
}

func TestComposite_StateMachine(t *testing.T) {
	g := comm.NewLocalGroup(1)
	var states []State
	collector := metrics.NewCollector("server", "", "icet", "")
	p, err := NewParallel(IceTStyle, g.Rank(0), Config{},
		WithStateObserver(func(s State) { states = append(states, s) }),
		WithCollector(collector),
	)
	if err != nil {
		t.Fatalf("NewParallel failed: %v", err)
	}
	if p.State() != Idle {
		t.Errorf("initial state = %v, want idle", p.State())
	}

	capture := captureFunc(func() (Partial, error) { return Partial{Color: types.NewRawImage(2, 2, 3)}, nil })
	for range 2 {
		if err := p.Composite(capture); err != nil {
			t.Fatalf("Composite failed: %v", err)
		}
	}

	want := []State{Capturing, Compositing, Composited, Idle, Capturing, Compositing, Composited}
	if !slices.Equal(states, want) {
		t.Errorf("transitions = %v, want %v", states, want)
	}
	if got := collector.Snapshot().Composites; got != 2 {
		t.Errorf("Composites = %d, want 2", got)
	}
}

func TestComposite_CaptureErrorReturnsToIdle(t *testing.T) {
	p, err := NewParallel(IceTStyle, comm.NewLocalGroup(1).Rank(0), Config{})
	if err != nil {
		t.Fatalf("NewParallel failed: %v", err)
	}
	boom := errors.New("gpu lost")
	err = p.Composite(captureFunc(func() (Partial, error) { return Partial{}, boom }))
	if !errors.Is(err, boom) {
		t.Errorf("Composite error = %v, want %v", err, boom)
	}
	if p.State() != Idle {
		t.Errorf("state = %v, want idle", p.State())
	}
	if p.LastRenderedTile().Valid {
		t.Error("failed frame left a valid tile")
	}
}

func TestNewParallel_RejectsCaveKind(t *testing.T) {
	if _, err := NewParallel(CaveAdapterOnly, comm.NewLocalGroup(1).Rank(0), Config{}); !errors.Is(err, ErrKind) {
		t.Errorf("NewParallel(cave) error = %v, want ErrKind", err)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{IceTStyle, SimpleGather, CaveAdapterOnly} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("mpi"); !errors.Is(err, ErrKind) {
		t.Errorf("ParseKind(mpi) error = %v, want ErrKind", err)
	}
}
