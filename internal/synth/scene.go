package synth

import (
	"math/rand/v2"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"gonum.org/v1/gonum/mat"
)

// Generator produces reproducible scenes from a seed.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.rng.Float64()
}

// Points returns n points in a box in front of the origin camera.
func (g *Generator) Points(n int) []Point3 {
	pts := make([]Point3, n)
	for i := range pts {
		pts[i] = Point3{g.uniform(-1, 1), g.uniform(-1, 1), g.uniform(4, 8)}
	}
	return pts
}

// TwoView is a stereo scene.
type TwoView struct {
	Cam1, Cam2 Camera
	Points     []Point3
	Pairs      []geo.AssociatedPair
	// F is the true fundamental matrix K2⁻ᵀ·[t]ₓ·R·K1⁻¹.
	F *mat.Dense
	// E is the true essential matrix [t]ₓ·R.
	E *mat.Dense
}

// TwoView returns n pairs seen by two cameras. With calibrated set the
// observations are in normalized camera coordinates (K = I).
func (g *Generator) TwoView(n int, calibrated bool) *TwoView {
	k := Intrinsics(500, 320, 240)
	if calibrated {
		k = Identity()
	}
	cam1 := NewCamera(k, [3]float64{}, geo.Vec3{})
	cam2 := NewCamera(k,
		[3]float64{g.uniform(-0.1, 0.1), g.uniform(-0.2, 0.2), g.uniform(-0.1, 0.1)},
		geo.Vec3{X: g.uniform(-1, -0.5), Y: g.uniform(-0.2, 0.2), Z: g.uniform(-0.1, 0.1)},
	)

	tv := &TwoView{Cam1: cam1, Cam2: cam2, Points: g.Points(n)}
	for _, x := range tv.Points {
		tv.Pairs = append(tv.Pairs, geo.AssociatedPair{
			P1: cam1.Project(x).Point(),
			P2: cam2.Project(x).Point(),
		})
	}

	tv.E = mat.NewDense(3, 3, nil)
	tv.E.Mul(geo.Skew(cam2.T), cam2.R)

	var k1inv, k2inv mat.Dense
	_ = k1inv.Inverse(cam1.K)
	_ = k2inv.Inverse(cam2.K)
	var tmp mat.Dense
	tmp.Mul(k2inv.T(), tv.E)
	tv.F = mat.NewDense(3, 3, nil)
	tv.F.Mul(&tmp, &k1inv)
	return tv
}

// ThreeView is a three camera scene. P2 and P3 are the cameras in the
// canonical frame where the first camera is [I | 0].
type ThreeView struct {
	Cams    [3]Camera
	Points  []Point3
	Triples []geo.AssociatedTriple
	P2, P3  *mat.Dense
}

// ThreeView returns n triples seen by three cameras.
func (g *Generator) ThreeView(n int, calibrated bool) *ThreeView {
	k := Intrinsics(500, 320, 240)
	if calibrated {
		k = Identity()
	}
	tv := &ThreeView{Points: g.Points(n)}
	tv.Cams[0] = NewCamera(k, [3]float64{}, geo.Vec3{})
	tv.Cams[1] = NewCamera(k,
		[3]float64{g.uniform(-0.1, 0.1), g.uniform(-0.2, 0.2), g.uniform(-0.1, 0.1)},
		geo.Vec3{X: g.uniform(-1, -0.5), Y: g.uniform(-0.2, 0.2), Z: g.uniform(-0.1, 0.1)},
	)
	tv.Cams[2] = NewCamera(k,
		[3]float64{g.uniform(-0.1, 0.1), g.uniform(-0.2, 0.2), g.uniform(-0.1, 0.1)},
		geo.Vec3{X: g.uniform(0.5, 1), Y: g.uniform(-0.3, 0.3), Z: g.uniform(-0.1, 0.1)},
	)
	for _, x := range tv.Points {
		tv.Triples = append(tv.Triples, geo.AssociatedTriple{
			P1: tv.Cams[0].Project(x).Point(),
			P2: tv.Cams[1].Project(x).Point(),
			P3: tv.Cams[2].Project(x).Point(),
		})
	}
	tv.P2 = canonical(tv.Cams[1], k)
	tv.P3 = canonical(tv.Cams[2], k)
	return tv
}

// canonical expresses c in the frame where K·[I | 0] becomes [I | 0]:
// P' = [K·R·K⁻¹ | K·t].
func canonical(c Camera, k1 *mat.Dense) *mat.Dense {
	var k1inv mat.Dense
	_ = k1inv.Inverse(k1)
	var kr, krk mat.Dense
	kr.Mul(c.K, c.R)
	krk.Mul(&kr, &k1inv)
	kt := geo.MulVec(c.K, c.T)

	p := mat.NewDense(3, 4, nil)
	p.Slice(0, 3, 0, 3).(*mat.Dense).Copy(&krk)
	p.Set(0, 3, kt.X)
	p.Set(1, 3, kt.Y)
	p.Set(2, 3, kt.Z)
	return p
}

// Planar is a plane induced homography with point and line correspondences.
type Planar struct {
	H     *mat.Dense
	Pairs []geo.AssociatedPair
	Lines []geo.PairLineNorm
}

// Planar returns n point pairs related by a random homography, plus the
// lines through consecutive points. Lines map as l2 = H⁻ᵀ·l1.
func (g *Generator) Planar(n int) *Planar {
	h := mat.NewDense(3, 3, []float64{
		1 + g.uniform(-0.1, 0.1), g.uniform(-0.1, 0.1), g.uniform(-20, 20),
		g.uniform(-0.1, 0.1), 1 + g.uniform(-0.1, 0.1), g.uniform(-20, 20),
		g.uniform(-1e-4, 1e-4), g.uniform(-1e-4, 1e-4), 1,
	})
	pl := &Planar{H: h}
	for range n {
		p1 := geo.Point2{X: g.uniform(0, 640), Y: g.uniform(0, 480)}
		pl.Pairs = append(pl.Pairs, geo.AssociatedPair{
			P1: p1,
			P2: geo.MulVec(h, p1.Homogeneous()).Point(),
		})
	}

	var hinv mat.Dense
	_ = hinv.Inverse(h)
	for i := 0; i+1 < len(pl.Pairs); i++ {
		l1 := pl.Pairs[i].P1.Homogeneous().Cross(pl.Pairs[i+1].P1.Homogeneous())
		pl.Lines = append(pl.Lines, geo.PairLineNorm{L1: l1, L2: geo.MulVec(hinv.T(), l1)})
	}
	return pl
}

// AddNoise returns a copy of pairs with Gaussian noise of deviation sigma
// added to the second view.
func (g *Generator) AddNoise(pairs []geo.AssociatedPair, sigma float64) []geo.AssociatedPair {
	out := make([]geo.AssociatedPair, len(pairs))
	for i, p := range pairs {
		p.P2.X += sigma * g.rng.NormFloat64()
		p.P2.Y += sigma * g.rng.NormFloat64()
		out[i] = p
	}
	return out
}
