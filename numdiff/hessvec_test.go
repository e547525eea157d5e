package numdiff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/boxopt/box"
)

// quad is 𝒇(𝐱) = ½𝐱ᵀ𝐀𝐱 with a dense row-major 𝐀.
type quad struct {
	n int
	a []float64
}

func (q quad) Evaluate(x []float64) float64 {
	panic("not used")
}

func (q quad) Gradient(x, g []float64) {
	for i := 0; i < q.n; i++ {
		g[i] = 0
		for j := 0; j < q.n; j++ {
			g[i] += q.a[i*q.n+j] * x[j]
		}
	}
}

func (q quad) mul(d []float64) []float64 {
	y := make([]float64, q.n)
	q.Gradient(d, y)
	return y
}

func TestHessVec(t *testing.T) {

	q := quad{3, []float64{
		4, 1, 0,
		1, 3, -1,
		0, -1, 2,
	}}

	x := []float64{0.3, -1.2, 2.5}
	d := []float64{1, -2, 0.5}
	dst := make([]float64, 3)

	HessVec(q, x, d, dst)
	if !relativeEqual(dst, q.mul(d), 1e-6) {
		t.Fatalf("unexpected hessian product %v", dst)
	}

	HessVec(q, x, []float64{0, 0, 0}, dst)
	assert.Equal(t, []float64{0, 0, 0}, dst)
}

func TestProjectedHessVec(t *testing.T) {

	q := quad{3, []float64{
		4, 1, 0,
		1, 3, -1,
		0, -1, 2,
	}}

	b, err := box.FromSlices([]float64{0, -2, 0}, []float64{1, 2, 3})
	require.NoError(t, err)

	// x₀ sits on its lower bound
	x := []float64{0, 0.5, 1}
	d := []float64{1, -2, 0.5}
	dst := make([]float64, 3)

	ProjectedHessVec(q, b, x, d, dst)

	want := q.mul([]float64{0, -2, 0.5})
	want[0] = d[0]
	assert.InDeltaSlice(t, want, dst, 1e-6)

	// without active variables it equals the plain product
	x = []float64{0.5, 0.5, 1}
	ProjectedHessVec(q, b, x, d, dst)
	if diff := cmp.Diff(q.mul(d), dst, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Fatalf("free product mismatch (-want +got):\n%s", diff)
	}

	// with every variable active the reduced hessian is the identity
	x = []float64{1, 2, 0}
	ProjectedHessVec(q, b, x, d, dst)
	assert.Equal(t, d, dst)
}
