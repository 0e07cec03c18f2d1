package viewport

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"layer-anything/pkg/geometry"
)

// Estimate recovers a Transform from observed point correspondences using
// least squares. imagePts[i] is expected to map near canvasPts[i] under the
// returned transform. At least two pairs are required.
func Estimate(imagePts, canvasPts []geometry.Point2D) (Transform, error) {
	if len(imagePts) != len(canvasPts) {
		return Transform{}, fmt.Errorf("viewport: point count mismatch: %d vs %d", len(imagePts), len(canvasPts))
	}
	n := len(imagePts)
	if n < 2 {
		return Transform{}, fmt.Errorf("viewport: need at least 2 point pairs, got %d", n)
	}

	// Overdetermined system for [scale, offsetX, offsetY]:
	//   ix*s + ox = cx
	//   iy*s + oy = cy
	A := mat.NewDense(n*2, 3, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		A.Set(i*2, 0, imagePts[i].X)
		A.Set(i*2, 1, 1)
		B.SetVec(i*2, canvasPts[i].X)

		A.Set(i*2+1, 0, imagePts[i].Y)
		A.Set(i*2+1, 2, 1)
		B.SetVec(i*2+1, canvasPts[i].Y)
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return Transform{}, fmt.Errorf("viewport: estimate failed: %w", err)
	}

	t := Transform{
		Scale:   params.AtVec(0),
		OffsetX: params.AtVec(1),
		OffsetY: params.AtVec(2),
	}
	if t.Scale <= 0 {
		return Transform{}, fmt.Errorf("viewport: degenerate point set, estimated scale %g", t.Scale)
	}
	return t, nil
}
