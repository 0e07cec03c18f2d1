package segment

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"layer-anything/pkg/geometry"
)

// extractForeground converts a GrabCut label mask into a binary
// foreground mask: definite (1) and probable (3) foreground become
// white.
func extractForeground(mask gocv.Mat) gocv.Mat {
	definite := gocv.NewMat()
	one := gocv.NewMatFromScalar(gocv.Scalar{Val1: 1}, gocv.MatTypeCV8U)
	defer one.Close()
	gocv.Compare(mask, one, &definite, gocv.CompareEQ)

	probable := gocv.NewMat()
	defer probable.Close()
	three := gocv.NewMatFromScalar(gocv.Scalar{Val1: 3}, gocv.MatTypeCV8U)
	defer three.Close()
	gocv.Compare(mask, three, &probable, gocv.CompareEQ)

	combined := gocv.NewMat()
	gocv.BitwiseOr(definite, probable, &combined)
	definite.Close()

	return combined
}

// morphologyOptimize removes speckles and fills small holes with an
// open/close pass.
func morphologyOptimize(mask gocv.Mat, kernelSize int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	opened := gocv.NewMat()
	gocv.MorphologyEx(mask, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)
	opened.Close()

	return closed
}

// refineEdges smooths the mask boundary with a dilate, blur, and
// re-threshold pass.
func refineEdges(mask gocv.Mat) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 2, Y: 2})
	defer kernel.Close()

	dilated := gocv.NewMat()
	gocv.Dilate(mask, &dilated, kernel)

	blurred := gocv.NewMat()
	gocv.GaussianBlur(dilated, &blurred, image.Point{X: 3, Y: 3}, 0, 0, gocv.BorderDefault)
	dilated.Close()

	final := gocv.NewMat()
	gocv.Threshold(blurred, &final, 127, 255, gocv.ThresholdBinary)
	blurred.Close()

	return final
}

// keepLargest keeps only the largest connected region of the mask.
func keepLargest(mask gocv.Mat) gocv.Mat {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return mask.Clone()
	}

	maxArea := 0.0
	maxIndex := 0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > maxArea {
			maxArea = area
			maxIndex = i
		}
	}

	largest := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8U)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.DrawContours(&largest, contours, maxIndex, white, -1)

	return largest
}

// maskBounds returns the union of all contour bounding boxes.
func maskBounds(mask gocv.Mat) geometry.RectInt {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return geometry.RectInt{}
	}

	union := gocv.BoundingRect(contours.At(0))
	for i := 1; i < contours.Size(); i++ {
		union = union.Union(gocv.BoundingRect(contours.At(i)))
	}

	return geometry.RectInt{
		X:      union.Min.X,
		Y:      union.Min.Y,
		Width:  union.Dx(),
		Height: union.Dy(),
	}
}
