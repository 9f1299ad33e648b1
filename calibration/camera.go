package calibration

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Camera is one calibrated view. Rotation is a Rodrigues vector (axis scaled by angle in
// radians) taking world points into the camera frame before Translation is added.
type Camera struct {
	Name        string
	Size        [2]int
	Matrix      *mat.Dense
	Rotation    r3.Vector
	Translation r3.Vector
	Distortion  []float64
}

// Intrinsics returns the pinhole parameters held in the camera matrix. A camera without a
// positive focal length or image size fails with ErrNoIntrinsics.
func (c *Camera) Intrinsics() (*PinholeCameraIntrinsics, error) {
	intrinsics, err := IntrinsicsFromMatrix(c.Matrix, c.Size)
	if err != nil {
		return nil, err
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, errors.Wrapf(err, "camera %q", c.Name)
	}
	return intrinsics, nil
}

// Distorter returns the lens model for the camera's distortion coefficients.
func (c *Camera) Distorter() (*BrownConrady, error) {
	return NewBrownConrady(c.Distortion)
}

// Orientation converts the Rodrigues rotation into a unit quaternion.
func (c *Camera) Orientation() quat.Number {
	return rodriguesToQuat(c.Rotation)
}

// WorldToCamera moves a world point into the camera frame.
func (c *Camera) WorldToCamera(p r3.Vector) r3.Vector {
	return rotate(c.Orientation(), p).Add(c.Translation)
}

// Project maps a world point to distorted pixel coordinates. It fails for points on or
// behind the camera plane.
func (c *Camera) Project(p r3.Vector) (r2.Point, error) {
	intrinsics, err := c.Intrinsics()
	if err != nil {
		return r2.Point{}, err
	}
	distorter, err := c.Distorter()
	if err != nil {
		return r2.Point{}, err
	}
	pc := c.WorldToCamera(p)
	if pc.Z <= 0 {
		return r2.Point{}, errors.Errorf("point %v is behind camera %q", p, c.Name)
	}
	xd, yd := distorter.Transform(pc.X/pc.Z, pc.Y/pc.Z)
	u, v := intrinsics.NormalizedToPixel(xd, yd)
	return r2.Point{X: u, Y: v}, nil
}

// rodriguesToQuat follows the R3 -> R4 axis-angle -> quaternion route.
func rodriguesToQuat(rv r3.Vector) quat.Number {
	theta := rv.Norm()
	if theta == 0 {
		return quat.Number{Real: 1}
	}
	axis := rv.Mul(1 / theta)
	sinA := math.Sin(theta / 2)
	return quat.Number{Real: math.Cos(theta / 2), Imag: axis.X * sinA, Jmag: axis.Y * sinA, Kmag: axis.Z * sinA}
}

func rotate(q quat.Number, p r3.Vector) r3.Vector {
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: p.X, Jmag: p.Y, Kmag: p.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}
