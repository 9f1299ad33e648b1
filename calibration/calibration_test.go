package calibration

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func testMatrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1000, 0, 960,
		0, 1000, 540,
		0, 0, 1,
	})
}

func TestBuildCameraCopies(t *testing.T) {
	k := testMatrix()
	dist := []float64{0.1, 0, 0, 0, 0}
	cam, err := DefaultBuilder{}.BuildCamera("c01", [2]int{1920, 1080}, k, r3.Vector{X: 0.1}, r3.Vector{Z: 2}, dist)
	test.That(t, err, test.ShouldBeNil)

	k.Set(0, 0, 1)
	dist[0] = 9
	test.That(t, cam.Matrix.At(0, 0), test.ShouldEqual, 1000.0)
	test.That(t, cam.Distortion[0], test.ShouldEqual, 0.1)
	test.That(t, cam.Rotation, test.ShouldResemble, r3.Vector{X: 0.1})
	test.That(t, cam.Translation, test.ShouldResemble, r3.Vector{Z: 2})

	_, err = DefaultBuilder{}.BuildCamera("bad", [2]int{1, 1}, mat.NewDense(2, 2, nil), r3.Vector{}, r3.Vector{}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "3x3")
	_, err = DefaultBuilder{}.BuildCamera("nil", [2]int{1, 1}, nil, r3.Vector{}, r3.Vector{}, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGroup(t *testing.T) {
	var cams []*Camera
	for _, name := range []string{"c02", "c01", "c03"} {
		cam, err := DefaultBuilder{}.BuildCamera(name, [2]int{1920, 1080}, testMatrix(), r3.Vector{}, r3.Vector{}, nil)
		test.That(t, err, test.ShouldBeNil)
		cams = append(cams, cam)
	}
	group, err := DefaultBuilder{}.BuildGroup(cams)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, group.Len(), test.ShouldEqual, 3)
	test.That(t, group.Names(), test.ShouldResemble, []string{"c02", "c01", "c03"})
	test.That(t, group.Camera(1).Name, test.ShouldEqual, "c01")

	cam, ok := group.ByName("c03")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cam, test.ShouldEqual, cams[2])
	_, ok = group.ByName("c09")
	test.That(t, ok, test.ShouldBeFalse)

	// mutating the returned slice leaves the group alone
	got := group.Cameras()
	got[0] = nil
	test.That(t, group.Camera(0), test.ShouldNotBeNil)

	pixels, err := group.Project(r3.Vector{Z: 5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pixels, test.ShouldHaveLength, 3)

	test.That(t, group.String(), test.ShouldContainSubstring, "c03")

	_, err = DefaultBuilder{}.BuildGroup([]*Camera{cams[0], nil})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProject(t *testing.T) {
	cam, err := DefaultBuilder{}.BuildCamera("c01", [2]int{1920, 1080}, testMatrix(), r3.Vector{}, r3.Vector{}, nil)
	test.That(t, err, test.ShouldBeNil)

	px, err := cam.Project(r3.Vector{Z: 10})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, px.X, test.ShouldAlmostEqual, 960)
	test.That(t, px.Y, test.ShouldAlmostEqual, 540)

	// a quarter turn about z takes +x onto +y
	cam.Rotation = r3.Vector{Z: math.Pi / 2}
	px, err = cam.Project(r3.Vector{X: 1, Z: 10})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, px.X, test.ShouldAlmostEqual, 960)
	test.That(t, px.Y, test.ShouldAlmostEqual, 640)

	cam.Rotation = r3.Vector{}
	cam.Translation = r3.Vector{Z: -20}
	_, err = cam.Project(r3.Vector{Z: 10})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProjectRejectsInvalidIntrinsics(t *testing.T) {
	zeroFocal := testMatrix()
	zeroFocal.Set(0, 0, 0)
	cam, err := DefaultBuilder{}.BuildCamera("c01", [2]int{1920, 1080}, zeroFocal, r3.Vector{}, r3.Vector{}, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = cam.Project(r3.Vector{Z: 10})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Fx")

	cam, err = DefaultBuilder{}.BuildCamera("c02", [2]int{0, 0}, testMatrix(), r3.Vector{}, r3.Vector{}, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = cam.Intrinsics()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "c02")

	group, err := DefaultBuilder{}.BuildGroup([]*Camera{cam})
	test.That(t, err, test.ShouldBeNil)
	_, err = group.Project(r3.Vector{Z: 10})
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestBrownConrady(t *testing.T) {
	bc, err := NewBrownConrady([]float64{0.1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bc.Parameters(), test.ShouldResemble, []float64{0.1, 0, 0, 0, 0})

	x, y := bc.Transform(0.5, 0)
	test.That(t, x, test.ShouldAlmostEqual, 0.5125)
	test.That(t, y, test.ShouldAlmostEqual, 0)

	tangential := &BrownConrady{TangentialP1: 0.01}
	x, y = tangential.Transform(0, 0.5)
	test.That(t, x, test.ShouldAlmostEqual, 0)
	test.That(t, y, test.ShouldAlmostEqual, 0.5+0.01*0.75)

	var none *BrownConrady
	x, y = none.Transform(0.3, 0.4)
	test.That(t, x, test.ShouldEqual, 0.3)
	test.That(t, y, test.ShouldEqual, 0.4)

	_, err = NewBrownConrady([]float64{1, 2, 3, 4, 5, 6})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestIntrinsics(t *testing.T) {
	in, err := IntrinsicsFromMatrix(testMatrix(), [2]int{1920, 1080})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, in.CheckValid(), test.ShouldBeNil)
	test.That(t, in.Fx, test.ShouldEqual, 1000.0)
	test.That(t, in.Ppy, test.ShouldEqual, 540.0)

	x, y := in.NormalizedToPixel(0.1, -0.1)
	test.That(t, x, test.ShouldAlmostEqual, 1060)
	test.That(t, y, test.ShouldAlmostEqual, 440)

	in.Width = 0
	test.That(t, in.CheckValid(), test.ShouldNotBeNil)
	var missing *PinholeCameraIntrinsics
	test.That(t, missing.CheckValid(), test.ShouldNotBeNil)

	_, err = IntrinsicsFromMatrix(nil, [2]int{1, 1})
	test.That(t, err, test.ShouldNotBeNil)
}
