package calibration

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Builder is the calibration collaborator the camera loader constructs cameras through.
type Builder interface {
	BuildCamera(
		name string,
		size [2]int,
		matrix *mat.Dense,
		rotation, translation r3.Vector,
		distortion []float64,
	) (*Camera, error)
	BuildGroup(cameras []*Camera) (*CameraGroup, error)
}

// DefaultBuilder builds cameras as given, copying every slice and matrix so that the result
// shares nothing with the caller.
type DefaultBuilder struct{}

// BuildCamera implements Builder.
func (DefaultBuilder) BuildCamera(
	name string,
	size [2]int,
	matrix *mat.Dense,
	rotation, translation r3.Vector,
	distortion []float64,
) (*Camera, error) {
	if matrix == nil {
		return nil, errors.Errorf("camera %q has no matrix", name)
	}
	if r, c := matrix.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("camera %q matrix must be 3x3, got %dx%d", name, r, c)
	}
	return &Camera{
		Name:        name,
		Size:        size,
		Matrix:      mat.DenseCopyOf(matrix),
		Rotation:    rotation,
		Translation: translation,
		Distortion:  append([]float64{}, distortion...),
	}, nil
}

// BuildGroup implements Builder.
func (DefaultBuilder) BuildGroup(cameras []*Camera) (*CameraGroup, error) {
	for i, cam := range cameras {
		if cam == nil {
			return nil, errors.Errorf("camera %d is nil", i)
		}
	}
	return &CameraGroup{cameras: append([]*Camera{}, cameras...)}, nil
}

// CameraGroup is the ordered set of cameras recorded for one session.
type CameraGroup struct {
	cameras []*Camera
}

// Len is the number of cameras.
func (g *CameraGroup) Len() int {
	return len(g.cameras)
}

// Cameras returns the cameras in load order.
func (g *CameraGroup) Cameras() []*Camera {
	return append([]*Camera{}, g.cameras...)
}

// Camera returns the i-th camera.
func (g *CameraGroup) Camera(i int) *Camera {
	return g.cameras[i]
}

// Names lists camera names in load order.
func (g *CameraGroup) Names() []string {
	names := make([]string, 0, len(g.cameras))
	for _, cam := range g.cameras {
		names = append(names, cam.Name)
	}
	return names
}

// ByName finds the first camera with the given name.
func (g *CameraGroup) ByName(name string) (*Camera, bool) {
	for _, cam := range g.cameras {
		if cam.Name == name {
			return cam, true
		}
	}
	return nil, false
}

// Project maps one world point into every view, in camera order.
func (g *CameraGroup) Project(p r3.Vector) ([]r2.Point, error) {
	out := make([]r2.Point, 0, len(g.cameras))
	for _, cam := range g.cameras {
		px, err := cam.Project(p)
		if err != nil {
			return nil, err
		}
		out = append(out, px)
	}
	return out, nil
}

// String prints a table of each camera with its size, focal lengths, principal point and pose.
func (g *CameraGroup) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Size", "Focal", "Principal", "Rotation", "Translation"})
	for i, cam := range g.cameras {
		focal, principal := "", ""
		if in, err := cam.Intrinsics(); err == nil {
			focal = fmt.Sprintf("%.1f, %.1f", in.Fx, in.Fy)
			principal = fmt.Sprintf("%.1f, %.1f", in.Ppx, in.Ppy)
		}
		t.AppendRow(table.Row{
			i + 1,
			cam.Name,
			fmt.Sprintf("%dx%d", cam.Size[0], cam.Size[1]),
			focal,
			principal,
			fmt.Sprintf("%.3f, %.3f, %.3f", cam.Rotation.X, cam.Rotation.Y, cam.Rotation.Z),
			fmt.Sprintf("%.1f, %.1f, %.1f", cam.Translation.X, cam.Translation.Y, cam.Translation.Z),
		})
	}
	return t.Render()
}
