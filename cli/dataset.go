package cli

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/freeman/dataset"
	"go.viam.com/freeman/ndarray"
)

// SessionsAction lists the sessions of the split, optionally filtered by --prefix.
func SessionsAction(cCtx *cli.Context) error {
	ds, _, logger, err := openDataset(cCtx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	sessions := ds.Registry().Sessions()
	if cCtx.IsSet(flagPrefix) {
		sessions = ds.Registry().ChildrenOf(cCtx.String(flagPrefix), cCtx.Int(flagLimit))
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Session"})
	for i, s := range sessions {
		t.AppendRow(table.Row{i, s})
	}
	printf(cCtx.App.Writer, "%d of %d %s sessions", len(sessions), ds.Registry().Len(), ds.Registry().Split())
	printf(cCtx.App.Writer, "%s", t.Render())
	return nil
}

// CamerasAction prints the calibrated cameras of a session.
func CamerasAction(cCtx *cli.Context) error {
	session, err := sessionArg(cCtx)
	if err != nil {
		return err
	}
	ds, _, logger, err := openDataset(cCtx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	group, _, err := ds.LoadCameraGroup(session)
	if err != nil {
		return errors.Wrap(err, "could not load cameras")
	}
	printf(cCtx.App.Writer, "%s", group.String())
	return nil
}

// Keypoints2DAction describes the 2D keypoints of a session.
func Keypoints2DAction(cCtx *cli.Context) error {
	session, err := sessionArg(cCtx)
	if err != nil {
		return err
	}
	ds, _, logger, err := openDataset(cCtx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	opts := dataset.Keypoints2DOptions{Key: cCtx.String(flagKey)}
	if cCtx.Bool(flagBBox) {
		opts.BBoxDir = ds.Layout().Dir(dataset.KindBBox2D)
	}
	kp, err := ds.LoadKeypoints2D(session, opts)
	if err != nil {
		return errors.Wrap(err, "could not load 2D keypoints")
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Shape"})
	t.AppendRow(table.Row{opts.Key, shapeOf(kp.Keypoints)})
	t.AppendRow(table.Row{"center", shapeOf(kp.Center)})
	t.AppendRow(table.Row{"scale", shapeOf(kp.Scale)})
	t.AppendRow(table.Row{"bbox", shapeOf(kp.BBox)})
	printf(cCtx.App.Writer, "%s", t.Render())

	if conf := confidences(kp.Keypoints); len(conf) > 0 {
		mean, err := stats.Mean(conf)
		if err != nil {
			return err
		}
		sd, err := stats.StandardDeviation(conf)
		if err != nil {
			return err
		}
		low, err := stats.Min(conf)
		if err != nil {
			return err
		}
		printf(cCtx.App.Writer, "confidence mean %.3f, std %.3f, min %.3f over %d keypoints", mean, sd, low, len(conf))
	}
	return nil
}

// confidences collects the last channel of (..., 3) keypoints.
func confidences(kp *ndarray.Array) stats.Float64Data {
	if kp == nil || kp.NDim() == 0 || kp.Shape[kp.NDim()-1] != 3 {
		return nil
	}
	conf := make(stats.Float64Data, 0, len(kp.Data)/3)
	for i := 2; i < len(kp.Data); i += 3 {
		conf = append(conf, kp.Data[i])
	}
	return conf
}

// Keypoints3DAction describes the 3D keypoints of a session and, with --project, projects
// the joints of the first frame into every camera.
func Keypoints3DAction(cCtx *cli.Context) error {
	session, err := sessionArg(cCtx)
	if err != nil {
		return err
	}
	ds, _, logger, err := openDataset(cCtx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	kp, err := ds.LoadKeypoints3DWith(session, dataset.Keypoints3DOptions{
		UseOptim:  cCtx.Bool(flagOptim),
		UseSmooth: cCtx.Bool(flagSmooth),
	})
	if err != nil {
		return errors.Wrap(err, "could not load 3D keypoints")
	}
	printf(cCtx.App.Writer, "variant %s, shape %s, %d frames", kp.Variant, shapeOf(kp.Points), kp.NumFrames())
	if !cCtx.Bool(flagProject) {
		return nil
	}

	group, _, err := ds.LoadCameraGroup(session)
	if err != nil {
		return errors.Wrap(err, "could not load cameras")
	}
	if kp.Points.NDim() != 3 || kp.Points.Shape[2] != 3 {
		return errors.Errorf("expected (frames, joints, 3) keypoints, got %v", kp.Points.Shape)
	}
	header := table.Row{"Joint"}
	for _, name := range group.Names() {
		header = append(header, name)
	}
	t := table.NewWriter()
	t.AppendHeader(header)
	for j := 0; j < kp.Points.Shape[1]; j++ {
		var p r3.Vector
		for axis, dst := range []*float64{&p.X, &p.Y, &p.Z} {
			if *dst, err = kp.Points.At(0, j, axis); err != nil {
				return err
			}
		}
		row := table.Row{j}
		pixels, err := group.Project(p)
		if err != nil {
			row = append(row, err.Error())
		} else {
			for _, px := range pixels {
				row = append(row, fmt.Sprintf("(%.1f, %.1f)", px.X, px.Y))
			}
		}
		t.AppendRow(row)
	}
	printf(cCtx.App.Writer, "%s", t.Render())
	return nil
}

// MotionAction describes the SMPL motion of a session.
func MotionAction(cCtx *cli.Context) error {
	session, err := sessionArg(cCtx)
	if err != nil {
		return err
	}
	ds, _, logger, err := openDataset(cCtx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	motion, err := ds.LoadMotion(session)
	if err != nil {
		return errors.Wrap(err, "could not load motion")
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Shape"})
	t.AppendRow(table.Row{"smpl_poses", shapeOf(motion.Poses)})
	t.AppendRow(table.Row{"smpl_scaling", shapeOf(motion.Scaling)})
	t.AppendRow(table.Row{"smpl_transl", shapeOf(motion.Translation)})
	printf(cCtx.App.Writer, "%d frames", motion.NumFrames())
	printf(cCtx.App.Writer, "%s", t.Render())
	return nil
}
