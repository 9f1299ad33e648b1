package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"go.viam.com/freeman/dataset"
	"go.viam.com/freeman/logging"
	"go.viam.com/freeman/video"
)

// newVideoBackend builds the backend FramesAction samples through.
var newVideoBackend = func(attrs *video.FFmpegAttrs, logger logging.Logger) (video.Backend, error) {
	return video.NewFFmpegBackend(attrs, logger)
}

// FramesAction samples frames of one session from each requested camera in parallel and writes
// them to {output}/{camera}/{frame}.png.
func FramesAction(cCtx *cli.Context) error {
	session, err := sessionArg(cCtx)
	if err != nil {
		return err
	}
	var sel video.FrameSelection
	switch {
	case cCtx.Bool(flagAll):
		sel = video.AllAvailable()
	case len(cCtx.IntSlice(flagFrames)) > 0:
		sel = video.Indices(cCtx.IntSlice(flagFrames)...)
	default:
		return errors.Errorf("one of --%s or --%s is required", flagFrames, flagAll)
	}
	cams := cCtx.IntSlice(flagCameras)
	for _, cam := range cams {
		if err := dataset.ValidateCamera(cam); err != nil {
			return err
		}
	}

	ds, cfg, logger, err := openDataset(cCtx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	attrs, err := cfg.VideoAttrs()
	if err != nil {
		return err
	}
	backend, err := newVideoBackend(attrs, logger.Sublogger("ffmpeg"))
	if err != nil {
		return errors.Wrap(err, "could not start the video backend")
	}
	sampler := video.NewSampler(backend, logger.Sublogger("video"))
	out := cCtx.Path(flagOutput)
	written := make([]int, len(cams))

	g, ctx := errgroup.WithContext(cCtx.Context)
	for i, cam := range cams {
		i, cam := i, cam
		g.Go(func() error {
			path, err := ds.VideoPath(session, cam)
			if err != nil {
				var notFound *dataset.ResourceNotFoundError
				if errors.As(err, &notFound) {
					logger.Warnw("video missing, skipping camera", "session", session, "camera", cam)
					return nil
				}
				return err
			}
			frames, err := sampler.Sample(ctx, path, sel, video.WithTargetFPS(float64(cfg.FPS)))
			if err != nil {
				return errors.Wrapf(err, "camera %d", cam)
			}
			dir := filepath.Join(out, dataset.Views[cam-1])
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return err
			}
			ids := sel.Frames()
			for n, frame := range frames {
				id := n
				if !sel.IsAll() {
					id = ids[n]
				}
				if err := imaging.Save(frame, filepath.Join(dir, fmt.Sprintf("%06d.png", id))); err != nil {
					return errors.Wrapf(err, "camera %d frame %d", cam, id)
				}
			}
			written[i] = len(frames)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, cam := range cams {
		printf(cCtx.App.Writer, "%s: %d frames", dataset.Views[cam-1], written[i])
	}
	return nil
}
