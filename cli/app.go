// Package cli contains the freeman command line tool for inspecting a dataset.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/freeman/dataset"
)

// Flags.
const (
	flagConfig  = "config"
	flagRoot    = "root"
	flagFPS     = "fps"
	flagSplit   = "split"
	flagDebug   = "debug"
	flagPrefix  = "prefix"
	flagLimit   = "limit"
	flagOptim   = "optim"
	flagSmooth  = "smooth"
	flagProject = "project"
	flagKey     = "key"
	flagBBox    = "bbox"
	flagFrames  = "frames"
	flagAll     = "all"
	flagCameras = "cameras"
	flagOutput  = "output"
)

// NewApp returns the freeman app, writing to out.
func NewApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:            "freeman",
		Usage:           "inspect a FreeMan motion-capture dataset",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       out,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.PathFlag{
				Name:    flagRoot,
				EnvVars: []string{"FREEMAN_ROOT"},
				Usage:   "dataset root, overrides the config",
			},
			&cli.IntFlag{
				Name:  flagFPS,
				Value: 30,
				Usage: "frame rate directory to read, overrides the config",
			},
			&cli.StringFlag{
				Name:  flagSplit,
				Usage: "split to read: all, train, validation or test",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "sessions",
				Usage:  "list the sessions of the split",
				Action: SessionsAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagPrefix,
						Usage: "only list sessions containing `TEXT`",
					},
					&cli.IntFlag{
						Name:  flagLimit,
						Value: 10,
						Usage: "maximum sessions to list when filtering",
					},
				},
			},
			{
				Name:      "cameras",
				Usage:     "print the calibrated cameras of a session",
				ArgsUsage: "<session>",
				Action:    CamerasAction,
			},
			{
				Name:      "keypoints2d",
				Usage:     "describe the 2D keypoints of a session",
				ArgsUsage: "<session>",
				Action:    Keypoints2DAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagKey,
						Value: "keypoints2d",
						Usage: "container key holding the keypoints",
					},
					&cli.BoolFlag{
						Name:  flagBBox,
						Usage: "also load the session's bounding boxes",
					},
				},
			},
			{
				Name:      "keypoints3d",
				Usage:     "describe the 3D keypoints of a session",
				ArgsUsage: "<session>",
				Action:    Keypoints3DAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagOptim,
						Usage: "use the optimized keypoints; --optim=false to choose by --smooth",
						Value: dataset.DefaultKeypoints3DOptions().UseOptim,
					},
					&cli.BoolFlag{
						Name:  flagSmooth,
						Usage: "use smoothed keypoints, falling back to optimized; --smooth=false for raw triangulation",
						Value: dataset.DefaultKeypoints3DOptions().UseSmooth,
					},
					&cli.BoolFlag{
						Name:  flagProject,
						Usage: "project the first frame into every camera",
					},
				},
			},
			{
				Name:      "motion",
				Usage:     "describe the SMPL motion of a session",
				ArgsUsage: "<session>",
				Action:    MotionAction,
			},
			{
				Name:      "frames",
				Usage:     "extract video frames of a session as PNG files",
				ArgsUsage: "<session>",
				Action:    FramesAction,
				Flags: []cli.Flag{
					&cli.IntSliceFlag{
						Name:  flagFrames,
						Usage: "frame indices to extract",
					},
					&cli.BoolFlag{
						Name:  flagAll,
						Usage: "extract every frame",
					},
					&cli.IntSliceFlag{
						Name:  flagCameras,
						Value: cli.NewIntSlice(1, 2, 3, 4, 5, 6, 7, 8),
						Usage: "cameras to read, 1 to 8",
					},
					&cli.PathFlag{
						Name:     flagOutput,
						Aliases:  []string{"o"},
						Required: true,
						Usage:    "output `DIR` for the frames",
					},
				},
			},
		},
	}
}
