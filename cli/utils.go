package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/freeman/config"
	"go.viam.com/freeman/dataset"
	"go.viam.com/freeman/logging"
	"go.viam.com/freeman/ndarray"
)

// printf prints a message with a newline.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// loadConfig merges the config file, when given, with the global flags. Flags win.
func loadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg := &config.Config{FPS: config.DefaultFPS}
	if path := cCtx.Path(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, err
		}
	}
	if cCtx.IsSet(flagRoot) {
		cfg.Root = cCtx.Path(flagRoot)
	}
	if cCtx.IsSet(flagFPS) {
		cfg.FPS = cCtx.Int(flagFPS)
	}
	if cCtx.IsSet(flagSplit) {
		cfg.Split = cCtx.String(flagSplit)
	}
	if cCtx.Bool(flagDebug) {
		cfg.LogLevel = logging.DEBUG.String()
	}
	if err := cfg.Validate(flagConfig); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	logger := logging.NewLogger("freeman")
	logger.SetLevel(cfg.Level())
	return logger
}

// openDataset loads the config and opens the dataset it names.
func openDataset(cCtx *cli.Context) (*dataset.Dataset, *config.Config, logging.Logger, error) {
	cfg, err := loadConfig(cCtx)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg)
	ds, err := dataset.New(cfg.Root, cfg.FPS, cfg.DatasetSplit(), logger.Sublogger("dataset"))
	if err != nil {
		return nil, nil, nil, err
	}
	return ds, cfg, logger, nil
}

func sessionArg(cCtx *cli.Context) (string, error) {
	if cCtx.Args().Len() != 1 {
		return "", errors.Errorf("expected exactly one session argument, got %d", cCtx.Args().Len())
	}
	return cCtx.Args().First(), nil
}

func shapeOf(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case *ndarray.Array:
		if v == nil {
			return "-"
		}
		return fmt.Sprint(v.Shape)
	case ndarray.Record:
		return fmt.Sprintf("record of %d arrays", len(v))
	default:
		return fmt.Sprintf("%T", v)
	}
}
