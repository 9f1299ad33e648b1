package video

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"go.viam.com/freeman/logging"
)

// FFmpegAttrs are extra keyword arguments passed to every ffmpeg invocation.
type FFmpegAttrs struct {
	InputKWArgs  map[string]interface{} `json:"input_kw_args"`
	OutputKWArgs map[string]interface{} `json:"output_kw_args"`
}

// FFmpegBackend decodes single frames by running ffmpeg at a timestamp and reads the native
// frame rate with ffprobe.
type FFmpegBackend struct {
	attrs  FFmpegAttrs
	logger logging.Logger
}

// NewFFmpegBackend checks that ffmpeg and ffprobe are on the PATH.
func NewFFmpegBackend(attrs *FFmpegAttrs, logger logging.Logger) (*FFmpegBackend, error) {
	// make sure ffmpeg is in the path before doing anything else
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			return nil, err
		}
	}
	if attrs == nil {
		attrs = &FFmpegAttrs{}
	}
	if logger == nil {
		logger = logging.NewBlankLogger("ffmpeg")
	}
	return &FFmpegBackend{attrs: *attrs, logger: logger}, nil
}

type streamInfo struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// Open inspects path for its first video stream.
func (b *FFmpegBackend) Open(ctx context.Context, path string) (Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, &UnopenableError{Path: path, Err: err}
	}
	var info streamInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return nil, &UnopenableError{Path: path, Err: errors.Wrap(err, "unreadable ffprobe output")}
	}
	for _, stream := range info.Streams {
		if stream.CodecType != "video" {
			continue
		}
		fps, err := parseFrameRate(stream.RFrameRate)
		if err != nil || fps <= 0 {
			fps, err = parseFrameRate(stream.AvgFrameRate)
		}
		if err != nil {
			return nil, &UnopenableError{Path: path, Err: err}
		}
		b.logger.Debugw("opened video", "path", path, "fps", fps)
		return &ffmpegContainer{ctx: ctx, backend: b, path: path, fps: fps}, nil
	}
	return nil, &UnopenableError{Path: path, Err: errors.New("no video stream")}
}

// parseFrameRate reads ffprobe rates such as "30/1" or "30000/1001".
func parseFrameRate(rate string) (float64, error) {
	num, den, hasDen := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad frame rate %q", rate)
	}
	if !hasDen {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad frame rate %q", rate)
	}
	if d == 0 {
		return 0, errors.Errorf("bad frame rate %q", rate)
	}
	return n / d, nil
}

type ffmpegContainer struct {
	ctx     context.Context
	backend *FFmpegBackend
	path    string
	fps     float64
	posMs   float64
	closed  bool
}

func (c *ffmpegContainer) NativeFPS() float64 {
	return c.fps
}

func (c *ffmpegContainer) SeekMillis(ms float64) error {
	if c.closed {
		return errors.New("video is closed")
	}
	if ms < 0 {
		return errors.Errorf("cannot seek to %vms", ms)
	}
	c.posMs = ms
	return nil
}

func (c *ffmpegContainer) DecodeNext() (image.Image, error) {
	if c.closed {
		return nil, errors.New("video is closed")
	}
	inArgs := ffmpeg.KwArgs{}
	for key, value := range c.backend.attrs.InputKWArgs {
		inArgs[key] = value
	}
	inArgs["ss"] = strconv.FormatFloat(c.posMs/1000, 'f', 6, 64)

	outArgs := ffmpeg.KwArgs{}
	for key, value := range c.backend.attrs.OutputKWArgs {
		outArgs[key] = value
	}
	outArgs["frames:v"] = 1
	outArgs["format"] = "image2"
	outArgs["vcodec"] = "png"

	var stdout, stderr bytes.Buffer
	stream := ffmpeg.Input(c.path, inArgs).Output("pipe:", outArgs)
	stream.Context = c.ctx
	runErr := stream.WithOutput(&stdout, &stderr).Run()
	if stdout.Len() == 0 {
		if runErr != nil {
			c.backend.logger.Debugw("ffmpeg produced no frame", "path", c.path, "ms", c.posMs,
				"error", runErr, "stderr", stderr.String())
		}
		return nil, io.EOF
	}
	if runErr != nil {
		return nil, errors.Wrapf(runErr, "ffmpeg failed at %vms of %q", c.posMs, c.path)
	}
	img, err := imaging.Decode(&stdout)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding frame at %vms of %q", c.posMs, c.path)
	}
	c.posMs += 1000 / c.fps
	return img, nil
}

func (c *ffmpegContainer) Close() error {
	c.closed = true
	return nil
}
