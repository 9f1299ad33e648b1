package dataset

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ResourceKind names one of the per-resource directories under the frame-rate directory.
type ResourceKind string

// The resource directories of a dataset.
const (
	KindVideos      ResourceKind = "videos"
	KindCameras     ResourceKind = "cameras"
	KindMotions     ResourceKind = "motions"
	KindKeypoints2D ResourceKind = "keypoints2d"
	KindKeypoints3D ResourceKind = "keypoints3d"
	KindBBox2D      ResourceKind = "bbox2d"
)

// ResourceKinds lists every resource directory.
var ResourceKinds = []ResourceKind{KindVideos, KindCameras, KindMotions, KindKeypoints2D, KindKeypoints3D, KindBBox2D}

// NumViews is the number of synchronized cameras per session.
const NumViews = 8

// Views are the camera tags in index order; Views[i] is camera i+1.
var Views = [NumViews]string{"c01", "c02", "c03", "c04", "c05", "c06", "c07", "c08"}

// Split selects one of the session lists.
type Split string

// The known splits. SplitAll reads the full session list.
const (
	SplitAll        Split = ""
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

var splitFiles = map[Split]string{
	SplitAll:        "session_list.txt",
	SplitTrain:      "train.txt",
	SplitValidation: "validation.txt",
	SplitTest:       "test.txt",
}

// ParseSplit accepts "", "all", "train", "validation" and "test".
func ParseSplit(s string) (Split, error) {
	if s == "all" {
		return SplitAll, nil
	}
	split := Split(s)
	if _, ok := splitFiles[split]; !ok {
		return SplitAll, errors.Errorf("unknown split %q, expected one of all, train, validation, test", s)
	}
	return split, nil
}

func (s Split) String() string {
	if s == SplitAll {
		return "all"
	}
	return string(s)
}

// Layout resolves the on-disk locations of a dataset rooted at Root for one frame rate.
// It never touches the filesystem.
type Layout struct {
	Root string
	FPS  int
}

// NewLayout returns the layout for root at fps.
func NewLayout(root string, fps int) Layout {
	return Layout{Root: root, FPS: fps}
}

// FPSDir is {root}/{fps}FPS.
func (l Layout) FPSDir() string {
	return filepath.Join(l.Root, fmt.Sprintf("%dFPS", l.FPS))
}

// Dir is the directory holding one kind of resource.
func (l Layout) Dir(kind ResourceKind) string {
	return filepath.Join(l.FPSDir(), string(kind))
}

// ResourcePath is the file holding one session's resource: {dir}/{session}.json for cameras
// and {dir}/{session}.npy otherwise. For videos it is the session's video directory.
func (l Layout) ResourcePath(kind ResourceKind, session string) string {
	switch kind {
	case KindVideos:
		return filepath.Join(l.Dir(kind), session)
	case KindCameras:
		return filepath.Join(l.Dir(kind), session+".json")
	default:
		return filepath.Join(l.Dir(kind), session+".npy")
	}
}

// VideoPath is {root}/{fps}FPS/videos/{session}/vframes/c0{cam}.mp4 for cam in 1..NumViews.
func (l Layout) VideoPath(session string, cam int) (string, error) {
	if err := ValidateCamera(cam); err != nil {
		return "", err
	}
	return filepath.Join(l.ResourcePath(KindVideos, session), "vframes", Views[cam-1]+".mp4"), nil
}

// SplitListPath is the session list file of a split.
func (l Layout) SplitListPath(split Split) (string, error) {
	name, ok := splitFiles[split]
	if !ok {
		return "", errors.Errorf("unknown split %q", string(split))
	}
	return filepath.Join(l.FPSDir(), name), nil
}

// IgnoreListPath is the list of sessions excluded upstream. Nothing here reads it.
func (l Layout) IgnoreListPath() string {
	return filepath.Join(l.FPSDir(), "ignore_list.txt")
}

// ValidateCamera checks a 1-based camera index.
func ValidateCamera(cam int) error {
	if cam < 1 || cam > NumViews {
		return &InvalidCameraError{Camera: cam}
	}
	return nil
}

var cameraTag = regexp.MustCompile(`(?:^|_)c(\d{2})$`)

// ParseVideoName extracts the session and 1-based camera index from a video file name such as
// "20220810_0a1b2c3d_c03.mp4". The session is the text before the first underscore and the
// camera is the "c" plus two digits that ends the name, in 1..NumViews.
func ParseVideoName(videoPath string) (string, int, error) {
	base := filepath.Base(videoPath)
	name, _, _ := strings.Cut(base, ".")
	if name == "" {
		return "", 0, &MalformedNameError{Name: base, Reason: "empty name"}
	}
	session, _, _ := strings.Cut(name, "_")

	match := cameraTag.FindStringSubmatch(name)
	if match == nil {
		return "", 0, &MalformedNameError{Name: base, Reason: "name does not end in a c<NN> camera tag"}
	}
	cam, err := strconv.Atoi(match[1])
	if err != nil {
		return "", 0, &MalformedNameError{Name: base, Reason: err.Error()}
	}
	if err := ValidateCamera(cam); err != nil {
		return "", 0, &MalformedNameError{Name: base, Reason: err.Error()}
	}
	return session, cam, nil
}
