package dataset

import (
	"fmt"
	"strings"
)

// ResourceNotFoundError is returned when an expected file or directory is absent.
type ResourceNotFoundError struct {
	Resource string
	Session  string
	Path     string
}

func (e *ResourceNotFoundError) Error() string {
	if e.Session == "" {
		return fmt.Sprintf("%s does not exist at %q", e.Resource, e.Path)
	}
	return fmt.Sprintf("%s for session %q does not exist at %q", e.Resource, e.Session, e.Path)
}

// SplitNotFoundError is returned when the session list of a split is missing.
type SplitNotFoundError struct {
	Split Split
	Path  string
}

func (e *SplitNotFoundError) Error() string {
	return fmt.Sprintf("session list for split %q does not exist at %q", e.Split, e.Path)
}

// UnknownSessionError is returned when a session is not listed in the active split. It is
// reported separately from a missing file for a listed session.
type UnknownSessionError struct {
	Session string
	Split   Split
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("session %q not found in %s sessions", e.Session, e.Split)
}

// MalformedCameraError is returned when a camera record is present but structurally invalid.
// Index is -1 when the file as a whole is not a list of records.
type MalformedCameraError struct {
	Session string
	Index   int
	Field   string
	Reason  string
}

func (e *MalformedCameraError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("cameras for session %q are malformed: %s", e.Session, e.Reason)
	case e.Reason == "":
		return fmt.Sprintf("camera %d of session %q is missing field %q", e.Index, e.Session, e.Field)
	case e.Field == "":
		return fmt.Sprintf("camera %d of session %q is malformed: %s", e.Index, e.Session, e.Reason)
	}
	return fmt.Sprintf("camera %d of session %q has a malformed field %q: %s", e.Index, e.Session, e.Field, e.Reason)
}

// MalformedNameError is returned when a video file name does not carry a session and camera tag.
type MalformedNameError struct {
	Name   string
	Reason string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed video name %q: %s", e.Name, e.Reason)
}

// MissingFieldError is returned when a present container lacks the requested keys after every
// fallback was tried. Fields lists what was looked for.
type MissingFieldError struct {
	Session  string
	Resource ResourceKind
	Fields   []string
}

func (e *MissingFieldError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("%s for session %q has no field %q", e.Resource, e.Session, e.Fields[0])
	}
	return fmt.Sprintf("%s for session %q is missing fields [%s]", e.Resource, e.Session, strings.Join(e.Fields, ", "))
}

// InvalidCameraError is returned for a camera index outside 1..NumViews.
type InvalidCameraError struct {
	Camera int
}

func (e *InvalidCameraError) Error() string {
	return fmt.Sprintf("illegal camera index %d, must be 1 ~ %d", e.Camera, NumViews)
}
