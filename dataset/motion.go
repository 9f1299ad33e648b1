package dataset

import "go.viam.com/freeman/ndarray"

// Motion is an SMPL sequence: per-frame axis-angle joint poses (frames, 24, 3), a global scale
// and per-frame root translation (frames, 3). The three always load together.
type Motion struct {
	Poses       *ndarray.Array
	Scaling     *ndarray.Array
	Translation *ndarray.Array
}

// NumFrames is the length of the sequence.
func (m *Motion) NumFrames() int {
	if m.Poses == nil || len(m.Poses.Shape) == 0 {
		return 0
	}
	return m.Poses.Shape[0]
}

// LoadMotion reads {motions}/{session}.npy. Every one of smpl_poses, smpl_scaling and
// smpl_transl must be present.
func (ds *Dataset) LoadMotion(session string) (*Motion, error) {
	rec, err := ds.loadRecord(KindMotions, session)
	if err != nil {
		return nil, err
	}
	fields, err := requireFields(rec, session, KindMotions, "smpl_poses", "smpl_scaling", "smpl_transl")
	if err != nil {
		return nil, err
	}
	return &Motion{Poses: fields[0], Scaling: fields[1], Translation: fields[2]}, nil
}
