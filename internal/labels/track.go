package labels

// Track is a named identity hypothesis threading instances across frames.
// SpawnedOn is the frame index of first appearance. Equality is by
// pointer identity: two tracks with the same name are still distinct.
type Track struct {
	Name      string
	SpawnedOn int
}

// NewTrack returns a track spawned on the given frame.
func NewTrack(name string, spawnedOn int) *Track {
	return &Track{Name: name, SpawnedOn: spawnedOn}
}
