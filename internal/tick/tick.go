package tick

// Normalize computes the duration of a possibly still-running entity at
// captureTick. An endTick of 0 means the entity has not ended yet. Timings for
// entities that are still active are normalized to the capture tick in order
// to present a picture of the trace at that exact tick, without blocking
// updates to the trace while it is being read. Callers must snapshot a
// mutable end tick into a local before passing it in so the comparison and
// the subtraction see the same value.
func Normalize(startTick, endTick, captureTick int64) (duration int64, completed bool) {
	if endTick != 0 && endTick <= captureTick {
		return endTick - startTick, true
	}
	return captureTick - startTick, false
}
