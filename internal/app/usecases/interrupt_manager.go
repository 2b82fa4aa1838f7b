package usecases

// InterruptManager decides where a run pauses for human review. A paused
// run is resumed by running the same thread again with a nil input.
type InterruptManager struct {
	before map[string]bool
	after  map[string]bool
}

// NewInterruptManager creates an interrupt manager for the given node IDs.
func NewInterruptManager(before, after []string) *InterruptManager {
	im := &InterruptManager{
		before: make(map[string]bool, len(before)),
		after:  make(map[string]bool, len(after)),
	}
	for _, n := range before {
		im.before[n] = true
	}
	for _, n := range after {
		im.after[n] = true
	}
	return im
}

// Enabled reports whether any interrupt is configured.
func (im *InterruptManager) Enabled() bool {
	return im != nil && (len(im.before) > 0 || len(im.after) > 0)
}

// Before returns the nodes of the upcoming step that require a pause.
func (im *InterruptManager) Before(nodes []string) []string {
	if im == nil {
		return nil
	}
	return pick(nodes, im.before)
}

// After returns the nodes of the finished step that require a pause.
func (im *InterruptManager) After(nodes []string) []string {
	if im == nil {
		return nil
	}
	return pick(nodes, im.after)
}

func pick(nodes []string, set map[string]bool) []string {
	var hit []string
	for _, n := range nodes {
		if set[n] {
			hit = append(hit, n)
		}
	}
	return hit
}
