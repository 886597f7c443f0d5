package builder

import "fmt"

// Stage of a build
type Stage int

// A build moves through the stages in order and ends in StageDone or,
// from any earlier stage, StageFailed.
const (
	StageInit Stage = iota
	StageResolving
	StageAssembling
	StageSerializing
	StageDone
	StageFailed
)

var stageNames = []string{"init", "resolving", "assembling", "serializing", "done", "failed"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Terminal reports whether no transition leaves s
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// next is the stage following s on success
func (s Stage) next() Stage {
	if s.Terminal() {
		return s
	}
	return s + 1
}
