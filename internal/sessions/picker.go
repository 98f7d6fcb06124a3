package sessions

import (
	"fmt"
	"time"
)

// motivationLines close out the completion response. Selection is
// deterministic per session per day, so a retried completion shows the same
// line it showed the first time.
var motivationLines = []string{
	"Every great speaker started exactly where you are right now.",
	"Your voice gets stronger every single time you use it.",
	"Pressure is a privilege. You earned this rep.",
	"The nerves never fully go away. You just get better at talking through them.",
	"One more session than yesterday. That is how it compounds.",
	"You cannot edit a blank recording. Showing up is the win.",
	"Confidence is built in private and shown in public.",
	"Small improvements, repeated daily, become unrecognizable progress.",
}

// picker drives two independent linear congruential generators off a single
// FNV-1a seed of the session id and the calendar date. Same session, same
// day, same picks.
type picker struct {
	imageState      uint32
	motivationState uint32
}

func newPicker(sessionID int64, now time.Time) *picker {
	seed := fnv32a(fmt.Sprintf("%d%s", sessionID, now.Format("2006-01-02")))
	return &picker{imageState: seed, motivationState: seed}
}

func fnv32a(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}

const lcgModulus = 1 << 31

func (p *picker) nextImage() uint32 {
	p.imageState = uint32((uint64(p.imageState)*1103515245 + 12345) % lcgModulus)
	return p.imageState
}

func (p *picker) nextMotivation() uint32 {
	p.motivationState = uint32((uint64(p.motivationState)*214013 + 2531011) % lcgModulus)
	return p.motivationState
}

// PickImage selects the coach source image for this session's renders.
func (p *picker) PickImage(images []string) string {
	if len(images) == 0 {
		return ""
	}
	return images[int(p.nextImage())%len(images)]
}

// PickMotivation selects the closing line for the completion response.
func (p *picker) PickMotivation() string {
	return motivationLines[int(p.nextMotivation())%len(motivationLines)]
}
