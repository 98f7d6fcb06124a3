package sessions

import (
	"testing"
	"time"
)

func TestPickerDeterministicPerSessionPerDay(t *testing.T) {
	day := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	images := []string{"a.png", "b.png", "c.png", "d.png"}

	p1 := newPicker(42, day)
	p2 := newPicker(42, day.Add(3*time.Hour)) // same calendar day

	if p1.PickImage(images) != p2.PickImage(images) {
		t.Error("same session and day must pick the same image")
	}
	if p1.PickMotivation() != p2.PickMotivation() {
		t.Error("same session and day must pick the same motivation line")
	}
}

func TestPickerVariesAcrossSessions(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	images := []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png", "g.png", "h.png"}

	seen := make(map[string]bool)
	for id := int64(1); id <= 50; id++ {
		seen[newPicker(id, day).PickImage(images)] = true
	}
	if len(seen) < 2 {
		t.Error("different sessions should not all pick the same image")
	}
}

func TestPickerVariesAcrossDays(t *testing.T) {
	images := []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png", "g.png", "h.png"}

	seen := make(map[string]bool)
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		seen[newPicker(7, day.AddDate(0, 0, i)).PickImage(images)] = true
	}
	if len(seen) < 2 {
		t.Error("the same session should pick differently on different days")
	}
}

func TestPickerIndependentStreams(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	images := []string{"a.png", "b.png", "c.png"}

	// Drawing a motivation line must not shift the image stream.
	p1 := newPicker(9, day)
	p1.PickMotivation()
	withMotivationFirst := p1.PickImage(images)

	p2 := newPicker(9, day)
	imageOnly := p2.PickImage(images)

	if withMotivationFirst != imageOnly {
		t.Error("the two selection streams must not interfere")
	}
}

func TestPickImageEmptyList(t *testing.T) {
	p := newPicker(1, time.Now())
	if got := p.PickImage(nil); got != "" {
		t.Errorf("empty image list should pick nothing, got %q", got)
	}
}

func TestPickMotivationInRange(t *testing.T) {
	for id := int64(1); id <= 20; id++ {
		line := newPicker(id, time.Now()).PickMotivation()
		if line == "" {
			t.Fatal("motivation line must never be empty")
		}
	}
}
