package preview

import (
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/livenotify/internal/imaging"
	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/model"
	"github.com/jmylchreest/livenotify/internal/progress"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func baseNotification(id int32) *model.Notification {
	return &model.Notification{
		ID:        id,
		ChannelID: "live_updates_channel",
		CreatedAt: time.Now(),
		SmallIcon: "dialog-information",
		Category:  model.CategoryService,
		Priority:  model.PriorityDefault,
	}
}

func TestRenderPlain(t *testing.T) {
	n := baseNotification(3)
	n.Title = "Order"
	n.Style = model.StyleKindBigText
	n.BigText = "Ready"
	n.SubText = "Cafe"
	n.AutoCancel = true
	n.ContentIntent = &model.Intent{RequestCode: 3, Payload: strPtr("route:/x")}

	out := New(Options{Width: 80}).Render(n)
	for _, want := range []string{"#3", "Order", "Ready", "Cafe", "auto-cancel", `"route:/x"`, "live_updates_channel"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "ongoing")
}

func TestRenderCall(t *testing.T) {
	n := baseNotification(7)
	n.Style = model.StyleKindCall
	n.Category = model.CategoryCall
	n.Priority = model.PriorityMax
	n.Ongoing = true
	n.Degraded = true
	n.FullScreenIntent = &model.Intent{RequestCode: 307}
	n.Call = &model.CallStyle{Caller: model.Person{Name: "Alex"}}

	out := New(Options{Width: 80}).Render(n)
	for _, want := range []string{"Incoming call from Alex", "[ Decline ]", "[ Answer ]", "degraded", "full-screen(307)", "max"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderProgress(t *testing.T) {
	n := baseNotification(1)
	n.Style = model.StyleKindProgress
	n.Progress = &model.LinearProgress{Value: 30, Max: 100}

	out := New(Options{Width: 80}).Render(n)
	assert.Contains(t, out, " 30%")
	assert.Contains(t, out, "█")
}

func TestRenderCustomView(t *testing.T) {
	tmpl, err := layout.ParseTemplateString("ride", `<template><text id="eta" /><image id="map" /></template>`)
	require.NoError(t, err)

	n := baseNotification(2)
	n.Style = model.StyleKindCustomView
	n.CustomView = &layout.BoundView{
		Template: tmpl,
		Slots: []layout.BoundSlot{
			{Handle: layout.SlotHandle{Name: "eta"}, Text: strPtr("5 min"), TranslationX: intPtr(8)},
			{Handle: layout.SlotHandle{Name: "map"}, Image: image.NewNRGBA(image.Rect(0, 0, 4, 2)), Scaled: true},
		},
		Diagnostics: []layout.Diagnostic{{Slot: "ghost", Err: errors.New("slot not found in template")}},
	}

	out := New(Options{Width: 80, ShowDiagnostics: true}).Render(n)
	assert.Contains(t, out, "layout ride")
	assert.Contains(t, out, "eta: 5 min @+8,+0")
	assert.Contains(t, out, "map: image 4×2 (32 B) scaled")
	assert.Contains(t, out, "! ghost: slot not found in template")

	out = New(Options{Width: 80}).Render(n)
	assert.NotContains(t, out, "ghost")
}

func TestRenderSegmented(t *testing.T) {
	red := imaging.Color(0xFFFF0000)
	n := baseNotification(4)
	n.Style = model.StyleKindSegmentedProgress
	n.Segmented = &progress.Model{
		Value:    25,
		Segments: []progress.Segment{{Length: 50, Color: &red}, {Length: 50}},
		Points:   []progress.Point{{Position: 75}},
	}

	out := New(Options{Width: 80}).Render(n)
	assert.Contains(t, out, "25 / 100")
	assert.Contains(t, out, "▲")
	assert.Contains(t, out, "◆")
}

func TestRenderAll(t *testing.T) {
	a, b := baseNotification(1), baseNotification(2)
	out := New(Options{}).RenderAll([]*model.Notification{a, b})
	assert.Less(t, strings.Index(out, "#1"), strings.Index(out, "#2"))
}

func TestProgressLine(t *testing.T) {
	tests := []struct {
		name string
		p    model.LinearProgress
		want string
	}{
		{"half", model.LinearProgress{Value: 50, Max: 100}, "█████░░░░░  50%"},
		{"empty", model.LinearProgress{Value: 0, Max: 100}, "░░░░░░░░░░   0%"},
		{"over", model.LinearProgress{Value: 150, Max: 100}, "██████████ 100%"},
		{"indeterminate", model.LinearProgress{Indeterminate: true}, "░▒▓▒░▒▓▒░▒"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, progressLine(tt.p, 16))
		})
	}
}

func TestSegmentSpans(t *testing.T) {
	even := &progress.Model{Segments: []progress.Segment{{Length: 50}, {Length: 50}}}
	assert.Equal(t, []span{{0, 5, nil}, {5, 10, nil}}, segmentSpans(even, 10))

	// A tiny segment still gets a cell.
	tiny := &progress.Model{Segments: []progress.Segment{{Length: 1}, {Length: 99}}}
	assert.Equal(t, []span{{0, 1, nil}, {1, 10, nil}}, segmentSpans(tiny, 10))

	assert.Nil(t, segmentSpans(&progress.Model{}, 10))
}

func TestCellAt(t *testing.T) {
	assert.Equal(t, 0, cellAt(0, 100, 10))
	assert.Equal(t, 5, cellAt(50, 100, 10))
	assert.Equal(t, 9, cellAt(100, 100, 10))
	assert.Equal(t, 0, cellAt(5, 0, 10))
}
