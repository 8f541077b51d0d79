package compose

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/livenotify/internal/host"
	"github.com/jmylchreest/livenotify/internal/imaging"
	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/model"
	"github.com/jmylchreest/livenotify/internal/progress"
)

type fakePresence struct {
	startErr error
	starts   int
	stops    int
}

func (p *fakePresence) Start(context.Context) error {
	p.starts++
	return p.startErr
}

func (p *fakePresence) Stop(context.Context) error {
	p.stops++
	return nil
}

func strPtr(s string) *string { return &s }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newComposer(t *testing.T, version int) (*Composer, *host.Registry) {
	t.Helper()
	reg := host.NewRegistry(nil)
	opts := DefaultOptions()
	opts.Host.Version = version
	return New(reg, layout.NewRegistry(nil), opts, nil), reg
}

func colorPtr(c imaging.Color) *imaging.Color { return &c }

func TestRenderStyledPlain(t *testing.T) {
	c, reg := newComposer(t, 33)
	ctx := context.Background()

	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{
		ID:      1,
		Title:   "Upload",
		Text:    "Uploading photos",
		Ongoing: false,
		Payload: strPtr("open:uploads"),
		Style:   model.StylePlain,
	}))

	n, ok := reg.Get(1)
	require.True(t, ok)
	assert.Equal(t, model.StyleKindBigText, n.Style)
	assert.Equal(t, model.CategoryService, n.Category)
	assert.Equal(t, "Uploading photos", n.BigText)
	assert.Equal(t, DefaultSmallIcon, n.SmallIcon)
	assert.Equal(t, DefaultChannelID, n.ChannelID)
	assert.False(t, n.Ongoing)
	assert.True(t, n.AutoCancel)
	assert.False(t, n.PromotedOngoing)
	require.NotNil(t, n.ContentIntent)
	assert.Equal(t, int32(1), n.ContentIntent.RequestCode)
	assert.Equal(t, "open:uploads", *n.ContentIntent.Payload)
}

func TestRenderStyledReplacesSameID(t *testing.T) {
	c, reg := newComposer(t, 35)
	ctx := context.Background()

	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 5, Title: "A", Ongoing: true}))
	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 5, Title: "B", Ongoing: true}))

	assert.Equal(t, 1, reg.Count())
	n, _ := reg.Get(5)
	assert.Equal(t, "B", n.Title)
}

func TestRenderStyledProgress(t *testing.T) {
	segments := []progress.Segment{
		{Length: 30, Color: colorPtr(imaging.ColorFromInt(0xFFFF0000))},
		{Length: 70, Color: colorPtr(imaging.ColorFromInt(0xFF00FF00))},
	}

	tests := []struct {
		name          string
		version       int
		segments      []progress.Segment
		wantStyle     model.StyleKind
		wantPromoted  bool
		wantPriority  model.Priority
		wantSegmented bool
	}{
		{"segmented on capable host", 35, segments, model.StyleKindSegmentedProgress, false, model.PriorityHigh, true},
		{"segments ignored on older host", 34, segments, model.StyleKindProgress, true, model.PriorityDefault, false},
		{"no segments on capable host", 35, nil, model.StyleKindProgress, true, model.PriorityDefault, false},
		{"linear on old host", 30, nil, model.StyleKindProgress, false, model.PriorityDefault, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, reg := newComposer(t, tt.version)
			require.NoError(t, c.RenderStyled(context.Background(), model.StyledRequest{
				ID:      2,
				Title:   "Delivery",
				Ongoing: true,
				Style:   model.StyleProgress,
				Progress: model.ProgressParams{
					Value:    40,
					Max:      model.DefaultProgressMax,
					Segments: tt.segments,
				},
			}))

			n, ok := reg.Get(2)
			require.True(t, ok)
			assert.Equal(t, tt.wantStyle, n.Style)
			assert.Equal(t, model.CategoryProgress, n.Category)
			assert.Equal(t, tt.wantPromoted, n.PromotedOngoing)
			assert.Equal(t, tt.wantPriority, n.Priority)

			if tt.wantSegmented {
				require.NotNil(t, n.Segmented)
				assert.Nil(t, n.Progress)
				assert.Equal(t, 40, n.Segmented.Value)
				require.Len(t, n.Segmented.Segments, 2)
				assert.Equal(t, 30, n.Segmented.Segments[0].Length)
				assert.Equal(t, 70, n.Segmented.Segments[1].Length)
				assert.Equal(t, 100, n.Segmented.Max())
			} else {
				require.NotNil(t, n.Progress)
				assert.Nil(t, n.Segmented)
				assert.Equal(t, 40, n.Progress.Value)
				assert.Equal(t, 100, n.Progress.Max)
			}
		})
	}
}

func TestRenderStyledProgressIndeterminate(t *testing.T) {
	c, reg := newComposer(t, 35)
	require.NoError(t, c.RenderStyled(context.Background(), model.StyledRequest{
		ID:       3,
		Style:    model.StyleProgress,
		Progress: model.ProgressParams{Max: 100, Indeterminate: true},
	}))

	n, _ := reg.Get(3)
	require.NotNil(t, n.Progress)
	assert.True(t, n.Progress.Indeterminate)
}

func TestRenderStyledCall(t *testing.T) {
	c, reg := newComposer(t, 34)
	presence := &fakePresence{}
	c.SetPresence(presence)

	require.NoError(t, c.RenderStyled(context.Background(), model.StyledRequest{
		ID:      7,
		Title:   "Ada Lovelace",
		Text:    "Incoming call",
		Ongoing: true,
		Style:   model.StyleCall,
	}))

	assert.Equal(t, 1, presence.starts)

	n, ok := reg.Get(7)
	require.True(t, ok)
	assert.Equal(t, model.StyleKindCall, n.Style)
	assert.Equal(t, model.CategoryCall, n.Category)
	assert.Equal(t, model.PriorityMax, n.Priority)
	assert.False(t, n.Degraded)
	assert.True(t, n.PromotedOngoing)

	require.NotNil(t, n.Call)
	assert.Equal(t, "Ada Lovelace", n.Call.Caller.Name)
	assert.Equal(t, int32(9), n.Call.Decline.RequestCode)
	assert.Equal(t, model.ActionDecline, n.Call.Decline.Action)
	assert.Equal(t, int32(10), n.Call.Answer.RequestCode)
	assert.Equal(t, model.ActionAnswer, n.Call.Answer.Action)
	require.NotNil(t, n.FullScreenIntent)
	assert.Equal(t, int32(307), n.FullScreenIntent.RequestCode)

	// Request codes are distinct across the targets.
	codes := map[int32]bool{}
	for _, intent := range n.Intents() {
		assert.False(t, codes[intent.RequestCode], "duplicate request code %d", intent.RequestCode)
		codes[intent.RequestCode] = true
	}
}

func TestRenderStyledCallDegraded(t *testing.T) {
	tests := []struct {
		name     string
		presence Presence
	}{
		{"no presence", nil},
		{"presence fails", &fakePresence{startErr: errors.New("denied")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, reg := newComposer(t, 33)
			c.SetPresence(tt.presence)

			require.NoError(t, c.RenderStyled(context.Background(), model.StyledRequest{
				ID:    8,
				Title: "Bob",
				Style: model.StyleCall,
			}))

			n, ok := reg.Get(8)
			require.True(t, ok)
			assert.True(t, n.Degraded)
			assert.Equal(t, model.StyleKindCall, n.Style)
		})
	}
}

func TestRenderStyledCallOldHostSkipsPresence(t *testing.T) {
	c, reg := newComposer(t, 30)
	presence := &fakePresence{}
	c.SetPresence(presence)

	require.NoError(t, c.RenderStyled(context.Background(), model.StyledRequest{ID: 8, Style: model.StyleCall}))

	assert.Zero(t, presence.starts)
	n, _ := reg.Get(8)
	assert.False(t, n.Degraded)
}

func TestCancelReleasesPresence(t *testing.T) {
	c, reg := newComposer(t, 35)
	presence := &fakePresence{}
	c.SetPresence(presence)
	ctx := context.Background()

	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 1, Style: model.StyleCall}))
	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 2, Style: model.StyleCall}))

	require.NoError(t, c.Cancel(ctx, 1))
	assert.Zero(t, presence.stops)

	require.NoError(t, c.Cancel(ctx, 2))
	assert.Equal(t, 1, presence.stops)
	assert.Zero(t, reg.Count())

	// Unknown id is a no-op.
	require.NoError(t, c.Cancel(ctx, 42))
	assert.Equal(t, 1, presence.stops)
}

func TestRenderStyledExtras(t *testing.T) {
	c, reg := newComposer(t, 35)

	require.NoError(t, c.RenderStyled(context.Background(), model.StyledRequest{
		ID:         4,
		Title:      "Order",
		SubText:    "Kitchen",
		LargeIcon:  pngBytes(t, 4, 4),
		FullScreen: true,
	}))

	n, _ := reg.Get(4)
	assert.Equal(t, "Kitchen", n.SubText)
	require.NotNil(t, n.LargeIcon)
	assert.Equal(t, 4, n.LargeIcon.Bounds().Dx())
	require.NotNil(t, n.FullScreenIntent)
	assert.Equal(t, int32(304), n.FullScreenIntent.RequestCode)
}

func TestRenderStyledBadLargeIconIgnored(t *testing.T) {
	c, reg := newComposer(t, 35)
	require.NoError(t, c.RenderStyled(context.Background(), model.StyledRequest{
		ID:        4,
		LargeIcon: []byte("not an image"),
	}))

	n, ok := reg.Get(4)
	require.True(t, ok)
	assert.Nil(t, n.LargeIcon)
}

func TestRenderBound(t *testing.T) {
	c, reg := newComposer(t, 35)
	c.UpdateOptions(Options{
		Host:  HostInfo{Version: 35},
		Icons: map[string]string{"truck": "vehicle-truck"},
	})

	x := 8.0
	require.NoError(t, c.RenderBound(context.Background(), model.BoundRequest{
		ID:        11,
		Template:  "live_activity",
		Ongoing:   false,
		Payload:   strPtr("track:11"),
		SmallIcon: "truck",
		Title:     "Courier",
		Bindings: []layout.Descriptor{
			{Slot: "title", Kind: layout.KindText, Text: strPtr("On the way"), X: &x},
			{Slot: "missing", Kind: layout.KindText, Text: strPtr("nope")},
		},
	}))

	n, ok := reg.Get(11)
	require.True(t, ok)
	assert.Equal(t, model.StyleKindCustomView, n.Style)
	assert.Equal(t, model.PriorityMax, n.Priority)
	assert.Equal(t, model.CategoryCall, n.Category)
	assert.Equal(t, "vehicle-truck", n.SmallIcon)
	assert.True(t, n.AutoCancel)

	require.NotNil(t, n.CustomView)
	slot, ok := n.CustomView.Slot("title")
	require.True(t, ok)
	assert.Equal(t, "On the way", *slot.Text)
	require.NotNil(t, slot.TranslationX)
	assert.Equal(t, 8, *slot.TranslationX)
	require.Len(t, n.CustomView.Diagnostics, 1)
	assert.ErrorIs(t, n.CustomView.Diagnostics[0].Err, layout.ErrUnknownSlot)
}

func TestRenderBoundUnknownTemplate(t *testing.T) {
	c, reg := newComposer(t, 35)

	require.NoError(t, c.RenderBound(context.Background(), model.BoundRequest{ID: 1, Template: "nope"}))
	assert.Zero(t, reg.Posts())

	_, err := c.ComposeBound(model.BoundRequest{ID: 1, Template: "nope"})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestResolveIcon(t *testing.T) {
	icons := map[string]string{"bell": "notification-bell", "empty": ""}

	assert.Equal(t, "notification-bell", resolveIcon(icons, "bell"))
	assert.Equal(t, DefaultSmallIcon, resolveIcon(icons, "unknown"))
	assert.Equal(t, DefaultSmallIcon, resolveIcon(icons, "empty"))
	assert.Equal(t, DefaultSmallIcon, resolveIcon(nil, ""))
}

func TestCompanionPresence(t *testing.T) {
	reg := host.NewRegistry(nil)
	p := NewCompanionPresence(reg, "")
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.Running())
	assert.Equal(t, 1, reg.Posts())

	n, ok := reg.Get(CompanionID)
	require.True(t, ok)
	assert.Equal(t, CompanionTitle, n.Title)
	assert.Equal(t, CompanionText, n.Text)
	assert.True(t, n.Ongoing)

	require.NoError(t, p.Stop(ctx))
	assert.False(t, p.Running())
	assert.Zero(t, reg.Count())
}

// failingPoster fails posts of one id and passes everything else through.
type failingPoster struct {
	*host.Registry
	failID int32
}

func (p *failingPoster) Post(ctx context.Context, n *model.Notification) error {
	if n.ID == p.failID {
		return errors.New("server unavailable")
	}
	return p.Registry.Post(ctx, n)
}

func TestReplacingCallReleasesPresence(t *testing.T) {
	tests := []struct {
		name    string
		replace func(ctx context.Context, c *Composer) error
	}{
		{"plain", func(ctx context.Context, c *Composer) error {
			return c.RenderStyled(ctx, model.StyledRequest{ID: 1, Title: "Done", Style: model.StylePlain})
		}},
		{"progress", func(ctx context.Context, c *Composer) error {
			return c.RenderStyled(ctx, model.StyledRequest{
				ID: 1, Style: model.StyleProgress, Progress: model.ProgressParams{Value: 3, Max: 10},
			})
		}},
		{"bound", func(ctx context.Context, c *Composer) error {
			return c.RenderBound(ctx, model.BoundRequest{ID: 1, Template: "delivery"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, reg := newComposer(t, 35)
			p := NewCompanionPresence(reg, "")
			c.SetPresence(p)
			ctx := context.Background()

			require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 1, Title: "Alex", Style: model.StyleCall}))
			require.True(t, p.Running())

			require.NoError(t, tt.replace(ctx, c))
			assert.False(t, p.Running())
			_, ok := reg.Get(CompanionID)
			assert.False(t, ok)
			assert.Equal(t, 1, reg.Count())
		})
	}
}

func TestReplacingOneOfTwoCallsKeepsPresence(t *testing.T) {
	c, _ := newComposer(t, 35)
	presence := &fakePresence{}
	c.SetPresence(presence)
	ctx := context.Background()

	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 1, Style: model.StyleCall}))
	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 2, Style: model.StyleCall}))
	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 1, Style: model.StylePlain}))
	assert.Zero(t, presence.stops)

	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 2, Style: model.StylePlain}))
	assert.Equal(t, 1, presence.stops)
}

func TestFailedCallPostReleasesPresence(t *testing.T) {
	poster := &failingPoster{Registry: host.NewRegistry(nil), failID: 4}
	opts := DefaultOptions()
	c := New(poster, layout.NewRegistry(nil), opts, nil)
	p := NewCompanionPresence(poster, "")
	c.SetPresence(p)
	ctx := context.Background()

	err := c.RenderStyled(ctx, model.StyledRequest{ID: 4, Title: "Alex", Style: model.StyleCall})
	require.Error(t, err)
	assert.False(t, p.Running())
	assert.Zero(t, poster.Count())
}

func TestFailedReplaceKeepsShowingCallPresence(t *testing.T) {
	poster := &failingPoster{Registry: host.NewRegistry(nil)}
	c := New(poster, layout.NewRegistry(nil), DefaultOptions(), nil)
	p := NewCompanionPresence(poster, "")
	c.SetPresence(p)
	ctx := context.Background()

	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 4, Title: "Alex", Style: model.StyleCall}))

	// The replace fails, so the first call is still showing.
	poster.failID = 4
	require.Error(t, c.RenderStyled(ctx, model.StyledRequest{ID: 4, Title: "Alex", Style: model.StyleCall}))
	assert.True(t, p.Running())

	poster.failID = 0
	require.NoError(t, c.Cancel(ctx, 4))
	assert.False(t, p.Running())
}

func TestRemovedReleasesPresence(t *testing.T) {
	c, _ := newComposer(t, 35)
	presence := &fakePresence{}
	c.SetPresence(presence)
	ctx := context.Background()

	require.NoError(t, c.RenderStyled(ctx, model.StyledRequest{ID: 3, Style: model.StyleCall}))

	c.Removed(ctx, 42)
	assert.Zero(t, presence.stops)

	c.Removed(ctx, 3)
	assert.Equal(t, 1, presence.stops)

	c.Removed(ctx, 3)
	assert.Equal(t, 1, presence.stops)
}

func TestCheckID(t *testing.T) {
	tests := []struct {
		id      int32
		wantErr error
	}{
		{0, nil},
		{-5, nil},
		{MaxNotificationID, nil},
		{MaxNotificationID + 1, ErrIDOutOfRange},
		{CompanionID, ErrReservedID},
		{NoticeID, ErrReservedID},
	}

	for _, tt := range tests {
		err := CheckID(tt.id)
		if tt.wantErr == nil {
			assert.NoError(t, err, "id %d", tt.id)
		} else {
			assert.ErrorIs(t, err, tt.wantErr, "id %d", tt.id)
		}
	}
}
