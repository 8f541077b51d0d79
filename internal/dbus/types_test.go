package dbus

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/livenotify/internal/imaging"
	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/model"
	"github.com/jmylchreest/livenotify/internal/progress"
)

func TestCloseReasonString(t *testing.T) {
	tests := []struct {
		reason   CloseReason
		expected string
	}{
		{CloseReasonExpired, "expired"},
		{CloseReasonDismissed, "dismissed"},
		{CloseReasonClosed, "closed"},
		{CloseReasonUndefined, "undefined"},
		{CloseReason(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reason.String())
		})
	}
}

func TestBuildNotifyPlain(t *testing.T) {
	payload := "open"
	n := &model.Notification{
		ID:            1,
		RenderID:      "01HZX",
		Title:         "Upload",
		Text:          "short",
		BigText:       "Uploading 3 photos",
		SmallIcon:     "dialog-information",
		Category:      model.CategoryService,
		Priority:      model.PriorityDefault,
		AutoCancel:    true,
		ContentIntent: &model.Intent{RequestCode: 1, Payload: &payload},
	}

	call := BuildNotify(n, "livenotify", 0)

	assert.Equal(t, "livenotify", call.AppName)
	assert.Equal(t, uint32(0), call.ReplacesID)
	assert.Equal(t, "dialog-information", call.AppIcon)
	assert.Equal(t, "Upload", call.Summary)
	assert.Equal(t, "Uploading 3 photos", call.Body)
	assert.Equal(t, []string{ActionKeyDefault, "Open"}, call.Actions)
	assert.Equal(t, ExpireDefault, call.ExpireTimeout)

	assert.Equal(t, UrgencyNormal, call.Hints["urgency"].Value())
	assert.Equal(t, "livenotify", call.Hints["desktop-entry"].Value())
	assert.Equal(t, "01HZX", call.Hints["x-livenotify-render-id"].Value())
	assert.NotContains(t, call.Hints, "category")
	assert.NotContains(t, call.Hints, "resident")
	assert.NotContains(t, call.Hints, "value")

	assert.Len(t, call.Args(), 8)
}

func TestBuildNotifyCall(t *testing.T) {
	n := &model.Notification{
		ID:            7,
		Title:         "Ada",
		Category:      model.CategoryCall,
		Priority:      model.PriorityMax,
		Ongoing:       true,
		ContentIntent: &model.Intent{RequestCode: 7},
		Call: &model.CallStyle{
			Caller:  model.Person{Name: "Ada Lovelace"},
			Decline: model.Intent{RequestCode: 9, Action: model.ActionDecline},
			Answer:  model.Intent{RequestCode: 10, Action: model.ActionAnswer},
		},
	}

	call := BuildNotify(n, "", 42)

	assert.Equal(t, uint32(42), call.ReplacesID)
	assert.Equal(t, "Ada Lovelace", call.Summary)
	assert.Equal(t, []string{ActionKeyDefault, ActionKeyDecline, ActionKeyAnswer}, call.ActionKeys())
	assert.Equal(t, UrgencyCritical, call.Hints["urgency"].Value())
	assert.Equal(t, "call", call.Hints["category"].Value())
	assert.Equal(t, true, call.Hints["resident"].Value())
	assert.Equal(t, ExpireNever, call.ExpireTimeout)
	assert.NotContains(t, call.Hints, "desktop-entry")
}

func TestBuildNotifyProgress(t *testing.T) {
	tests := []struct {
		name  string
		n     *model.Notification
		value int32
		ok    bool
	}{
		{
			name:  "linear",
			n:     &model.Notification{Progress: &model.LinearProgress{Value: 25, Max: 100}},
			value: 25,
			ok:    true,
		},
		{
			name: "indeterminate",
			n:    &model.Notification{Progress: &model.LinearProgress{Indeterminate: true, Max: 100}},
			ok:   false,
		},
		{
			name: "segmented",
			n: &model.Notification{Segmented: &progress.Model{
				Value:    30,
				Segments: []progress.Segment{{Length: 10}, {Length: 50}},
			}},
			value: 50,
			ok:    true,
		},
		{
			name:  "segmented over max",
			n:     &model.Notification{Segmented: &progress.Model{Value: 90, Segments: []progress.Segment{{Length: 60}}}},
			value: 100,
			ok:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := BuildNotify(tt.n, "", 0)
			v, ok := call.Hints["value"]
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.value, v.Value())
			}
		})
	}
}

func TestBuildNotifyCustomView(t *testing.T) {
	title, status, empty := "Courier", "5 min", ""
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))

	n := &model.Notification{
		Title:     "Delivery",
		SubText:   "Order 42",
		Category:  model.CategoryCall,
		Priority:  model.PriorityMax,
		LargeIcon: nil,
		CustomView: &layout.BoundView{
			Slots: []layout.BoundSlot{
				{Handle: layout.SlotHandle{Index: 0, Name: "icon"}, Image: img},
				{Handle: layout.SlotHandle{Index: 1, Name: "title"}, Text: &title},
				{Handle: layout.SlotHandle{Index: 2, Name: "subtitle"}, Text: &empty},
				{Handle: layout.SlotHandle{Index: 3, Name: "status"}, Text: &status},
			},
		},
	}

	call := BuildNotify(n, "", 0)
	assert.Equal(t, "Courier\n5 min", call.Body)
	assert.Equal(t, "Order 42", call.Hints["x-livenotify-subtext"].Value())

	require.Contains(t, call.Hints, "image-data")
	data, ok := call.Hints["image-data"].Value().(imaging.ImageData)
	require.True(t, ok)
	assert.Equal(t, int32(2), data.Width)
	assert.Equal(t, "(iiibiiay)", call.Hints["image-data"].Signature().String())
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		key    string
		action string
		ok     bool
	}{
		{ActionKeyDefault, model.ActionTap, true},
		{ActionKeyAnswer, model.ActionAnswer, true},
		{ActionKeyDecline, model.ActionDecline, true},
		{"reply", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			action, ok := ActionFor(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.action, action)
		})
	}
}

func TestIDTable(t *testing.T) {
	table := newIDTable()
	payload := "p"

	table.bind(5, 100, map[string]model.Intent{
		ActionKeyDefault: {RequestCode: 5, Payload: &payload},
	})
	assert.Equal(t, uint32(100), table.serverID(5))

	id, intent, ok := table.intent(100, ActionKeyDefault)
	require.True(t, ok)
	assert.Equal(t, int32(5), id)
	assert.Equal(t, "p", *intent.Payload)

	_, _, ok = table.intent(100, ActionKeyAnswer)
	assert.False(t, ok)

	// A server that hands out a new id on replace drops the old mapping.
	table.bind(5, 101, nil)
	_, _, ok = table.intent(100, ActionKeyDefault)
	assert.False(t, ok)
	assert.Equal(t, uint32(101), table.serverID(5))

	id, ok = table.unbindServer(101)
	require.True(t, ok)
	assert.Equal(t, int32(5), id)
	assert.Zero(t, table.serverID(5))

	_, ok = table.unbindServer(101)
	assert.False(t, ok)
}

func TestIntentsByKey(t *testing.T) {
	n := &model.Notification{
		ContentIntent: &model.Intent{RequestCode: 1},
		Call: &model.CallStyle{
			Decline: model.Intent{RequestCode: 3, Action: model.ActionDecline},
			Answer:  model.Intent{RequestCode: 4, Action: model.ActionAnswer},
		},
	}

	intents := intentsByKey(n)
	require.Len(t, intents, 3)
	assert.Equal(t, int32(4), intents[ActionKeyAnswer].RequestCode)
	assert.Equal(t, int32(3), intents[ActionKeyDecline].RequestCode)
}
