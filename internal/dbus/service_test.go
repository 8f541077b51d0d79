package dbus

import (
	"context"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/livenotify/internal/bridge"
	"github.com/jmylchreest/livenotify/internal/dispatch"
	"github.com/jmylchreest/livenotify/internal/model"
)

type recordingRenderer struct {
	styled   []model.StyledRequest
	bound    []model.BoundRequest
	canceled []int32
}

func (r *recordingRenderer) RenderBound(_ context.Context, req model.BoundRequest) error {
	r.bound = append(r.bound, req)
	return nil
}

func (r *recordingRenderer) RenderStyled(_ context.Context, req model.StyledRequest) error {
	r.styled = append(r.styled, req)
	return nil
}

func (r *recordingRenderer) Cancel(_ context.Context, id int32) error {
	r.canceled = append(r.canceled, id)
	return nil
}

func newTestService() (*Service, *recordingRenderer, *bridge.Bridge) {
	r := &recordingRenderer{}
	b := bridge.New(nil, nil)
	return NewService(nil, dispatch.NewHandler(r, nil), b, nil), r, b
}

func TestServiceInvoke(t *testing.T) {
	s, r, _ := newTestService()

	derr := s.Invoke(dispatch.AliasShow, map[string]dbus.Variant{
		"notificationId": dbus.MakeVariant(int32(2)),
		"title":          dbus.MakeVariant("Hello"),
		"style":          dbus.MakeVariant("progress"),
		"progress":       dbus.MakeVariant(int32(10)),
	})
	require.Nil(t, derr)

	require.Len(t, r.styled, 1)
	assert.Equal(t, int32(2), r.styled[0].ID)
	assert.Equal(t, "Hello", r.styled[0].Title)
	assert.Equal(t, 10, r.styled[0].Progress.Value)
	assert.Equal(t, 100, r.styled[0].Progress.Max)
}

func TestServiceInvokeErrors(t *testing.T) {
	s, _, _ := newTestService()

	derr := s.Invoke("dance", nil)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorPrefix+"NOT_IMPLEMENTED", derr.Name)

	derr = s.RenderStyledNotification(map[string]dbus.Variant{
		"notificationId": dbus.MakeVariant("one"),
	})
	require.NotNil(t, derr)
	assert.Equal(t, ErrorPrefix+"INVALID_ARGUMENT", derr.Name)
}

func TestServiceTypedMethods(t *testing.T) {
	s, r, _ := newTestService()

	require.Nil(t, s.RenderBoundNotification(map[string]dbus.Variant{
		"layoutName": dbus.MakeVariant("media"),
	}))
	require.Nil(t, s.CancelNotification(8))

	require.Len(t, r.bound, 1)
	assert.Equal(t, "media", r.bound[0].Template)
	assert.Equal(t, []int32{8}, r.canceled)
}

func TestServiceSubscribeOwnership(t *testing.T) {
	s, _, b := newTestService()

	require.Nil(t, s.Subscribe(":1.10"))
	assert.True(t, b.Subscribed())

	// A different client cannot drop the subscription.
	require.Nil(t, s.Unsubscribe(":1.11"))
	assert.True(t, b.Subscribed())

	// Last subscribe wins.
	require.Nil(t, s.Subscribe(":1.11"))
	require.Nil(t, s.Unsubscribe(":1.10"))
	assert.True(t, b.Subscribed())

	require.Nil(t, s.Unsubscribe(":1.11"))
	assert.False(t, b.Subscribed())
}

func TestServiceAttach(t *testing.T) {
	s, _, b := newTestService()

	derr := s.Attach(":1.5", dbus.ObjectPath("not a path"))
	require.NotNil(t, derr)
	assert.False(t, b.Attached())

	require.Nil(t, s.Attach(":1.5", "/app/callback"))
	assert.True(t, b.Attached())

	require.Nil(t, s.Detach(":1.6"))
	assert.True(t, b.Attached())

	assert.True(t, s.releaseInvoker(":1.5"))
	assert.False(t, b.Attached())
}

func TestIntrospection(t *testing.T) {
	names := map[string]bool{}
	for _, m := range apiMethods() {
		names[m.Name] = true
	}
	for _, want := range []string{
		"Invoke", "RenderBoundNotification", "RenderStyledNotification",
		"CancelNotification", "Subscribe", "Unsubscribe", "Attach", "Detach",
	} {
		assert.True(t, names[want], "missing method %s", want)
	}

	signals := apiSignals()
	require.Len(t, signals, 1)
	assert.Equal(t, PayloadSignal, signals[0].Name)
}
