// Package dbus is the D-Bus transport. It contains a client host that posts
// composed notifications to an org.freedesktop.Notifications server, the
// io.github.jmylchreest.LiveNotify service that embedding applications call,
// and a client for that service.
package dbus
