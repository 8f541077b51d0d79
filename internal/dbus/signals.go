package dbus

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/godbus/dbus/v5"
)

// payloadBody encodes an optional payload as (b has_payload, s payload).
func payloadBody(payload *string) []any {
	if payload == nil {
		return []any{false, ""}
	}
	return []any{true, *payload}
}

// PayloadFromBody decodes a (bs) payload body. A false flag yields nil.
func PayloadFromBody(body []any) (*string, error) {
	var (
		has     bool
		payload string
	)
	if err := dbus.Store(body, &has, &payload); err != nil {
		return nil, fmt.Errorf("malformed payload body: %w", err)
	}
	if !has {
		return nil, nil
	}
	return &payload, nil
}

// signalSink emits tap payloads as a signal addressed to one subscriber.
type signalSink struct {
	conn *dbus.Conn
	dest string
}

// Emit sends the PayloadReceived signal to the subscriber only.
func (s *signalSink) Emit(payload *string) error {
	if s.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	body := payloadBody(payload)
	msg := &dbus.Message{
		Type: dbus.TypeSignal,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldPath:        dbus.MakeVariant(dbus.ObjectPath(APIPath)),
			dbus.FieldInterface:   dbus.MakeVariant(APIInterface),
			dbus.FieldMember:      dbus.MakeVariant(PayloadSignal),
			dbus.FieldDestination: dbus.MakeVariant(s.dest),
			dbus.FieldSignature:   dbus.MakeVariant(dbus.SignatureOf(body...)),
		},
		Body: body,
	}

	if call := s.conn.Send(msg, nil); call.Err != nil {
		return fmt.Errorf("failed to emit %s signal: %w", PayloadSignal, call.Err)
	}
	return nil
}

// callbackInvoker calls methods on an attached embedding application object.
type callbackInvoker struct {
	conn *dbus.Conn
	dest string
	path dbus.ObjectPath
}

// InvokeMethod calls CallbackInterface.<Method> with the payload without
// waiting for a reply.
func (c *callbackInvoker) InvokeMethod(method string, payload *string) error {
	if c.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	member := CallbackInterface + "." + exportedName(method)
	call := c.conn.Object(c.dest, c.path).Call(member, dbus.FlagNoReplyExpected, payloadBody(payload)...)
	if call.Err != nil {
		return fmt.Errorf("failed to call %s: %w", member, call.Err)
	}
	return nil
}

// exportedName converts a method-channel name to a D-Bus member name,
// e.g. onNotificationTapped to OnNotificationTapped.
func exportedName(method string) string {
	r, size := utf8.DecodeRuneInString(method)
	if r == utf8.RuneError {
		return method
	}
	var b strings.Builder
	b.WriteRune(unicode.ToUpper(r))
	b.WriteString(method[size:])
	return b.String()
}
