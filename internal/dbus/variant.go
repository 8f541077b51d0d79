package dbus

import (
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/livenotify/internal/dispatch"
)

// ErrorPrefix prefixes the D-Bus error names of dispatch error codes.
const ErrorPrefix = APIInterface + ".Error."

// ArgsFromVariants unwraps a received a{sv} argument map, recursively, into
// plain Go values.
func ArgsFromVariants(m map[string]dbus.Variant) dispatch.Args {
	args := make(dispatch.Args, len(m))
	for k, v := range m {
		args[k] = Normalize(v)
	}
	return args
}

// Normalize unwraps variants and converts nested a{sv} maps and arrays to
// map[string]any and []any.
func Normalize(v any) any {
	switch val := v.(type) {
	case dbus.Variant:
		return Normalize(val.Value())
	case map[string]dbus.Variant:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case []map[string]dbus.Variant:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case []dbus.Variant:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	default:
		return v
	}
}

// ToVariants converts a plain argument map into an a{sv} map for sending.
// int values are sent as int64; lists of maps become aa{sv}.
func ToVariants(args map[string]any) map[string]dbus.Variant {
	out := make(map[string]dbus.Variant, len(args))
	for k, v := range args {
		if v == nil {
			continue
		}
		out[k] = dbus.MakeVariant(wireValue(v))
	}
	return out
}

func wireValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case uint:
		return uint64(val)
	case map[string]any:
		return ToVariants(val)
	case dispatch.Args:
		return ToVariants(val)
	case []map[string]any:
		out := make([]map[string]dbus.Variant, len(val))
		for i, m := range val {
			out[i] = ToVariants(m)
		}
		return out
	case []any:
		maps := make([]map[string]dbus.Variant, 0, len(val))
		for _, item := range val {
			m, ok := item.(map[string]any)
			if !ok {
				return variantList(val)
			}
			maps = append(maps, ToVariants(m))
		}
		return maps
	default:
		return v
	}
}

func variantList(items []any) []dbus.Variant {
	out := make([]dbus.Variant, len(items))
	for i, item := range items {
		out[i] = dbus.MakeVariant(wireValue(item))
	}
	return out
}

// ToDBusError converts a dispatch error to a D-Bus error reply. A nil err
// returns nil.
func ToDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	var de *dispatch.Error
	if !errors.As(err, &de) {
		de = &dispatch.Error{Code: dispatch.CodeNativeError, Message: err.Error()}
	}
	return &dbus.Error{
		Name: ErrorPrefix + string(de.Code),
		Body: []any{de.Message, de.Details},
	}
}

// FromDBusError converts a D-Bus error reply with a dispatch error name back
// into a *dispatch.Error. Other errors are returned unchanged.
func FromDBusError(err error) error {
	if err == nil {
		return nil
	}

	var (
		name string
		body []any
	)
	var ptr *dbus.Error
	var val dbus.Error
	switch {
	case errors.As(err, &ptr):
		name, body = ptr.Name, ptr.Body
	case errors.As(err, &val):
		name, body = val.Name, val.Body
	default:
		return err
	}

	if len(name) <= len(ErrorPrefix) || name[:len(ErrorPrefix)] != ErrorPrefix {
		return err
	}
	de := &dispatch.Error{Code: dispatch.Code(name[len(ErrorPrefix):])}
	if len(body) > 0 {
		de.Message, _ = body[0].(string)
	}
	if len(body) > 1 {
		de.Details, _ = body[1].(string)
	}
	return de
}
