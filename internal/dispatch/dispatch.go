// Package dispatch is the request boundary between transports and the
// composer. It maps method names to typed requests and turns every failure,
// including panics, into a structured *Error.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/jmylchreest/livenotify/internal/model"
)

// Method names.
const (
	MethodRenderBound  = "renderBoundNotification"
	MethodRenderStyled = "renderStyledNotification"
	MethodCancel       = "cancelNotification"

	// Older names still sent by some embedding applications.
	AliasShowLayout = "showLayoutNotification"
	AliasShow       = "showNotification"
)

// Renderer renders and cancels notifications.
type Renderer interface {
	RenderBound(ctx context.Context, req model.BoundRequest) error
	RenderStyled(ctx context.Context, req model.StyledRequest) error
	Cancel(ctx context.Context, id int32) error
}

// Handler dispatches method calls to a Renderer.
type Handler struct {
	renderer Renderer
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(renderer Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{renderer: renderer, logger: logger}
}

// Methods returns the method names Invoke accepts, aliases included.
func Methods() []string {
	return []string{MethodRenderBound, MethodRenderStyled, MethodCancel, AliasShowLayout, AliasShow}
}

// Invoke handles a named method call. The returned error is nil or *Error.
func (h *Handler) Invoke(ctx context.Context, method string, args Args) error {
	switch method {
	case MethodRenderBound, AliasShowLayout:
		return h.RenderBound(ctx, args)
	case MethodRenderStyled, AliasShow:
		return h.RenderStyled(ctx, args)
	case MethodCancel:
		return h.Cancel(ctx, args)
	default:
		h.logger.Debug("unknown method", "method", method)
		return &Error{Code: CodeNotImplemented, Message: fmt.Sprintf("method %q not implemented", method)}
	}
}

// RenderBound decodes args and renders a bound notification.
func (h *Handler) RenderBound(ctx context.Context, args Args) error {
	return h.guard(MethodRenderBound, func() error {
		req, err := DecodeBound(args)
		if err != nil {
			return err
		}
		return h.renderer.RenderBound(ctx, req)
	})
}

// RenderStyled decodes args and renders a styled notification.
func (h *Handler) RenderStyled(ctx context.Context, args Args) error {
	return h.guard(MethodRenderStyled, func() error {
		req, err := DecodeStyled(args)
		if err != nil {
			return err
		}
		return h.renderer.RenderStyled(ctx, req)
	})
}

// Cancel decodes args and cancels a notification.
func (h *Handler) Cancel(ctx context.Context, args Args) error {
	return h.guard(MethodCancel, func() error {
		id, err := DecodeCancel(args)
		if err != nil {
			return err
		}
		return h.renderer.Cancel(ctx, id)
	})
}

// CancelID cancels a notification by id.
func (h *Handler) CancelID(ctx context.Context, id int32) error {
	return h.guard(MethodCancel, func() error {
		if err := checkID(id); err != nil {
			return err
		}
		return h.renderer.Cancel(ctx, id)
	})
}

// guard runs fn and converts its error or panic to an *Error.
func (h *Handler) guard(method string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			h.logger.Error("panic while handling request", "method", method, "panic", r)
			err = &Error{Code: CodeNativeError, Message: fmt.Sprint(r), Details: stack}
		}
	}()

	if err := fn(); err != nil {
		h.logger.Warn("request failed", "method", method, "error", err)
		return toError(err)
	}
	return nil
}

func toError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	code := CodeNativeError
	if errors.Is(err, ErrInvalidArgument) {
		code = CodeInvalidArgument
	}
	return &Error{Code: code, Message: err.Error(), Details: fmt.Sprintf("%+v", err)}
}
