package dbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/livenotify/internal/bridge"
)

// Client talks to a running daemon over its embedding application interface.
type Client struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

// NewClient creates a client on conn.
func NewClient(conn *dbus.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{conn: conn, logger: logger}
}

func (c *Client) daemon() dbus.BusObject {
	return c.conn.Object(APIBusName, APIPath)
}

func (c *Client) call(ctx context.Context, member string, args ...any) error {
	err := c.daemon().CallWithContext(ctx, APIInterface+"."+member, 0, args...).Err
	return FromDBusError(err)
}

// Invoke calls a method by name through the generic method channel.
func (c *Client) Invoke(ctx context.Context, method string, args map[string]any) error {
	return c.call(ctx, "Invoke", method, ToVariants(args))
}

// RenderBound renders a template-bound notification.
func (c *Client) RenderBound(ctx context.Context, args map[string]any) error {
	return c.call(ctx, "RenderBoundNotification", ToVariants(args))
}

// RenderStyled renders a styled notification.
func (c *Client) RenderStyled(ctx context.Context, args map[string]any) error {
	return c.call(ctx, "RenderStyledNotification", ToVariants(args))
}

// Cancel cancels a notification.
func (c *Client) Cancel(ctx context.Context, id int32) error {
	return c.call(ctx, "CancelNotification", id)
}

// Listen subscribes to the tap payload stream and, when callbackPath is not
// empty, attaches a callback object exported at that path. Each tap is passed
// to sink once per path. Listen blocks until ctx is done.
func (c *Client) Listen(ctx context.Context, callbackPath dbus.ObjectPath, sink func(source string, payload *string)) error {
	if err := c.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(APIPath),
		dbus.WithMatchInterface(APIInterface),
		dbus.WithMatchMember(PayloadSignal),
	); err != nil {
		return fmt.Errorf("failed to add match: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)
	defer c.conn.RemoveSignal(signals)

	if err := c.call(ctx, "Subscribe"); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	defer func() {
		if err := c.call(context.Background(), "Unsubscribe"); err != nil {
			c.logger.Debug("unsubscribe failed", "error", err)
		}
	}()

	if callbackPath != "" {
		cb := &callbackObject{sink: sink}
		if err := c.conn.Export(cb, callbackPath, CallbackInterface); err != nil {
			return fmt.Errorf("failed to export callback: %w", err)
		}
		defer func() { _ = c.conn.Export(nil, callbackPath, CallbackInterface) }()

		if err := c.call(ctx, "Attach", callbackPath); err != nil {
			return fmt.Errorf("attach failed: %w", err)
		}
		defer func() {
			if err := c.call(context.Background(), "Detach"); err != nil {
				c.logger.Debug("detach failed", "error", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("connection closed")
			}
			if sig.Name != APIInterface+"."+PayloadSignal {
				continue
			}
			payload, err := PayloadFromBody(sig.Body)
			if err != nil {
				c.logger.Debug("ignoring signal", "error", err)
				continue
			}
			sink("stream", payload)
		}
	}
}

// callbackObject is exported by listening clients to receive direct
// callback invocations.
type callbackObject struct {
	sink func(source string, payload *string)
}

// OnNotificationTapped receives a tap payload.
// D-Bus method: OnNotificationTapped(bs) -> nothing
func (o *callbackObject) OnNotificationTapped(has bool, payload string) *dbus.Error {
	if !has {
		o.sink(bridge.TapMethod, nil)
		return nil
	}
	o.sink(bridge.TapMethod, &payload)
	return nil
}
