package dbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/livenotify/internal/bridge"
	"github.com/jmylchreest/livenotify/internal/dispatch"
)

const (
	// APIInterface is the embedding application interface name.
	APIInterface = "io.github.jmylchreest.LiveNotify"
	// APIPath is the embedding application object path.
	APIPath = "/io/github/jmylchreest/LiveNotify"
	// APIBusName is the bus name claimed by the daemon.
	APIBusName = "io.github.jmylchreest.LiveNotify"
	// CallbackInterface is implemented by attached embedding applications.
	CallbackInterface = APIInterface + ".Callback"
	// PayloadSignal is the tap payload stream signal.
	PayloadSignal = "PayloadReceived"
)

// DefaultCallTimeout bounds one request handled by the service.
const DefaultCallTimeout = 10 * time.Second

// Service exports the embedding application interface on the bus.
type Service struct {
	conn    *dbus.Conn
	handler *dispatch.Handler
	bridge  *bridge.Bridge
	logger  *slog.Logger
	timeout time.Duration

	mu         sync.Mutex
	subscriber string // Unique bus name of the stream subscriber.
	attached   string // Unique bus name of the callback owner.
	running    bool
	signals    chan *dbus.Signal
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewService creates a service dispatching requests to handler and
// registering subscribers on b.
func NewService(conn *dbus.Conn, handler *dispatch.Handler, b *bridge.Bridge, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		conn:    conn,
		handler: handler,
		bridge:  b,
		logger:  logger,
		timeout: DefaultCallTimeout,
	}
}

// SetCallTimeout sets the time limit of a single request.
func (s *Service) SetCallTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultCallTimeout
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
}

// Start exports the service and claims the bus name.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("service already running")
	}
	s.mu.Unlock()

	if err := s.conn.Export(s, APIPath, APIInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: APIPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    APIInterface,
				Methods: apiMethods(),
				Signals: apiSignals(),
			},
		},
	}
	if err := s.conn.Export(introspect.NewIntrospectable(node), APIPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := s.conn.RequestName(APIBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", APIBusName)
	}

	// Drop registrations of clients that leave the bus.
	if err := s.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		s.logger.Warn("failed to watch bus name owners", "error", err)
	}

	s.mu.Lock()
	s.signals = make(chan *dbus.Signal, 16)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.conn.Signal(s.signals)
	go s.watchOwners(s.signals, s.stopCh, s.doneCh)

	s.logger.Info("D-Bus service started", "interface", APIInterface, "path", APIPath)
	return nil
}

// Stop releases the bus name and unexports the service.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	signals, stop, done := s.signals, s.stopCh, s.doneCh
	s.mu.Unlock()

	s.conn.RemoveSignal(signals)
	close(stop)
	<-done

	if _, err := s.conn.ReleaseName(APIBusName); err != nil {
		s.logger.Warn("failed to release bus name", "error", err)
	}
	_ = s.conn.Export(nil, APIPath, APIInterface)
	_ = s.conn.Export(nil, APIPath, "org.freedesktop.DBus.Introspectable")

	s.logger.Info("D-Bus service stopped")
	return nil
}

func (s *Service) context() (context.Context, context.CancelFunc) {
	s.mu.Lock()
	timeout := s.timeout
	s.mu.Unlock()
	return context.WithTimeout(context.Background(), timeout)
}

// Invoke handles a generic method call.
// D-Bus method: Invoke(sa{sv}) -> nothing
func (s *Service) Invoke(method string, args map[string]dbus.Variant) *dbus.Error {
	s.logger.Debug("Invoke called", "method", method)
	ctx, cancel := s.context()
	defer cancel()
	return ToDBusError(s.handler.Invoke(ctx, method, ArgsFromVariants(args)))
}

// RenderBoundNotification renders a template-bound notification.
// D-Bus method: RenderBoundNotification(a{sv}) -> nothing
func (s *Service) RenderBoundNotification(args map[string]dbus.Variant) *dbus.Error {
	ctx, cancel := s.context()
	defer cancel()
	return ToDBusError(s.handler.RenderBound(ctx, ArgsFromVariants(args)))
}

// RenderStyledNotification renders a styled notification.
// D-Bus method: RenderStyledNotification(a{sv}) -> nothing
func (s *Service) RenderStyledNotification(args map[string]dbus.Variant) *dbus.Error {
	ctx, cancel := s.context()
	defer cancel()
	return ToDBusError(s.handler.RenderStyled(ctx, ArgsFromVariants(args)))
}

// CancelNotification cancels a notification.
// D-Bus method: CancelNotification(i) -> nothing
func (s *Service) CancelNotification(id int32) *dbus.Error {
	ctx, cancel := s.context()
	defer cancel()
	return ToDBusError(s.handler.CancelID(ctx, id))
}

// Subscribe makes the caller the tap payload stream subscriber.
// D-Bus method: Subscribe() -> nothing
func (s *Service) Subscribe(sender dbus.Sender) *dbus.Error {
	s.mu.Lock()
	s.subscriber = string(sender)
	s.bridge.Subscribe(&signalSink{conn: s.conn, dest: string(sender)})
	s.mu.Unlock()

	s.logger.Debug("stream subscriber registered", "sender", sender)
	return nil
}

// Unsubscribe clears the stream subscriber if the caller holds it.
// D-Bus method: Unsubscribe() -> nothing
func (s *Service) Unsubscribe(sender dbus.Sender) *dbus.Error {
	if s.releaseSubscriber(string(sender)) {
		s.logger.Debug("stream subscriber removed", "sender", sender)
	}
	return nil
}

// Attach registers the caller's callback object.
// D-Bus method: Attach(o) -> nothing
func (s *Service) Attach(sender dbus.Sender, path dbus.ObjectPath) *dbus.Error {
	if !path.IsValid() {
		return ToDBusError(&dispatch.Error{Code: dispatch.CodeInvalidArgument, Message: "invalid object path"})
	}

	s.mu.Lock()
	s.attached = string(sender)
	s.bridge.Attach(&callbackInvoker{conn: s.conn, dest: string(sender), path: path})
	s.mu.Unlock()

	s.logger.Debug("callback attached", "sender", sender, "path", path)
	return nil
}

// Detach removes the callback object if the caller owns it.
// D-Bus method: Detach() -> nothing
func (s *Service) Detach(sender dbus.Sender) *dbus.Error {
	if s.releaseInvoker(string(sender)) {
		s.logger.Debug("callback detached", "sender", sender)
	}
	return nil
}

func (s *Service) releaseSubscriber(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscriber == "" || s.subscriber != name {
		return false
	}
	s.subscriber = ""
	s.bridge.Unsubscribe()
	return true
}

func (s *Service) releaseInvoker(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached == "" || s.attached != name {
		return false
	}
	s.attached = ""
	s.bridge.Detach()
	return true
}

func (s *Service) watchOwners(signals <-chan *dbus.Signal, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" {
				continue
			}
			var name, oldOwner, newOwner string
			if err := dbus.Store(sig.Body, &name, &oldOwner, &newOwner); err != nil || newOwner != "" {
				continue
			}
			if s.releaseSubscriber(name) {
				s.logger.Debug("stream subscriber left the bus", "name", name)
			}
			if s.releaseInvoker(name) {
				s.logger.Debug("callback owner left the bus", "name", name)
			}
		}
	}
}

func apiMethods() []introspect.Method {
	args := introspect.Arg{Name: "args", Type: "a{sv}", Direction: "in"}
	return []introspect.Method{
		{
			Name: "Invoke",
			Args: []introspect.Arg{
				{Name: "method", Type: "s", Direction: "in"},
				args,
			},
		},
		{Name: "RenderBoundNotification", Args: []introspect.Arg{args}},
		{Name: "RenderStyledNotification", Args: []introspect.Arg{args}},
		{
			Name: "CancelNotification",
			Args: []introspect.Arg{
				{Name: "id", Type: "i", Direction: "in"},
			},
		},
		{Name: "Subscribe"},
		{Name: "Unsubscribe"},
		{
			Name: "Attach",
			Args: []introspect.Arg{
				{Name: "callback", Type: "o", Direction: "in"},
			},
		},
		{Name: "Detach"},
	}
}

func apiSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: PayloadSignal,
			Args: []introspect.Arg{
				{Name: "has_payload", Type: "b"},
				{Name: "payload", Type: "s"},
			},
		},
	}
}
