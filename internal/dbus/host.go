package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/livenotify/internal/host"
	"github.com/jmylchreest/livenotify/internal/model"
)

// Host posts composed notifications to an org.freedesktop.Notifications
// server and routes the server's ActionInvoked signals to a tap handler.
type Host struct {
	conn    *dbus.Conn
	appName string
	logger  *slog.Logger

	table *idTable

	mu        sync.RWMutex
	onTap     host.TapHandler
	onRemoved host.RemovedHandler
	running   bool
	signals chan *dbus.Signal
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHost creates a host on conn. appName is sent as the Notify app_name.
func NewHost(conn *dbus.Conn, appName string, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		conn:    conn,
		appName: appName,
		logger:  logger,
		table:   newIDTable(),
	}
}

// SetTapHandler sets the handler called when the user invokes an action.
func (h *Host) SetTapHandler(handler host.TapHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTap = handler
}

// SetRemovedHandler sets the handler called when the server closes a
// notification that was not cancelled through this host.
func (h *Host) SetRemovedHandler(handler host.RemovedHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRemoved = handler
}

// Start subscribes to the notification server signals.
func (h *Host) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return fmt.Errorf("host already running")
	}
	h.mu.Unlock()

	for _, member := range []string{"ActionInvoked", "NotificationClosed"} {
		if err := h.conn.AddMatchSignal(
			dbus.WithMatchObjectPath(FreedesktopPath),
			dbus.WithMatchInterface(FreedesktopInterface),
			dbus.WithMatchMember(member),
		); err != nil {
			return fmt.Errorf("failed to add match for %s: %w", member, err)
		}
	}

	h.mu.Lock()
	h.signals = make(chan *dbus.Signal, 32)
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	h.running = true
	h.mu.Unlock()

	h.conn.Signal(h.signals)
	go h.processSignals(h.signals, h.stopCh, h.doneCh)

	info, err := h.ServerInfo(context.Background())
	if err != nil {
		h.logger.Warn("notification server not reachable yet", "error", err)
	} else {
		h.logger.Info("using notification server", "name", info.Name, "vendor", info.Vendor, "version", info.Version)
	}
	return nil
}

// Stop stops routing signals.
func (h *Host) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	signals, stop, done := h.signals, h.stopCh, h.doneCh
	h.mu.Unlock()

	h.conn.RemoveSignal(signals)
	close(stop)
	<-done
}

// ServerInfo queries the notification server information.
func (h *Host) ServerInfo(ctx context.Context) (ServerInfo, error) {
	var info ServerInfo
	err := h.server().CallWithContext(ctx, FreedesktopInterface+".GetServerInformation", 0).
		Store(&info.Name, &info.Vendor, &info.Version, &info.SpecVersion)
	if err != nil {
		return info, fmt.Errorf("failed to get server information: %w", err)
	}
	return info, nil
}

// Capabilities queries the notification server capabilities.
func (h *Host) Capabilities(ctx context.Context) ([]string, error) {
	var caps []string
	if err := h.server().CallWithContext(ctx, FreedesktopInterface+".GetCapabilities", 0).Store(&caps); err != nil {
		return nil, fmt.Errorf("failed to get capabilities: %w", err)
	}
	return caps, nil
}

// SupportsActions reports whether the server advertises the actions
// capability.
func (h *Host) SupportsActions(ctx context.Context) (bool, error) {
	caps, err := h.Capabilities(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(caps, "actions"), nil
}

// Post shows n, replacing the notification previously posted with the same id.
func (h *Host) Post(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return errors.New("nil notification")
	}

	replaces := h.table.serverID(n.ID)
	call := BuildNotify(n, h.appName, replaces)

	var serverID uint32
	if err := h.server().CallWithContext(ctx, FreedesktopInterface+".Notify", 0, call.Args()...).Store(&serverID); err != nil {
		return fmt.Errorf("notify failed: %w", err)
	}

	h.table.bind(n.ID, serverID, intentsByKey(n))
	h.logger.Debug("notification sent",
		"id", n.ID,
		"server_id", serverID,
		"replaces_id", replaces,
		"actions", call.ActionKeys(),
	)
	return nil
}

// Cancel closes the notification posted with id. Unknown ids are a no-op.
func (h *Host) Cancel(ctx context.Context, id int32) error {
	serverID := h.table.serverID(id)
	if serverID == 0 {
		return nil
	}
	if err := h.server().CallWithContext(ctx, FreedesktopInterface+".CloseNotification", 0, serverID).Err; err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	h.table.unbindServer(serverID)
	return nil
}

func (h *Host) server() dbus.BusObject {
	return h.conn.Object(FreedesktopBusName, FreedesktopPath)
}

// processSignals runs until stop is closed or the connection closes signals.
func (h *Host) processSignals(signals <-chan *dbus.Signal, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			h.handleSignal(sig)
		}
	}
}

func (h *Host) handleSignal(sig *dbus.Signal) {
	if sig == nil || sig.Path != FreedesktopPath {
		return
	}
	switch sig.Name {
	case FreedesktopInterface + ".ActionInvoked":
		var (
			serverID uint32
			key      string
		)
		if err := dbus.Store(sig.Body, &serverID, &key); err != nil {
			h.logger.Debug("malformed ActionInvoked signal", "error", err)
			return
		}
		h.handleAction(serverID, key)
	case FreedesktopInterface + ".NotificationClosed":
		var serverID, reason uint32
		if err := dbus.Store(sig.Body, &serverID, &reason); err != nil {
			h.logger.Debug("malformed NotificationClosed signal", "error", err)
			return
		}
		h.handleClosed(serverID, CloseReason(reason))
	}
}

// handleClosed forgets a closed notification. Notifications closed by Cancel
// are already unbound, so only server-side closes reach the handler.
func (h *Host) handleClosed(serverID uint32, reason CloseReason) {
	id, ok := h.table.unbindServer(serverID)
	if !ok {
		return
	}

	h.mu.RLock()
	handler := h.onRemoved
	h.mu.RUnlock()

	h.logger.Debug("notification closed", "id", id, "reason", reason.String())
	if handler != nil {
		handler(id)
	}
}

func (h *Host) handleAction(serverID uint32, key string) {
	id, intent, ok := h.table.intent(serverID, key)
	if !ok {
		// Action on a notification from another application.
		return
	}

	h.mu.RLock()
	handler := h.onTap
	h.mu.RUnlock()

	h.logger.Debug("notification action invoked", "id", id, "action_key", key)
	if handler != nil {
		handler(id, intent)
	}
}

// intentsByKey maps server action keys to the notification's intents.
func intentsByKey(n *model.Notification) map[string]model.Intent {
	out := make(map[string]model.Intent)
	if n.ContentIntent != nil {
		out[ActionKeyDefault] = *n.ContentIntent
	}
	if n.Call != nil {
		out[ActionKeyAnswer] = n.Call.Answer
		out[ActionKeyDecline] = n.Call.Decline
	}
	return out
}

// idTable maps notification ids to server ids and their action intents.
type idTable struct {
	mu       sync.Mutex
	byID     map[int32]uint32
	byServer map[uint32]int32
	intents  map[uint32]map[string]model.Intent
}

func newIDTable() *idTable {
	return &idTable{
		byID:     make(map[int32]uint32),
		byServer: make(map[uint32]int32),
		intents:  make(map[uint32]map[string]model.Intent),
	}
}

func (t *idTable) serverID(id int32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byID[id]
}

func (t *idTable) bind(id int32, serverID uint32, intents map[string]model.Intent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.byID[id]; ok && old != serverID {
		delete(t.byServer, old)
		delete(t.intents, old)
	}
	t.byID[id] = serverID
	t.byServer[serverID] = id
	t.intents[serverID] = intents
}

func (t *idTable) unbindServer(serverID uint32) (int32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byServer[serverID]
	if !ok {
		return 0, false
	}
	delete(t.byServer, serverID)
	delete(t.intents, serverID)
	if t.byID[id] == serverID {
		delete(t.byID, id)
	}
	return id, true
}

func (t *idTable) intent(serverID uint32, key string) (int32, model.Intent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byServer[serverID]
	if !ok {
		return 0, model.Intent{}, false
	}
	intent, ok := t.intents[serverID][key]
	return id, intent, ok
}
