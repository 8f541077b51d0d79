package compose

import (
	"context"
	"sync"

	"github.com/jmylchreest/livenotify/internal/model"
)

// Companion notification shown while the foreground presence is held.
const (
	CompanionID    int32 = 9999
	CompanionTitle       = "Call in progress"
	CompanionText        = "Tap to return to call"
)

// NoticeID is reserved for livenotifyd's own notices.
const NoticeID int32 = CompanionID - 1

// CompanionPresence holds the foreground presence by keeping a persistent
// companion notification posted.
type CompanionPresence struct {
	poster    Poster
	channelID string

	mu      sync.Mutex
	running bool
}

// NewCompanionPresence creates a presence posting through poster.
func NewCompanionPresence(poster Poster, channelID string) *CompanionPresence {
	if channelID == "" {
		channelID = DefaultChannelID
	}
	return &CompanionPresence{poster: poster, channelID: channelID}
}

// Start posts the companion notification. Starting twice is a no-op.
func (p *CompanionPresence) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	n, err := model.NewNotification(CompanionID, p.channelID)
	if err != nil {
		return err
	}
	n.Title = CompanionTitle
	n.Text = CompanionText
	n.SmallIcon = DefaultSmallIcon
	n.Style = model.StyleKindBigText
	n.BigText = CompanionText
	n.Category = model.CategoryCall
	n.Priority = model.PriorityHigh
	n.Ongoing = true
	n.ContentIntent = &model.Intent{RequestCode: CompanionID, Action: model.ActionTap}

	if err := p.poster.Post(ctx, n); err != nil {
		return err
	}
	p.running = true
	return nil
}

// Stop removes the companion notification.
func (p *CompanionPresence) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	if err := p.poster.Cancel(ctx, CompanionID); err != nil {
		return err
	}
	p.running = false
	return nil
}

// Running reports whether the presence is held.
func (p *CompanionPresence) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
