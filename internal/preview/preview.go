// Package preview renders composed notifications as terminal cards, so
// requests can be checked without a notification server.
package preview

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/livenotify/internal/imaging"
	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/model"
	"github.com/jmylchreest/livenotify/internal/progress"
)

// DefaultWidth is the card width used when none is configured.
const DefaultWidth = 48

// Options configures a Renderer.
type Options struct {
	// Width is the outer card width in cells.
	Width int
	// ShowDiagnostics lists skipped bindings of custom views.
	ShowDiagnostics bool
}

// Renderer draws notifications.
type Renderer struct {
	opts Options

	card    lipgloss.Style
	header  lipgloss.Style
	title   lipgloss.Style
	muted   lipgloss.Style
	answer  lipgloss.Style
	decline lipgloss.Style
	warn    lipgloss.Style
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	return &Renderer{
		opts: opts,
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1).
			Width(opts.Width - 2),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		title:   lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		answer:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		decline: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// innerWidth is the usable width inside border and padding.
func (r *Renderer) innerWidth() int {
	w := r.opts.Width - 4
	if w < 8 {
		w = 8
	}
	return w
}

// Render draws one notification.
func (r *Renderer) Render(n *model.Notification) string {
	var lines []string

	lines = append(lines, r.header.Render(headerLine(n)))
	if n.Title != "" {
		lines = append(lines, r.title.Render(n.Title))
	}

	switch n.Style {
	case model.StyleKindBigText:
		if n.BigText != "" {
			lines = append(lines, n.BigText)
		}
	case model.StyleKindProgress:
		if n.Text != "" {
			lines = append(lines, n.Text)
		}
		if n.Progress != nil {
			lines = append(lines, progressLine(*n.Progress, r.innerWidth()))
		}
	case model.StyleKindSegmentedProgress:
		if n.Text != "" {
			lines = append(lines, n.Text)
		}
		if n.Segmented != nil {
			lines = append(lines, r.segmentedLine(n.Segmented))
		}
	case model.StyleKindCall:
		lines = append(lines, r.callLines(n)...)
	case model.StyleKindCustomView:
		lines = append(lines, r.customViewLines(n.CustomView)...)
	default:
		if n.Text != "" {
			lines = append(lines, n.Text)
		}
	}

	if n.SubText != "" {
		lines = append(lines, r.muted.Render(n.SubText))
	}
	if n.LargeIcon != nil {
		lines = append(lines, r.muted.Render("large icon "+imageSummary(n.LargeIcon)))
	}
	lines = append(lines, r.muted.Render(footerLine(n)))

	return r.card.Render(strings.Join(lines, "\n"))
}

// RenderAll draws notifications one below the other.
func (r *Renderer) RenderAll(ns []*model.Notification) string {
	cards := make([]string, 0, len(ns))
	for _, n := range ns {
		cards = append(cards, r.Render(n))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func headerLine(n *model.Notification) string {
	parts := []string{}
	if n.SmallIcon != "" {
		parts = append(parts, n.SmallIcon)
	}
	parts = append(parts, n.ChannelID)
	if n.Category != "" {
		parts = append(parts, string(n.Category))
	}
	parts = append(parts, n.Priority.String())
	return fmt.Sprintf("%s  #%d", strings.Join(parts, " · "), n.ID)
}

func footerLine(n *model.Notification) string {
	var flags []string
	if n.Ongoing {
		flags = append(flags, "ongoing")
	}
	if n.AutoCancel {
		flags = append(flags, "auto-cancel")
	}
	if n.PromotedOngoing {
		flags = append(flags, "promoted")
	}
	if n.FullScreenIntent != nil {
		flags = append(flags, fmt.Sprintf("full-screen(%d)", n.FullScreenIntent.RequestCode))
	}
	if n.Degraded {
		flags = append(flags, "degraded")
	}
	if n.ContentIntent != nil && n.ContentIntent.Payload != nil {
		flags = append(flags, fmt.Sprintf("payload %q", *n.ContentIntent.Payload))
	}
	if !n.CreatedAt.IsZero() {
		flags = append(flags, humanize.Time(n.CreatedAt))
	}
	return strings.Join(flags, " · ")
}

func (r *Renderer) callLines(n *model.Notification) []string {
	if n.Call == nil {
		return nil
	}
	lines := []string{"Incoming call from " + n.Call.Caller.Name}
	if n.Text != "" {
		lines = append(lines, n.Text)
	}
	lines = append(lines, r.decline.Render("[ Decline ]")+"  "+r.answer.Render("[ Answer ]"))
	return lines
}

func (r *Renderer) customViewLines(v *layout.BoundView) []string {
	if v == nil {
		return nil
	}
	name := "?"
	if v.Template != nil {
		name = v.Template.Name
	}
	lines := []string{r.muted.Render("layout " + name)}

	for _, s := range v.Slots {
		lines = append(lines, slotLine(s))
	}
	if r.opts.ShowDiagnostics {
		for _, d := range v.Diagnostics {
			lines = append(lines, r.warn.Render("! "+d.String()))
		}
	}
	return lines
}

func slotLine(s layout.BoundSlot) string {
	var b strings.Builder
	b.WriteString(s.Handle.Name)
	b.WriteString(": ")

	switch {
	case s.Text != nil:
		text := *s.Text
		if s.TextColor != nil {
			text = lipgloss.NewStyle().Foreground(lipgloss.Color(s.TextColor.Hex())).Render(text)
		}
		b.WriteString(text)
		if s.TextSize != nil {
			fmt.Fprintf(&b, " (%gsp)", *s.TextSize)
		}
	case s.Image != nil:
		b.WriteString("image " + imageSummary(s.Image))
		if s.Scaled {
			b.WriteString(" scaled")
		}
	default:
		b.WriteString("-")
	}

	if s.TranslationX != nil || s.TranslationY != nil {
		fmt.Fprintf(&b, " @%+d,%+d", deref(s.TranslationX), deref(s.TranslationY))
	}
	return b.String()
}

func imageSummary(img image.Image) string {
	data := imaging.ToImageData(img)
	return fmt.Sprintf("%d×%d (%s)", data.Width, data.Height, humanize.Bytes(uint64(len(data.Data))))
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// progressLine draws a linear bar followed by its percentage.
func progressLine(p model.LinearProgress, width int) string {
	barWidth := width - 6
	if barWidth < 4 {
		barWidth = 4
	}
	if p.Indeterminate {
		return indeterminateBar(barWidth)
	}
	filled := int(p.Fraction() * float64(barWidth))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) +
		fmt.Sprintf(" %3d%%", int(p.Fraction()*100))
}

func indeterminateBar(width int) string {
	pattern := []rune("░▒▓▒")
	out := make([]rune, width)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return string(out)
}

// span is a run of bar cells drawn in one segment's color.
type span struct {
	start, end int // [start, end) in cells
	color      *imaging.Color
}

// segmentSpans lays the segments of m onto width cells. Every segment with
// a positive length gets at least one cell while cells remain.
func segmentSpans(m *progress.Model, width int) []span {
	total := m.Max()
	if total <= 0 || width <= 0 {
		return nil
	}
	var spans []span
	acc, prev := 0, 0
	for _, s := range m.Segments {
		if s.Length <= 0 {
			continue
		}
		acc += s.Length
		end := acc * width / total
		if end <= prev && prev < width {
			end = prev + 1
		}
		if end > width {
			end = width
		}
		if end > prev {
			spans = append(spans, span{start: prev, end: end, color: s.Color})
		}
		prev = end
	}
	return spans
}

// cellAt maps a track position onto a cell index.
func cellAt(pos, total, width int) int {
	if total <= 0 {
		return 0
	}
	c := pos * width / total
	if c >= width {
		c = width - 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func (r *Renderer) segmentedLine(m *progress.Model) string {
	width := r.innerWidth()
	total := m.Max()

	marks := map[int]rune{}
	for _, p := range m.Points {
		marks[cellAt(p.Position, total, width)] = '◆'
	}
	tracker := cellAt(m.Value, total, width)
	if total > 0 {
		marks[tracker] = '▲'
	}

	var b strings.Builder
	for _, sp := range segmentSpans(m, width) {
		style := lipgloss.NewStyle()
		if sp.color != nil {
			style = style.Foreground(lipgloss.Color(sp.color.Hex()))
		}
		var cells strings.Builder
		for i := sp.start; i < sp.end; i++ {
			switch {
			case marks[i] != 0:
				cells.WriteRune(marks[i])
			case i < tracker:
				cells.WriteRune('█')
			default:
				cells.WriteRune('░')
			}
		}
		b.WriteString(style.Render(cells.String()))
	}
	return b.String() + fmt.Sprintf("\n%d / %d", m.Value, total)
}
