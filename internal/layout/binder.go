package layout

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"

	"github.com/jmylchreest/livenotify/internal/imaging"
	"github.com/jmylchreest/livenotify/internal/units"
)

// SlotKind is the kind of data a descriptor carries.
type SlotKind string

const (
	KindText  SlotKind = "textView"
	KindImage SlotKind = "imageView"
)

// Binding errors recorded as diagnostics.
var (
	ErrUnknownSlot  = errors.New("slot not found in template")
	ErrKindMismatch = errors.New("descriptor kind does not match slot type")
	ErrUnknownKind  = errors.New("unknown descriptor kind")
)

// Descriptor carries the data to apply to one named slot.
// Optional fields are nil when absent.
type Descriptor struct {
	Slot string
	Kind SlotKind

	// Translation offsets in dp, relative to the slot's own area.
	X *float64
	Y *float64

	// Text slots.
	Text      *string
	TextColor *imaging.Color
	TextSize  *float64

	// Image slots. Width and height are in dp.
	ImageBytes []byte
	Width      *float64
	Height     *float64
}

// slotType returns the template element type able to host the kind.
func (k SlotKind) slotType() (ElementType, bool) {
	switch k {
	case KindText:
		return ElementTypeText, true
	case KindImage:
		return ElementTypeImage, true
	default:
		return "", false
	}
}

// BoundSlot is the data applied to one slot.
type BoundSlot struct {
	Handle SlotHandle

	// Translation offsets in device pixels.
	TranslationX *int
	TranslationY *int

	Text      *string
	TextColor *imaging.Color
	// TextSize is in the text unit space and is applied unconverted.
	TextSize *float64

	Image image.Image
	// Scaled reports whether Image was resampled to an explicit size.
	Scaled bool
}

// Diagnostic records a descriptor that was skipped or partially applied.
type Diagnostic struct {
	Slot string
	Err  error
}

// String returns a human-readable form of the diagnostic.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %v", d.Slot, d.Err)
}

// BoundView is a template with per-slot data applied, ready for display.
type BoundView struct {
	Template    *Template
	Slots       []BoundSlot // In template order.
	Diagnostics []Diagnostic
}

// Slot returns the bound data for a slot name.
func (v *BoundView) Slot(name string) (BoundSlot, bool) {
	for _, s := range v.Slots {
		if s.Handle.Name == name {
			return s, true
		}
	}
	return BoundSlot{}, false
}

// Binder applies descriptors to templates.
type Binder struct {
	logger *slog.Logger
}

// NewBinder creates a new Binder.
func NewBinder(logger *slog.Logger) *Binder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{logger: logger}
}

// Bind applies each descriptor to its slot in tmpl. A descriptor that cannot
// be applied is skipped and reported in the view's diagnostics; Bind never
// fails as a whole.
func (b *Binder) Bind(tmpl *Template, descriptors []Descriptor, metrics units.DisplayMetrics) *BoundView {
	view := &BoundView{Template: tmpl}
	bound := make(map[int]*BoundSlot)

	for _, d := range descriptors {
		slot, err := b.resolve(tmpl, d, bound)
		if err != nil {
			view.diagnose(b.logger, d.Slot, err)
			continue
		}

		if d.X != nil {
			px := units.ToPixels(*d.X, metrics)
			slot.TranslationX = &px
		}
		if d.Y != nil {
			px := units.ToPixels(*d.Y, metrics)
			slot.TranslationY = &px
		}

		switch d.Kind {
		case KindText:
			if d.Text != nil {
				slot.Text = d.Text
			}
			if d.TextColor != nil {
				slot.TextColor = d.TextColor
			}
			if d.TextSize != nil {
				slot.TextSize = d.TextSize
			}
		case KindImage:
			if err := b.bindImage(slot, d, metrics); err != nil {
				view.diagnose(b.logger, d.Slot, err)
			}
		}
	}

	view.Slots = make([]BoundSlot, 0, len(bound))
	for _, s := range bound {
		view.Slots = append(view.Slots, *s)
	}
	sort.Slice(view.Slots, func(i, j int) bool {
		return view.Slots[i].Handle.Index < view.Slots[j].Handle.Index
	})
	return view
}

// resolve finds (or creates) the bound slot a descriptor targets.
func (b *Binder) resolve(tmpl *Template, d Descriptor, bound map[int]*BoundSlot) (*BoundSlot, error) {
	want, ok := d.Kind.slotType()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}
	if tmpl == nil {
		return nil, ErrUnknownSlot
	}
	handle, ok := tmpl.Slot(d.Slot)
	if !ok {
		return nil, ErrUnknownSlot
	}
	if handle.Type != want {
		return nil, fmt.Errorf("%w: %s slot cannot take %s", ErrKindMismatch, handle.Type, d.Kind)
	}

	slot, ok := bound[handle.Index]
	if !ok {
		slot = &BoundSlot{Handle: handle}
		bound[handle.Index] = slot
	}
	return slot, nil
}

// bindImage decodes and optionally scales the descriptor image into slot.
// Scaling happens only when both width and height are present; otherwise the
// decoded image is bound unscaled. On failure the slot image is left unset.
func (b *Binder) bindImage(slot *BoundSlot, d Descriptor, metrics units.DisplayMetrics) error {
	if d.ImageBytes == nil {
		return nil
	}

	var target *imaging.Size
	if d.Width != nil && d.Height != nil {
		target = &imaging.Size{
			Width:  units.ToPixels(*d.Width, metrics),
			Height: units.ToPixels(*d.Height, metrics),
		}
	}

	img, err := imaging.DecodeAndScale(d.ImageBytes, target)
	if err != nil {
		return err
	}

	slot.Image = img
	slot.Scaled = target != nil
	if target != nil {
		b.logger.Debug("bound scaled image", "slot", d.Slot, "size", target.String())
	} else {
		b.logger.Debug("bound unscaled image", "slot", d.Slot,
			"size", imaging.Size{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}.String())
	}
	return nil
}

func (v *BoundView) diagnose(logger *slog.Logger, slot string, err error) {
	v.Diagnostics = append(v.Diagnostics, Diagnostic{Slot: slot, Err: err})
	template := ""
	if v.Template != nil {
		template = v.Template.Name
	}
	logger.Warn("skipped slot binding", "template", template, "slot", slot, "error", err)
}
