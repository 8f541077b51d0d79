package dispatch

import (
	"sort"

	"github.com/jmylchreest/livenotify/internal/compose"
	"github.com/jmylchreest/livenotify/internal/imaging"
	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/model"
	"github.com/jmylchreest/livenotify/internal/progress"
)

// Argument keys.
const (
	KeyNotificationID        = "notificationId"
	KeyLayoutName            = "layoutName"
	KeyViewData              = "viewData"
	KeyOngoing               = "ongoing"
	KeyPayload               = "payload"
	KeySmallIconName         = "smallIconName"
	KeyTitle                 = "title"
	KeyText                  = "text"
	KeyStyle                 = "style"
	KeySubText               = "subText"
	KeyLargeIcon             = "largeIcon"
	KeyFullScreen            = "fullScreen"
	KeyProgress              = "progress"
	KeyProgressMax           = "progressMax"
	KeyProgressIndeterminate = "progressIndeterminate"
	KeyProgressSegments      = "progressSegments"
	KeyProgressPoints        = "progressPoints"
	KeyProgressTrackerIcon   = "progressTrackerIcon"
)

// viewData descriptor keys.
const (
	viewKeyType       = "type"
	viewKeyX          = "x"
	viewKeyY          = "y"
	viewKeyText       = "text"
	viewKeyTextColor  = "textColor"
	viewKeyTextSize   = "textSize"
	viewKeyImageBytes = "imageBytes"
	viewKeyWidth      = "width"
	viewKeyHeight     = "height"
	segmentKeyLength  = "progress"
	segmentKeyColor   = "color"
)

// DecodeBound decodes the arguments of a bound render request, applying the
// defaults for absent keys.
func DecodeBound(args Args) (model.BoundRequest, error) {
	var (
		req model.BoundRequest
		err error
	)

	if req.ID, err = decodeID(args); err != nil {
		return req, err
	}
	if req.Template, err = args.StringOr(KeyLayoutName, ""); err != nil {
		return req, err
	}
	if req.Ongoing, err = args.Bool(KeyOngoing, model.DefaultOngoing); err != nil {
		return req, err
	}
	if req.Payload, err = args.OptString(KeyPayload); err != nil {
		return req, err
	}
	if req.SmallIcon, err = args.StringOr(KeySmallIconName, ""); err != nil {
		return req, err
	}
	if req.Title, err = args.StringOr(KeyTitle, ""); err != nil {
		return req, err
	}

	viewData, err := args.Map(KeyViewData)
	if err != nil {
		return req, err
	}
	if req.Bindings, err = decodeViewData(viewData); err != nil {
		return req, err
	}
	return req, nil
}

// decodeViewData converts the slot-keyed view data map to descriptors, in
// slot name order. Fields of the wrong type are ignored.
func decodeViewData(viewData Args) ([]layout.Descriptor, error) {
	if len(viewData) == 0 {
		return nil, nil
	}

	slots := make([]string, 0, len(viewData))
	for slot := range viewData {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	descs := make([]layout.Descriptor, 0, len(slots))
	for _, slot := range slots {
		data, ok := asMap(viewData[slot])
		if !ok {
			return nil, invalidArgument(KeyViewData, "slot %q: want map, got %T", slot, viewData[slot])
		}

		d := layout.Descriptor{
			Slot: slot,
			X:    data.looseFloat(viewKeyX),
			Y:    data.looseFloat(viewKeyY),
		}
		if kind := data.looseString(viewKeyType); kind != nil {
			d.Kind = layout.SlotKind(*kind)
		}

		switch d.Kind {
		case layout.KindText:
			d.Text = data.looseString(viewKeyText)
			if v, ok := data.looseInt(viewKeyTextColor); ok {
				c := imaging.ColorFromInt(v)
				d.TextColor = &c
			}
			d.TextSize = data.looseFloat(viewKeyTextSize)
		case layout.KindImage:
			d.ImageBytes = data.looseBytes(viewKeyImageBytes)
			d.Width = data.looseFloat(viewKeyWidth)
			d.Height = data.looseFloat(viewKeyHeight)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// DecodeStyled decodes the arguments of a styled render request, applying
// the defaults for absent keys.
func DecodeStyled(args Args) (model.StyledRequest, error) {
	var (
		req model.StyledRequest
		err error
	)

	if req.ID, err = decodeID(args); err != nil {
		return req, err
	}
	if req.Title, err = args.StringOr(KeyTitle, ""); err != nil {
		return req, err
	}
	if req.Text, err = args.StringOr(KeyText, ""); err != nil {
		return req, err
	}
	if req.Ongoing, err = args.Bool(KeyOngoing, model.DefaultOngoing); err != nil {
		return req, err
	}
	if req.Payload, err = args.OptString(KeyPayload); err != nil {
		return req, err
	}
	style, err := args.StringOr(KeyStyle, "")
	if err != nil {
		return req, err
	}
	req.Style = model.ParseStyle(style)

	if req.SubText, err = args.StringOr(KeySubText, ""); err != nil {
		return req, err
	}
	if req.LargeIcon, err = args.Bytes(KeyLargeIcon); err != nil {
		return req, err
	}
	if req.FullScreen, err = args.Bool(KeyFullScreen, false); err != nil {
		return req, err
	}

	if req.Style == model.StyleProgress {
		if req.Progress, err = decodeProgress(args); err != nil {
			return req, err
		}
	}
	return req, nil
}

func decodeProgress(args Args) (model.ProgressParams, error) {
	var p model.ProgressParams

	value, err := args.Int(KeyProgress, 0)
	if err != nil {
		return p, err
	}
	maxValue, err := args.Int(KeyProgressMax, model.DefaultProgressMax)
	if err != nil {
		return p, err
	}
	p.Value, p.Max = int(value), int(maxValue)

	if p.Indeterminate, err = args.Bool(KeyProgressIndeterminate, false); err != nil {
		return p, err
	}
	if p.TrackerIcon, err = args.Bytes(KeyProgressTrackerIcon); err != nil {
		return p, err
	}

	segments, err := args.List(KeyProgressSegments)
	if err != nil {
		return p, err
	}
	for i, s := range segments {
		length, color, err := decodeMark(KeyProgressSegments, i, s)
		if err != nil {
			return p, err
		}
		p.Segments = append(p.Segments, progress.Segment{Length: length, Color: color})
	}

	points, err := args.List(KeyProgressPoints)
	if err != nil {
		return p, err
	}
	for i, pt := range points {
		position, color, err := decodeMark(KeyProgressPoints, i, pt)
		if err != nil {
			return p, err
		}
		p.Points = append(p.Points, progress.Point{Position: position, Color: color})
	}
	return p, nil
}

// decodeMark decodes a segment or point entry. The length or position is
// required; the color is optional.
func decodeMark(key string, i int, m Args) (int, *imaging.Color, error) {
	v, ok := m.looseInt(segmentKeyLength)
	if !ok {
		return 0, nil, invalidArgument(key, "element %d: missing integer %q", i, segmentKeyLength)
	}

	var color *imaging.Color
	if c, ok := m.looseInt(segmentKeyColor); ok {
		cc := imaging.ColorFromInt(c)
		color = &cc
	}
	return int(v), color, nil
}

// DecodeCancel decodes the notification id of a cancel request.
func DecodeCancel(args Args) (int32, error) {
	return decodeID(args)
}

// decodeID reads the notification id, rejecting ids reserved for
// livenotifyd and ids whose request codes would overflow.
func decodeID(args Args) (int32, error) {
	id, err := args.Int32(KeyNotificationID, 0)
	if err != nil {
		return 0, err
	}
	return id, checkID(id)
}

func checkID(id int32) error {
	if err := compose.CheckID(id); err != nil {
		return invalidArgument(KeyNotificationID, "%v", err)
	}
	return nil
}
