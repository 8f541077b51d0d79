package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/livenotify/internal/dispatch"
	"github.com/jmylchreest/livenotify/internal/layout"
)

var showOpts struct {
	file          string
	id            int32
	title         string
	text          string
	subText       string
	style         string
	icon          string
	payload       string
	largeIcon     string
	progress      int
	progressMax   int
	indeterminate bool
	ongoing       bool
	fullScreen    bool
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Render a styled notification",
	Long: `Render a plain, progress or call notification through livenotifyd.

Arguments come from flags, or from a YAML request file with -f. A request
file may hold several documents separated by '---'; they are sent in order,
so a file can describe a sequence of progress updates.

Examples:
  livenotify show --id 1 --title "Upload" --style progress --progress 40
  livenotify show --id 2 --title "Alex" --style call --payload call:42
  livenotify show -f delivery.yaml`,
	RunE: runShow,
}

var showBoundOpts struct {
	file    string
	id      int32
	layout  string
	title   string
	icon    string
	payload string
	ongoing bool
	text    map[string]string
	image   map[string]string
}

var showBoundCmd = &cobra.Command{
	Use:   "show-bound",
	Short: "Render a notification from a layout template",
	Long: `Render a notification whose body is a layout template with data bound
to its named slots.

Text slots are set with --text slot=value and image slots with
--image slot=path. Use 'livenotify templates' to list templates and slots.

Examples:
  livenotify show-bound --id 3 --layout delivery --text status="Out for delivery"
  livenotify show-bound -f ride.yaml`,
	RunE: runShowBound,
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(showBoundCmd)

	f := showCmd.Flags()
	f.StringVarP(&showOpts.file, "file", "f", "", "YAML request file")
	f.Int32Var(&showOpts.id, "id", 0, "Notification id (same id replaces)")
	f.StringVar(&showOpts.title, "title", "", "Title")
	f.StringVar(&showOpts.text, "text", "", "Body text")
	f.StringVar(&showOpts.subText, "sub-text", "", "Sub text")
	f.StringVar(&showOpts.style, "style", "plain", "Style (plain, progress, call)")
	f.StringVar(&showOpts.icon, "icon", "", "Small icon name")
	f.StringVar(&showOpts.payload, "payload", "", "Payload delivered when tapped")
	f.StringVar(&showOpts.largeIcon, "large-icon", "", "Large icon image file")
	f.IntVar(&showOpts.progress, "progress", 0, "Progress value")
	f.IntVar(&showOpts.progressMax, "max", 100, "Progress maximum")
	f.BoolVar(&showOpts.indeterminate, "indeterminate", false, "Indeterminate progress")
	f.BoolVar(&showOpts.ongoing, "ongoing", true, "Ongoing (not dismissable)")
	f.BoolVar(&showOpts.fullScreen, "full-screen", false, "Request full-screen treatment")

	bf := showBoundCmd.Flags()
	bf.StringVarP(&showBoundOpts.file, "file", "f", "", "YAML request file")
	bf.Int32Var(&showBoundOpts.id, "id", 0, "Notification id (same id replaces)")
	bf.StringVar(&showBoundOpts.layout, "layout", "", "Layout template name")
	bf.StringVar(&showBoundOpts.title, "title", "", "Title")
	bf.StringVar(&showBoundOpts.icon, "icon", "", "Small icon name")
	bf.StringVar(&showBoundOpts.payload, "payload", "", "Payload delivered when tapped")
	bf.BoolVar(&showBoundOpts.ongoing, "ongoing", true, "Ongoing (not dismissable)")
	bf.StringToStringVar(&showBoundOpts.text, "text", nil, "Text slot value (slot=value)")
	bf.StringToStringVar(&showBoundOpts.image, "image", nil, "Image slot file (slot=path)")
}

func runShow(cmd *cobra.Command, args []string) error {
	if showOpts.file != "" {
		reqs, err := LoadRequests(showOpts.file)
		if err != nil {
			return err
		}
		return sendRequests(reqs)
	}

	reqArgs, err := styledArgsFromFlags(cmd)
	if err != nil {
		return err
	}
	return sendRequests([]Request{{Method: dispatch.MethodRenderStyled, Args: reqArgs}})
}

// styledArgsFromFlags builds request arguments from the show flags. Only
// flags the user set are sent, so daemon-side defaults apply otherwise.
func styledArgsFromFlags(cmd *cobra.Command) (map[string]any, error) {
	f := cmd.Flags()
	args := map[string]any{
		dispatch.KeyNotificationID: showOpts.id,
		dispatch.KeyStyle:          showOpts.style,
	}
	setIf := func(flag, key string, value any) {
		if f.Changed(flag) {
			args[key] = value
		}
	}
	setIf("title", dispatch.KeyTitle, showOpts.title)
	setIf("text", dispatch.KeyText, showOpts.text)
	setIf("sub-text", dispatch.KeySubText, showOpts.subText)
	setIf("icon", dispatch.KeySmallIconName, showOpts.icon)
	setIf("payload", dispatch.KeyPayload, showOpts.payload)
	setIf("progress", dispatch.KeyProgress, showOpts.progress)
	setIf("max", dispatch.KeyProgressMax, showOpts.progressMax)
	setIf("indeterminate", dispatch.KeyProgressIndeterminate, showOpts.indeterminate)
	setIf("ongoing", dispatch.KeyOngoing, showOpts.ongoing)
	setIf("full-screen", dispatch.KeyFullScreen, showOpts.fullScreen)

	if showOpts.largeIcon != "" {
		data, err := os.ReadFile(showOpts.largeIcon)
		if err != nil {
			return nil, fmt.Errorf("failed to read large icon: %w", err)
		}
		args[dispatch.KeyLargeIcon] = data
	}
	return args, nil
}

func runShowBound(cmd *cobra.Command, args []string) error {
	if showBoundOpts.file != "" {
		reqs, err := LoadRequests(showBoundOpts.file)
		if err != nil {
			return err
		}
		return sendRequests(reqs)
	}
	if showBoundOpts.layout == "" {
		return errors.New("--layout or --file is required")
	}

	reqArgs, err := boundArgsFromFlags(cmd)
	if err != nil {
		return err
	}
	return sendRequests([]Request{{Method: dispatch.MethodRenderBound, Args: reqArgs}})
}

func boundArgsFromFlags(cmd *cobra.Command) (map[string]any, error) {
	f := cmd.Flags()
	args := map[string]any{
		dispatch.KeyNotificationID: showBoundOpts.id,
		dispatch.KeyLayoutName:     showBoundOpts.layout,
	}
	if f.Changed("title") {
		args[dispatch.KeyTitle] = showBoundOpts.title
	}
	if f.Changed("icon") {
		args[dispatch.KeySmallIconName] = showBoundOpts.icon
	}
	if f.Changed("payload") {
		args[dispatch.KeyPayload] = showBoundOpts.payload
	}
	if f.Changed("ongoing") {
		args[dispatch.KeyOngoing] = showBoundOpts.ongoing
	}

	viewData, err := viewDataFromFlags(showBoundOpts.text, showBoundOpts.image)
	if err != nil {
		return nil, err
	}
	if len(viewData) > 0 {
		args[dispatch.KeyViewData] = viewData
	}
	return args, nil
}

// viewDataFromFlags builds descriptors for --text and --image slot values.
// A text value of the form "text|#AARRGGBB" also sets the text color.
func viewDataFromFlags(text, images map[string]string) (map[string]any, error) {
	viewData := make(map[string]any, len(text)+len(images))
	for slot, value := range text {
		desc := map[string]any{"type": string(layout.KindText), "text": value}
		if body, color, ok := strings.Cut(value, "|#"); ok {
			c, err := strconv.ParseUint(color, 16, 32)
			if err != nil {
				return nil, fmt.Errorf("slot %s: invalid color %q", slot, color)
			}
			desc["text"] = body
			desc["textColor"] = int64(c)
		}
		viewData[slot] = desc
	}
	for slot, path := range images {
		if _, dup := viewData[slot]; dup {
			return nil, fmt.Errorf("slot %s given as both text and image", slot)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", slot, err)
		}
		viewData[slot] = map[string]any{"type": string(layout.KindImage), "imageBytes": data}
	}
	return viewData, nil
}
