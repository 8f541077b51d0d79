package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/livenotify/internal/bridge"
	"github.com/jmylchreest/livenotify/internal/compose"
	"github.com/jmylchreest/livenotify/internal/config"
	"github.com/jmylchreest/livenotify/internal/dispatch"
	"github.com/jmylchreest/livenotify/internal/host"
	"github.com/jmylchreest/livenotify/internal/layout"
	"github.com/jmylchreest/livenotify/internal/model"
	"github.com/jmylchreest/livenotify/internal/preview"
	"github.com/jmylchreest/livenotify/internal/units"
)

var previewOpts struct {
	hostVersion  int
	density      float64
	width        int
	templatesDir string
	tap          []int32
	noPresence   bool
}

var previewCmd = &cobra.Command{
	Use:   "preview <request.yaml>...",
	Short: "Compose request files offline and draw the result",
	Long: `Compose request files exactly as livenotifyd would, against an in-memory
notification host, and draw the notifications left showing.

Every document of every file is applied in order, so later documents with
the same notificationId replace earlier ones and cancelNotification
documents remove them. --tap simulates tapping a notification afterwards
and prints the payload the embedding application would receive.

Examples:
  livenotify preview delivery.yaml
  livenotify preview --host-version 33 call.yaml
  livenotify preview --tap 5 order.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	f := previewCmd.Flags()
	f.IntVar(&previewOpts.hostVersion, "host-version", 0, "Host capability level (default from config)")
	f.Float64Var(&previewOpts.density, "density", 0, "Display density in px per dp (default from config)")
	f.IntVar(&previewOpts.width, "width", 0, "Card width (default from config)")
	f.StringVar(&previewOpts.templatesDir, "templates", "", "User template directory (default: daemon template dir)")
	f.Int32SliceVar(&previewOpts.tap, "tap", nil, "Tap the content target of these ids after composing")
	f.BoolVar(&previewOpts.noPresence, "no-presence", false, "Simulate a host without a foreground presence")
}

// previewSession is an offline daemon: the real composer and dispatch
// boundary on an in-memory host.
type previewSession struct {
	registry *host.Registry
	handler  *dispatch.Handler
	bridge   *bridge.Bridge
	taps     []*string
}

func newPreviewSession(opts compose.Options, templatesDir string, presence bool) (*previewSession, error) {
	templates := layout.NewRegistry(logger)
	if _, err := templates.LoadDir(templatesDir); err != nil {
		return nil, err
	}

	s := &previewSession{registry: host.NewRegistry(logger)}
	composer := compose.New(s.registry, templates, opts, logger)
	if presence {
		composer.SetPresence(compose.NewCompanionPresence(s.registry, opts.ChannelID))
	}
	s.handler = dispatch.NewHandler(composer, logger)

	// Inline delivery: the preview has no event loop to hop onto.
	s.bridge = bridge.New(nil, logger)
	s.bridge.Subscribe(bridge.SinkFunc(func(payload *string) error {
		s.taps = append(s.taps, payload)
		return nil
	}))
	s.registry.SetTapHandler(func(_ int32, intent model.Intent) {
		s.bridge.Deliver(intent.Payload)
	})
	s.registry.SetRemovedHandler(func(id int32) {
		composer.Removed(context.Background(), id)
	})
	return s, nil
}

func (s *previewSession) apply(ctx context.Context, reqs []Request) error {
	for i, req := range reqs {
		if err := s.handler.Invoke(ctx, req.Method, dispatch.Args(req.Args)); err != nil {
			return fmt.Errorf("request %d (%s): %w", i+1, req.Method, err)
		}
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	pc := getConfig().Preview
	if cmd.Flags().Changed("host-version") {
		pc.HostVersion = previewOpts.hostVersion
	}
	if cmd.Flags().Changed("density") {
		pc.Density = previewOpts.density
	}
	if cmd.Flags().Changed("width") {
		pc.Width = previewOpts.width
	}
	templatesDir := previewOpts.templatesDir
	if templatesDir == "" {
		templatesDir = config.DefaultDaemonConfig().TemplateDir()
	}

	opts := compose.DefaultOptions()
	opts.Host.Version = pc.HostVersion
	opts.Metrics = units.DisplayMetrics{Density: pc.Density}

	session, err := newPreviewSession(opts, templatesDir, !previewOpts.noPresence)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, path := range args {
		reqs, err := LoadRequests(path)
		if err != nil {
			return err
		}
		if err := session.apply(ctx, reqs); err != nil {
			var de *dispatch.Error
			if errors.As(err, &de) && de.Details != "" {
				logger.Debug("request details", "details", de.Details)
			}
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	renderer := preview.New(preview.Options{Width: pc.Width, ShowDiagnostics: pc.ShowDiagnostics})
	active := session.registry.Active()
	if len(active) == 0 {
		fmt.Println("(no notifications showing)")
	} else {
		fmt.Println(renderer.RenderAll(active))
	}

	for _, id := range previewOpts.tap {
		if err := session.registry.Tap(id, model.ActionTap); err != nil {
			return err
		}
	}
	printTaps(os.Stdout, session.taps)
	return nil
}

func printTaps(w io.Writer, taps []*string) {
	for _, p := range taps {
		if p == nil {
			fmt.Fprintln(w, "tap -> <no payload>")
			continue
		}
		fmt.Fprintf(w, "tap -> %q\n", *p)
	}
}
