package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
)

var listenOpts struct {
	jsonOutput bool
	noCallback bool
	count      int
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print tap payloads as they arrive",
	Long: `Subscribe to the tap payload stream of livenotifyd and print each payload.

Unless --no-callback is given, a callback object is also attached, so each
tap is printed once for the stream and once for the direct callback. Only
one listener receives payloads at a time; the most recent one wins.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().BoolVar(&listenOpts.jsonOutput, "json", false, "Output JSON lines")
	listenCmd.Flags().BoolVar(&listenOpts.noCallback, "no-callback", false, "Only listen on the stream")
	listenCmd.Flags().IntVarP(&listenOpts.count, "count", "n", 0, "Exit after this many payloads")
}

// tapEvent is one printed payload.
type tapEvent struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Payload *string   `json:"payload"`
}

func runListen(cmd *cobra.Command, args []string) error {
	conn, client, err := connectClient()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var path godbus.ObjectPath
	if !listenOpts.noCallback {
		path = godbus.ObjectPath(getConfig().Client.CallbackPath)
		if path != "" && !path.IsValid() {
			return fmt.Errorf("invalid callback path %q", path)
		}
	}

	var (
		mu   sync.Mutex
		seen int
		enc  = json.NewEncoder(os.Stdout)
	)
	sink := func(source string, payload *string) {
		mu.Lock()
		defer mu.Unlock()

		ev := tapEvent{Time: time.Now(), Source: source, Payload: payload}
		if listenOpts.jsonOutput {
			_ = enc.Encode(ev)
		} else {
			fmt.Println(formatTap(ev))
		}

		seen++
		if listenOpts.count > 0 && seen >= listenOpts.count {
			cancel()
		}
	}

	logger.Debug("listening for taps", "callback", path)
	return client.Listen(ctx, path, sink)
}

func formatTap(ev tapEvent) string {
	payload := "<none>"
	if ev.Payload != nil {
		payload = *ev.Payload
	}
	return fmt.Sprintf("%s  %-20s %s", ev.Time.Format(time.TimeOnly), ev.Source, payload)
}
