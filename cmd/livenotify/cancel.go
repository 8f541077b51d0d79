package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <id>...",
	Short: "Cancel notifications",
	Long: `Cancel one or more notifications by id. Cancelling an id that is not
showing is not an error.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	ids := make([]int32, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid notification id %q", arg)
		}
		ids = append(ids, int32(id))
	}

	conn, client, err := connectClient()
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, id := range ids {
		ctx, cancel := callContext()
		err := client.Cancel(ctx, id)
		cancel()
		if err != nil {
			return fmt.Errorf("cancel %d failed: %w", id, err)
		}
	}
	return nil
}
