// Command wlinfo is a small diagnostic CLI: it connects to a Wayland
// compositor, loads the given protocol XML descriptions, and prints the
// globals the compositor advertises. It is a pure consumer of the
// github.com/benmoran56/wayland engine, not a core protocol feature.
package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/benmoran56/wayland"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var socketPath string
	var syncTimeout time.Duration

	root := &cobra.Command{
		Use:   "wlinfo [flags] protocol.xml [protocol.xml...]",
		Short: "Connect to a Wayland compositor and report its advertised globals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []wayland.ClientOption{
				wayland.WithSyncTimeout(syncTimeout),
			}
			if socketPath != "" {
				opts = append(opts, wayland.WithSocketPath(socketPath))
			}

			client, err := wayland.NewClient(args, opts...)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer client.Close()

			globals := client.Globals()
			sort.Slice(globals, func(i, j int) bool { return globals[i].Name < globals[j].Name })

			for _, g := range globals {
				fmt.Printf("%-4d %-32s v%d\n", g.Name, g.Interface, g.Version)
			}
			return nil
		},
	}

	root.Flags().StringVar(&socketPath, "socket", "", "override the compositor socket path")
	root.Flags().DurationVar(&syncTimeout, "sync-timeout", 5*time.Second, "timeout for the initial registry sync")

	return root
}
