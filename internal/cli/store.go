package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joinboard/join/internal/docstore"
	"github.com/joinboard/join/internal/logger"
)

var storeAddr string

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Document store commands",
}

var storeServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a local path-addressed JSON document store",
	Long: `Serve a Firebase-style document store over HTTP. Every path is addressed as
{path}.json and supports GET, PUT, PATCH, POST and DELETE.

The tree is restored from and persisted to the snapshot configured under
docstore in .joinconfig (yaml, sqlite or none).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil {
			return fmt.Errorf("configuration not initialized")
		}
		snap, err := docstore.NewSnapshotter(Config.DocStore.Snapshot, Config.DocStore.Path)
		if err != nil {
			return fmt.Errorf("opening snapshot: %w", err)
		}

		srv, err := docstore.NewServer(docstore.Config{
			AuthToken: Config.Store.AuthToken,
			Snapshot:  snap,
			Logger:    logger.Named("docstore"),
		})
		if err != nil {
			_ = snap.Close()
			return fmt.Errorf("starting document store: %w", err)
		}

		addr := storeAddr
		if addr == "" {
			addr = Config.DocStore.Addr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Serving document store on http://%s\n", addr)
		if err := srv.Run(ctx, addr); err != nil {
			return fmt.Errorf("serving document store: %w", err)
		}
		return nil
	},
}

func init() {
	storeServeCmd.Flags().StringVar(&storeAddr, "addr", "", "Listen address (default from docstore.addr)")
	storeCmd.AddCommand(storeServeCmd)
	rootCmd.AddCommand(storeCmd)
}
