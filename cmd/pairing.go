package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vimalinx/vimagram/internal/config"
	"github.com/vimalinx/vimagram/internal/store/sqlite"
)

func pairingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairing",
		Short: "Manage DM pairing requests",
	}
	cmd.AddCommand(pairingListCmd())
	cmd.AddCommand(pairingApproveCmd())
	return cmd
}

// openDataStore opens the gateway's sqlite data store off the loaded config.
func openDataStore() (*sqlite.Store, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	dataDir := config.ExpandHome(cfg.Data.Dir)
	if dataDir == "" {
		dataDir = config.ExpandHome("~/.vimagram/data")
	}
	return sqlite.Open(filepath.Join(dataDir, "vimagram.db"))
}

func pairingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending pairing requests",
		Run: func(cmd *cobra.Command, args []string) {
			db, err := openDataStore()
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			defer db.Close()

			reqs, err := db.ListPairingRequests(context.Background())
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			if len(reqs) == 0 {
				fmt.Println("No pending pairing requests.")
				return
			}
			for _, r := range reqs {
				name := r.SenderName
				if name == "" {
					name = "(no name)"
				}
				fmt.Printf("%s  %s  %s  %s  %s\n",
					r.Code, r.ChannelID, r.SenderID, name,
					r.CreatedAt.Format("2006-01-02 15:04"))
			}
		},
	}
}

func pairingApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <code>",
		Short: "Approve a pairing request, adding the sender to the allowlist",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			db, err := openDataStore()
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			defer db.Close()

			req, err := db.ApprovePairing(context.Background(), args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			fmt.Printf("Approved sender %s on %s. They can message again now.\n",
				req.SenderID, req.ChannelID)
		},
	}
}
