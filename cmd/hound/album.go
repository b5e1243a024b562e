package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/albumhound/internal/searcher"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

var wantCmd = &cobra.Command{
	Use:   "want <album-id>...",
	Short: "Mark albums as wanted",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWant,
}

var skipCmd = &cobra.Command{
	Use:   "skip <album-id>...",
	Short: "Mark albums as skipped",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(args, store.StatusSkipped)
	},
}

func init() {
	rootCmd.AddCommand(wantCmd)
	rootCmd.AddCommand(skipCmd)

	wantCmd.Flags().Bool("lossless", false, "only accept lossless releases")
	wantCmd.Flags().Bool("now", false, "search immediately")
}

func runWant(cmd *cobra.Command, args []string) error {
	status := store.StatusWanted
	if lossless, _ := cmd.Flags().GetBool("lossless"); lossless {
		status = store.StatusWantedLossless
	}
	if now, _ := cmd.Flags().GetBool("now"); !now {
		return setStatus(args, status)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	for _, id := range args {
		if err := a.store.SetAlbumStatus(id, status); err != nil {
			return err
		}
		out, err := a.searcher.SearchAlbum(cmd.Context(), id, searcher.Options{})
		if err != nil {
			util.WarnLog("Search for %s: %v", id, err)
			continue
		}
		printOutcome(out, false)
	}
	return nil
}

func setStatus(ids []string, status string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := store.Open(s.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	for _, id := range ids {
		a, err := db.GetAlbum(id)
		if err != nil {
			return err
		}
		if err := db.SetAlbumStatus(id, status); err != nil {
			return err
		}
		util.SuccessLog("%s - %s: %s -> %s", a.ArtistName, a.Title, a.Status, status)
	}
	return nil
}
