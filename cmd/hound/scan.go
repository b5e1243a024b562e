package main

import (
	"github.com/spf13/cobra"

	"github.com/franz/albumhound/internal/util"
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Scan the music directory and match files to albums",
	Long: `Walk the music directory (or dir), read the tags of every audio file and
link the files to the tracks of known albums. Albums whose tracks are all
present become Downloaded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	root := a.settings.Get().Library.MusicDir
	if len(args) == 1 {
		root = args[0]
	}

	util.InfoLog("=== Scanning %s ===", root)
	res, err := a.scanner.Scan(cmd.Context(), root)
	if err != nil {
		return err
	}

	util.SuccessLog("Scanned %d files: %d matched, %d unmatched", res.Files, res.Matched, res.Unmatched)
	for _, id := range res.Completed {
		if al, err := a.store.GetAlbum(id); err == nil {
			util.InfoLog("  Complete: %s - %s", al.ArtistName, al.Title)
		}
	}
	if len(res.Errors) > 0 {
		util.WarnLog("%d files could not be read", len(res.Errors))
		for _, e := range res.Errors {
			util.DebugLog("  %v", e)
		}
	}
	return nil
}
