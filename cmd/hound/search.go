package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/albumhound/internal/searcher"
	"github.com/franz/albumhound/internal/util"
)

var searchCmd = &cobra.Command{
	Use:   "search [album-id]",
	Short: "Search providers for wanted albums",
	Long: `Search every configured provider for one album, or for every wanted
album when no ID is given. The best accepted release is sent to the
download client.

With --dry-run the ranked results and the rejections are printed and
nothing is snatched. Searching a single album also snatches albums that
are not marked wanted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Bool("dry-run", false, "rank results without snatching")
	searchCmd.Flags().Bool("rejected", false, "also list rejected results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	showRejected, _ := cmd.Flags().GetBool("rejected")

	if len(args) == 0 {
		if dryRun {
			util.WarnLog("--dry-run only applies to a single album")
		}
		sum, err := a.searcher.SearchWanted(cmd.Context())
		if sum != nil {
			util.InfoLog("Searched %d albums: %d snatched, %d failed", sum.Searched, sum.Snatched, sum.Failed)
		}
		return err
	}

	out, err := a.searcher.SearchAlbum(cmd.Context(), args[0], searcher.Options{
		DryRun: dryRun,
		Manual: true,
	})
	if out != nil {
		printOutcome(out, showRejected || dryRun)
	}
	return err
}

func printOutcome(out *searcher.Outcome, rejected bool) {
	util.InfoLog("=== %s - %s ===", out.Artist, out.Album)
	util.InfoLog("Term: %q  quality: %s", out.Term, out.Quality)
	for _, p := range out.Providers {
		if p.Error != "" {
			util.WarnLog("  %-20s error: %s", p.Name, p.Error)
			continue
		}
		util.InfoLog("  %-20s %d results in %s", p.Name, p.Results, p.Duration.Round(time.Millisecond))
	}

	util.InfoLog("")
	util.InfoLog("Accepted (%d):", len(out.Accepted))
	for i, r := range out.Accepted {
		util.InfoLog("  %2d. [%6.1f] %s (%s, %s)", i+1, r.Score, r.Title, util.FormatBytes(r.Size), r.Provider)
	}

	if rejected && len(out.Rejected) > 0 {
		util.InfoLog("")
		util.InfoLog("Rejected (%d):", len(out.Rejected))
		for _, rj := range out.Rejected {
			util.InfoLog("  %s (%s): %s", rj.Result.Title, rj.Result.Provider, rj.Reason)
		}
	}

	if out.Snatched != nil {
		util.SuccessLog("Snatched %s via %s", out.Snatched.Title, out.Client)
	}
}
