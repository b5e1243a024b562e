package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/albumhound/internal/util"
)

var addCmd = &cobra.Command{
	Use:   "add <mbid|name>",
	Short: "Follow an artist and import its albums",
	Long: `Follow an artist by MusicBrainz ID or by name.

Names are looked up on MusicBrainz and the best match is used; pass --list
to see the candidates first. Every release group of the configured types is
imported. New albums are Skipped unless autowant applies.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [artist-id]",
	Short: "Re-read artists from MusicBrainz",
	Long: `Refresh one artist, or every artist that is not paused, picking up new
release groups and track list changes. Album statuses you set are kept.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(refreshCmd)

	addCmd.Flags().Bool("list", false, "list matching artists without adding")
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if list, _ := cmd.Flags().GetBool("list"); list {
		artists, err := a.importer.FindArtist(ctx, args[0])
		if err != nil {
			return err
		}
		if len(artists) == 0 {
			util.WarnLog("No artists match %q", args[0])
			return nil
		}
		for _, ar := range artists {
			line := fmt.Sprintf("%s  %-30s score=%d", ar.ID, ar.Name, ar.Score)
			if ar.Disambiguation != "" {
				line += fmt.Sprintf(" (%s)", ar.Disambiguation)
			}
			util.InfoLog("%s", line)
		}
		return nil
	}

	id, err := a.importer.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	util.InfoLog("Importing %s, this takes about one second per release group...", id)
	res, err := a.importer.AddArtist(ctx, id)
	if err != nil {
		return err
	}
	util.SuccessLog("Added %s: %d albums (%d new, %d wanted)", res.Name, res.Albums, res.New, res.Wanted)
	if res.Failed > 0 {
		util.WarnLog("%d release groups could not be imported", res.Failed)
	}
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if len(args) == 1 {
		res, err := a.importer.RefreshArtist(ctx, args[0])
		if err != nil {
			return err
		}
		util.SuccessLog("Refreshed %s: %d albums (%d new)", res.Name, res.Albums, res.New)
		return nil
	}

	n, err := a.importer.RefreshAll(ctx)
	util.InfoLog("Refreshed %d artists", n)
	return err
}
