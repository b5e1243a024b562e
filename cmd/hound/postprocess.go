package main

import (
	"github.com/spf13/cobra"

	"github.com/franz/albumhound/internal/util"
)

var postprocessCmd = &cobra.Command{
	Use:   "postprocess",
	Short: "Import finished downloads into the library",
	Long: `Look for the download folder of every open snatch and import the ones
that have finished: verify the track count, rename, tag, fetch cover art
and move the files into the music directory.

With --dir a single folder is imported. The album is taken from --album or
guessed from the files' tags.`,
	Args: cobra.NoArgs,
	RunE: runPostprocess,
}

func init() {
	rootCmd.AddCommand(postprocessCmd)

	postprocessCmd.Flags().String("dir", "", "import this folder")
	postprocessCmd.Flags().String("album", "", "album ID of the folder given with --dir")
}

func runPostprocess(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	dir, _ := cmd.Flags().GetString("dir")
	albumID, _ := cmd.Flags().GetString("album")

	if dir != "" {
		out, err := a.processor.ProcessFolder(cmd.Context(), dir, albumID)
		if err != nil {
			return err
		}
		util.SuccessLog("Imported %d files into %s", out.Files, out.Dest)
		return nil
	}
	if albumID != "" {
		util.WarnLog("--album is only used together with --dir")
	}

	res, err := a.processor.Run(cmd.Context())
	if err != nil {
		return err
	}
	util.InfoLog("%d processed, %d failed, %d still downloading", res.Processed, res.Failed, res.Pending)
	return nil
}
