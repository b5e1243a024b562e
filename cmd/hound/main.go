package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "hound",
		Short: "albumhound - follow artists and fetch their albums automatically",
		Long: `hound follows artists on MusicBrainz, searches Usenet indexers, torrent
trackers and Soulseek for the albums you want, hands the best release to
your download client and files the finished download into your library.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/albumhound/hound.yaml)")
	rootCmd.PersistentFlags().String("db", "", "database file (default is $XDG_DATA_HOME/albumhound/hound.db)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig(cmd *cobra.Command, args []string) error {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	util.SetColors(util.IsTerminal(os.Stdout.Fd()))

	if err := config.Init(viper.GetViper(), cfgFile); err != nil {
		return err
	}
	// an empty --db must not hide the default or the config file value
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		viper.Set("db", db)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
