// SPDX-License-Identifier: MIT
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"vizsync/internal/config"
	"vizsync/pkg/build"
)

// Options is the parsed command line: which command to run plus the flags
// each command consumes. The YAML config supplies everything else.
type Options struct {
	Command    string // "serve", "analyze", "compile" or "list"
	ConfigPath string
	Verbose    bool

	// analyze
	WAVPath  string
	SourceID string

	// compile
	MIDIPath     string
	NowSec       float64
	LookAheadSec float64
	BPM          float64
}

// ParseArgs builds the CLI and executes it against os.Args. The returned
// Options carry the selected command; an empty Command means cobra already
// handled everything (help, version).
func ParseArgs() (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{
		LookAheadSec: config.DefaultLookAheadSec,
		BPM:          config.DefaultBPM,
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Tempo-synced audio feature analysis and MIDI playback scheduling",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = "serve"
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&options.ConfigPath, "config", "f", "",
		"Path to a YAML config file (default searches ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the schedule service",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "serve"
		},
	}
	rootCmd.AddCommand(serveCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Analyze a WAV file and print the resulting feature tracks",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "analyze"
			options.WAVPath = args[0]
		},
	}
	analyzeCmd.Flags().StringVarP(&options.SourceID, "source-id", "i", "",
		"Source ID for the cache (defaults to the file name)")
	rootCmd.AddCommand(analyzeCmd)

	compileCmd := &cobra.Command{
		Use:   "compile <file.mid>",
		Short: "Compile one lookahead window from a MIDI file and print it as JSON",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "compile"
			options.MIDIPath = args[0]
		},
	}
	compileCmd.Flags().Float64VarP(&options.NowSec, "now", "n", 0,
		"Window start in seconds")
	compileCmd.Flags().Float64VarP(&options.LookAheadSec, "lookahead", "l", config.DefaultLookAheadSec,
		"Window length in seconds")
	compileCmd.Flags().Float64VarP(&options.BPM, "bpm", "b", config.DefaultBPM,
		"Fallback tempo when the file carries none")
	rootCmd.AddCommand(compileCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}
