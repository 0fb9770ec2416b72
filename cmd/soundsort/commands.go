package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/soundsort/client"
)

// labelOptions label 命令及其子命令共享的参数
type labelOptions struct {
	addr    string
	apiKey  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "soundsort",
		Short:         "Label fbank feature files as Speech, Music or Noise",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newLabelCmd())
	return root
}

func newLabelCmd() *cobra.Command {
	opts := &labelOptions{}

	cmd := &cobra.Command{
		Use:   "label <path>",
		Short: "Classify a feature file or every .safetensors file under a directory",
		Long: `Classify a feature file, or walk a directory and classify every
.safetensors file found, printing "path: Label" for each.

Use the copy or move subcommand to sort files into per-label directories.
A label without a configured directory leaves its files in place.

Examples:
  soundsort label clip.safetensors
  soundsort label ./features --addr 10.0.0.5:8080
  soundsort label copy ./features --speech-dir out/speech --music-dir out/music
  soundsort label move ./features --noise-dir out/noise`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLabel(cmd, opts, args[0], nil)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.addr, "addr", "a", client.DefaultAddr, "soundsortd address")
	flags.StringVar(&opts.apiKey, "api-key", "", "API key sent as X-API-Key")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log each request to stderr")

	cmd.AddCommand(
		newSortCmd("copy", "Copy each file into the directory for its label", sortCopy, opts),
		newSortCmd("move", "Move each file into the directory for its label", sortMove, opts),
	)
	return cmd
}

func newSortCmd(use, short string, mode sortMode, opts *labelOptions) *cobra.Command {
	dirs := &labelDirs{}
	cmd := &cobra.Command{
		Use:   use + " <path>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dirs.empty() {
				return fmt.Errorf("label %s needs at least one of --speech-dir, --music-dir, --noise-dir", use)
			}
			return runLabel(cmd, opts, args[0], &sortAction{mode: mode, dirs: *dirs})
		},
	}
	cmd.Flags().StringVarP(&dirs.speech, "speech-dir", "s", "", "directory for Speech files")
	cmd.Flags().StringVarP(&dirs.music, "music-dir", "m", "", "directory for Music files")
	cmd.Flags().StringVarP(&dirs.noise, "noise-dir", "n", "", "directory for Noise files")
	return cmd
}

func runLabel(cmd *cobra.Command, opts *labelOptions, path string, action *sortAction) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)
	defer func() { _ = logger.Sync() }()

	c := client.New(opts.addr, client.WithAPIKey(opts.apiKey), client.WithLogger(logger))
	l := &labeler{
		classifier: c,
		action:     action,
		out:        cmd.OutOrStdout(),
		logger:     logger,
		limit:      maxOpenFiles,
	}
	return l.Run(cmd.Context(), path)
}

// newLogger 详细模式下把 console 格式日志写到 w，否则丢弃
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}
