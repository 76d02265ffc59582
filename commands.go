package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Leantar/fdi/modules/config"
	"github.com/Leantar/fdi/modules/fingerprint"
	"github.com/Leantar/fdi/modules/hashengine"
	"github.com/Leantar/fdi/modules/identity"
	"github.com/Leantar/fdi/modules/similarity"
	"github.com/Leantar/fdi/scanner"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

type options struct {
	configPath  string
	debug       bool
	tolerance   uint
	workers     int
	pattern     string
	hash        string
	fingerprint string
	cache       string
	cachePath   string
	format      string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "fdi",
		Short:         "Find duplicate and near-duplicate images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "Specify a path to load the config from")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "Set logger to DEBUG level")
	root.PersistentFlags().StringVar(&opts.hash, "hash", "", "Hash algorithm for identity keys (sha1, blake3)")
	root.PersistentFlags().StringVar(&opts.fingerprint, "fingerprint", "", "Fingerprint kind (image, digest)")
	root.PersistentFlags().UintVarP(&opts.tolerance, "threshold", "t", scanner.DefaultTolerance, "Threshold for determining similarity, 0 requires exact matches")

	root.AddCommand(newScanCommand(opts), newWatchCommand(opts), newIDCommand(opts), newCompareCommand(opts))

	return root
}

func addScanFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of fingerprinting workers (default: number of CPUs)")
	cmd.Flags().StringVar(&opts.pattern, "pattern", "", "Regular expression selecting file names to scan")
	cmd.Flags().StringVar(&opts.cache, "cache", "", "Fingerprint cache backend (memory, sqlite, redis)")
	cmd.Flags().StringVar(&opts.cachePath, "cache-path", "", "Path of the sqlite fingerprint cache")
}

func newScanCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [dir...]",
		Short: "Report groups of similar files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := buildScanner(ctx, cmd, opts, args)
			if err != nil {
				return fmt.Errorf("failed to create scanner: %w", err)
			}
			defer s.Close()

			report, err := s.Run(ctx)
			if err != nil {
				return err
			}

			log.Info().Msg("generating report")
			if err := scanner.WriteReport(cmd.OutOrStdout(), report, opts.format); err != nil {
				return err
			}
			log.Info().Int("files", report.Files).Int("failed", report.Failed).Int("cached", report.Cached).Msg("done")
			return nil
		},
	}

	addScanFlags(cmd, opts)
	cmd.Flags().StringVarP(&opts.format, "format", "f", scanner.FormatTSV, "Report format (tsv, table)")

	return cmd
}

func newWatchCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Scan once, then report new similar files as they appear",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := buildScanner(ctx, cmd, opts, args)
			if err != nil {
				return fmt.Errorf("failed to create scanner: %w", err)
			}
			defer s.Close()

			paths, err := s.Collect()
			if err != nil {
				return err
			}
			files, _, err := s.Fingerprint(ctx, paths)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return s.Watch(ctx, files, func(m scanner.Match) {
				_ = scanner.WriteReport(out, &scanner.Report{Matches: []scanner.Match{m}}, scanner.FormatTSV)
			})
		},
	}

	addScanFlags(cmd, opts)

	return cmd
}

func newIDCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "id path...",
		Short: "Print the identity key of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := hashengine.New(opts.hash)
			if err != nil {
				return fmt.Errorf("failed to initialize hash engine: %w", err)
			}
			gen := identity.NewGenerator(engine.Acquire())

			failed := 0
			for _, path := range args {
				key, err := gen.Compute(path)
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("failed to compute identity")
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, path)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func newCompareCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compare a b",
		Short: "Fingerprint two files and tell whether they are similar",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := fingerprint.New(opts.fingerprint)
			if err != nil {
				return fmt.Errorf("failed to create fingerprint provider: %w", err)
			}

			a, err := provider.Fingerprint(args[0])
			if err != nil {
				return err
			}
			b, err := provider.Fingerprint(args[1])
			if err != nil {
				return err
			}

			tolerance := similarity.DefaultTolerance
			if cmd.Flags().Changed("threshold") {
				tolerance = opts.tolerance
			}

			ok, err := similarity.IsSimilar(a, b, tolerance)
			if err != nil {
				return err
			}
			distance, err := similarity.Distance(a, b)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "similar=%t distance=%d cutoff=%d\n", ok, distance, uint64(len(a))*uint64(tolerance))
			return nil
		},
	}
}

// buildScanner loads the config file, applies flags on top of it and creates the scanner.
// A missing config file is only an error when it was named explicitly.
func buildScanner(ctx context.Context, cmd *cobra.Command, opts *options, dirs []string) (*scanner.Scanner, error) {
	var conf scanner.Config

	err := config.FromYamlFile(opts.configPath, &conf)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, err
		}
		log.Debug().Str("path", opts.configPath).Msg("no config file, using defaults")
	}

	if len(dirs) > 0 {
		conf.Directories = dirs
	}

	flags := cmd.Flags()
	if flags.Changed("threshold") || conf.Tolerance == nil {
		t := opts.tolerance
		conf.Tolerance = &t
	}
	if flags.Changed("workers") {
		conf.Workers = opts.workers
	}
	if flags.Changed("pattern") {
		conf.Pattern = opts.pattern
	}
	if flags.Changed("hash") {
		conf.HashAlgorithm = opts.hash
	}
	if flags.Changed("fingerprint") {
		conf.Fingerprint = opts.fingerprint
	}
	if flags.Changed("cache") {
		conf.Cache.Backend = opts.cache
	}
	if flags.Changed("cache-path") {
		conf.Cache.Path = opts.cachePath
	}

	return scanner.New(ctx, conf)
}
