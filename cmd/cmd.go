package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/ffibuild/ffiwrap/generator"
	"github.com/ffibuild/ffiwrap/header"
	"github.com/ffibuild/ffiwrap/typemap"
)

// Execute runs the ffiwrap CLI with the given version string.
func Execute(version string) {
	cmd := &cli.Command{
		Name:                   "ffiwrap",
		Usage:                  "Generate Go FFI wrappers from C headers",
		Version:                version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log dropped and skipped functions",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "Normalize C headers into a single flat header",
				ArgsUsage: "<header.h ...>",
				Flags: append(headerFlags(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				),
				Action: extractAction,
			},
			{
				Name:      "generate",
				Usage:     "Generate the Go wrapper package from C headers",
				ArgsUsage: "<header.h ...>",
				Flags: append(headerFlags(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
					&cli.StringFlag{
						Name:    "mapping",
						Aliases: []string{"m"},
						Usage:   "YAML type mapping file",
					},
					&cli.StringFlag{
						Name:  "package",
						Usage: "Generated package name",
						Value: "lib",
					},
					&cli.StringFlag{
						Name:  "module",
						Usage: "Module path providing the runtime package",
						Value: "github.com/ffibuild/ffiwrap",
					},
				),
				Action: generateAction,
			},
			{
				Name:      "report",
				Usage:     "Show what would be wrapped, skipped, and why",
				ArgsUsage: "<header.h ...>",
				Flags: append(headerFlags(),
					&cli.StringFlag{
						Name:    "mapping",
						Aliases: []string{"m"},
						Usage:   "YAML type mapping file",
					},
				),
				Action: reportAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func headerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "Function filter list file",
		},
		&cli.StringFlag{
			Name:    "library",
			Aliases: []string{"l"},
			Usage:   "Shared library to cross-check declared symbols against",
		},
	}
}

// setupLogger configures the process logger on stderr. Color tracks the
// terminal unless NO_COLOR is set.
func setupLogger(verbose bool) zerolog.Logger {
	noColor := os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stderr.Fd()))
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}).
		With().Timestamp().Logger()
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
	log.Logger = logger
	return logger
}

// normalizeArgs runs the header normalizer over the positional arguments,
// honoring the shared filter and library flags.
func normalizeArgs(cmd *cli.Command, logger zerolog.Logger) (*header.Set, error) {
	if cmd.NArg() < 1 {
		return nil, fmt.Errorf("at least one header file is required")
	}
	opts := header.Options{Library: cmd.String("library"), Logger: logger}
	if path := cmd.String("filter"); path != "" {
		f, err := header.LoadFilter(path)
		if err != nil {
			return nil, err
		}
		opts.Filter = f
	}
	return header.Normalize(cmd.Args().Slice(), opts)
}

func loadMapping(cmd *cli.Command) (*typemap.Mapping, error) {
	if path := cmd.String("mapping"); path != "" {
		return typemap.LoadFile(path)
	}
	return typemap.Builtin(), nil
}

func writeOutput(cmd *cli.Command, data string) error {
	if path := cmd.String("output"); path != "" {
		return os.WriteFile(path, []byte(data), 0o644)
	}
	_, err := fmt.Print(data)
	return err
}

func extractAction(ctx context.Context, cmd *cli.Command) error {
	logger := setupLogger(cmd.Bool("verbose"))
	set, err := normalizeArgs(cmd, logger)
	if err != nil {
		return err
	}
	var sb strings.Builder
	if err := header.WriteNormalized(&sb, set); err != nil {
		return err
	}
	logger.Debug().Int("functions", len(set.Prototypes)).Int("types", len(set.Decls)).Msg("header normalized")
	return writeOutput(cmd, sb.String())
}

func generateAction(ctx context.Context, cmd *cli.Command) error {
	logger := setupLogger(cmd.Bool("verbose"))
	set, err := normalizeArgs(cmd, logger)
	if err != nil {
		return err
	}
	mapping, err := loadMapping(cmd)
	if err != nil {
		return err
	}
	res, err := generator.Generate(set, generator.Options{
		Package:    cmd.String("package"),
		ModulePath: cmd.String("module"),
		Mapping:    mapping,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	logger.Info().Int("wrapped", len(res.Wrapped)).Int("skipped", len(res.Skipped)).Msg("wrappers generated")
	return writeOutput(cmd, res.Source)
}

func reportAction(ctx context.Context, cmd *cli.Command) error {
	logger := setupLogger(cmd.Bool("verbose"))
	set, err := normalizeArgs(cmd, logger)
	if err != nil {
		return err
	}
	mapping, err := loadMapping(cmd)
	if err != nil {
		return err
	}
	res, err := generator.Generate(set, generator.Options{
		Package: "report",
		Mapping: mapping,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		return err
	}

	var rows [][]string
	for _, wr := range res.Wrapped {
		rows = append(rows, []string{wr.CName, "wrapped", wr.Signature})
	}
	for _, sk := range res.Skipped {
		rows = append(rows, []string{sk.Name, "skipped", sk.Reason})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Function", "Status", "Detail"})
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
	fmt.Printf("\n%d wrapped, %d skipped\n", len(res.Wrapped), len(res.Skipped))
	return nil
}
