// Command pdfload inspects and reads PDF documents with memory-aware,
// chunked file access.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/dl/pdfload/internal/cli"
	"github.com/dl/pdfload/internal/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	code := run(ctx, append(cli.LoadConfigArgs(), os.Args[1:]...))
	stop()
	os.Exit(code)
}

// sizeValue is a pflag.Value accepting byte counts such as "4096", "512KiB" or "2GB".
type sizeValue uint64

func (s *sizeValue) String() string {
	if *s == 0 {
		return "0"
	}
	return humanize.IBytes(uint64(*s))
}

func (s *sizeValue) Set(v string) error {
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return err
	}
	if n > math.MaxInt64 {
		return fmt.Errorf("size %s out of range", v)
	}
	*s = sizeValue(n)
	return nil
}

func (s *sizeValue) Type() string { return "size" }

var _ pflag.Value = (*sizeValue)(nil)

func run(ctx context.Context, args []string) int {
	var (
		cfg       cli.Config
		color     string
		available sizeValue
		chunkSize sizeValue
		offset    sizeValue
		start     sizeValue
		length    sizeValue
		code      = cli.ExitOK
	)

	newApp := func(paths []string) (*cli.App, error) {
		mode, err := cli.ParseColorMode(color)
		if err != nil {
			return nil, err
		}
		cfg.Color = mode
		cfg.AvailableMemory = uint64(available)
		cfg.ChunkSize = int(min(uint64(chunkSize), math.MaxInt))
		cfg.Offset = int64(offset)
		cfg.Start = int64(start)
		cfg.Length = int64(length)
		cfg.Paths = paths
		return cli.NewApp(cfg, output.NewWriter(), os.Stderr)
	}
	action := func(fn func(*cli.App, context.Context) int) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			app, err := newApp(args)
			if err != nil {
				return err
			}
			code = fn(app, cmd.Context())
			return nil
		}
	}

	root := &cobra.Command{
		Use:           "pdfload",
		Short:         "Inspect and read PDF documents in bounded chunks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.BoolVar(&cfg.JSONOutput, "json", false, "output results as JSON Lines")
	pf.StringVar(&color, "color", "auto", "colorize output: auto, always or never")
	pf.IntVarP(&cfg.Workers, "workers", "j", 0, "number of concurrent readers (0 = 2x CPUs)")
	pf.StringVar(&cfg.LogLevel, "log-level", "warn", "log level: debug, info, warn or error")
	pf.BoolVar(&cfg.SystemMemory, "system-memory", false, "estimate available memory from the host")
	pf.Var(&available, "available-memory", "assume this much available memory, e.g. 4GiB")
	pf.BoolVar(&cfg.AnyFile, "any-file", false, "accept files without a .pdf extension")

	infoCmd := &cobra.Command{
		Use:   "info PATH...",
		Short: "Print the size of each document",
		Args:  cobra.MinimumNArgs(1),
		RunE: action(func(a *cli.App, _ context.Context) int {
			return a.Info()
		}),
	}

	readCmd := &cobra.Command{
		Use:   "read PATH...",
		Short: "Read each document whole and print its size and SHA-256",
		Args:  cobra.MinimumNArgs(1),
		RunE:  action((*cli.App).Read),
	}
	readCmd.Flags().BoolVar(&cfg.Raw, "raw", false, "write the document bytes (single document)")

	chunkCmd := &cobra.Command{
		Use:   "chunk PATH",
		Short: "Read one chunk of a document",
		Args:  cobra.ExactArgs(1),
		RunE:  action((*cli.App).Chunk),
	}
	chunkCmd.Flags().Var(&chunkSize, "size", "chunk size (0 = 1MiB)")
	chunkCmd.Flags().Var(&offset, "offset", "byte offset of the chunk")
	chunkCmd.Flags().BoolVar(&cfg.Raw, "raw", false, "write the chunk bytes")

	catCmd := &cobra.Command{
		Use:   "cat PATH",
		Short: "Stream a document to stdout chunk by chunk",
		Args:  cobra.ExactArgs(1),
		RunE:  action((*cli.App).Cat),
	}
	catCmd.Flags().Var(&chunkSize, "size", "chunk size (0 = 1MiB)")

	rangeCmd := &cobra.Command{
		Use:   "range PATH",
		Short: "Read a byte range through the chunk cache",
		Args:  cobra.ExactArgs(1),
		RunE:  action((*cli.App).Range),
	}
	rangeCmd.Flags().Var(&start, "start", "first byte of the range")
	rangeCmd.Flags().Var(&length, "length", "range length (0 = to end of document)")
	rangeCmd.Flags().Int64Var(&cfg.Prefetch, "prefetch", 0, "chunks to load ahead of the range")
	rangeCmd.Flags().BoolVar(&cfg.Raw, "raw", false, "write the range bytes")

	findCmd := &cobra.Command{
		Use:   "find [DIR...]",
		Short: "List PDF documents under directories",
		RunE: action(func(a *cli.App, _ context.Context) int {
			return a.Find()
		}),
	}
	findCmd.Flags().BoolVar(&cfg.Hidden, "hidden", false, "search hidden files and directories")
	findCmd.Flags().BoolVar(&cfg.NoIgnore, "no-ignore", false, "don't respect .gitignore files")

	watchCmd := &cobra.Command{
		Use:   "watch PATH",
		Short: "Re-probe a document whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE:  action((*cli.App).Watch),
	}
	watchCmd.Flags().DurationVar(&cfg.Debounce, "debounce", 0, "wait this long after a change before reloading (0 = 100ms)")

	root.AddCommand(infoCmd, readCmd, chunkCmd, catCmd, rangeCmd, findCmd, watchCmd)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		log.NewWithOptions(os.Stderr, log.Options{Prefix: "pdfload"}).Error(err)
		return cli.ExitError
	}
	return code
}
