// Command numdirctl starts a directory, replays its WAL and snapshot on
// startup, runs the checkpoint sweeper in the background, and exposes a
// small set of subcommands against it. Flags override a subset of
// config.Config's knobs (snapshot path, WAL directory, prefix length),
// following the pack's convention of aliasing spf13/pflag as flag and
// letting CLI flags win over the config file.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/cbinding/numdir/internal/block"
	"github.com/cbinding/numdir/internal/checkpoint"
	"github.com/cbinding/numdir/internal/config"
	"github.com/cbinding/numdir/internal/digits"
	"github.com/cbinding/numdir/internal/directory"
	"github.com/cbinding/numdir/internal/dirlog"
	"github.com/cbinding/numdir/internal/wal"
)

const usage = `Usage: numdirctl [flags] <command> [args]

Commands:
  insert <number> <alias>        Insert or overwrite an alias
  lookup <number>                Print the alias for a number
  delete <number>                Delete a number
  get-block <number>             Print all entries sharing number's prefix
  get-range <number> <len>       Print entries within a postfix range
  get-window <number> <before> <after>  Print the ordered neighborhood around number
  snapshot                       Force an immediate snapshot to --snapshot-path

Flags:`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flagSet := flag.NewFlagSet("numdirctl", flag.ContinueOnError)
	flagSet.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flagSet.PrintDefaults()
	}

	configPath := flagSet.String("config", "numdir.jsonc", "Path to the JSONC config file")
	snapshotPath := flagSet.String("snapshot-path", "", "Override the configured snapshot path")
	walDir := flagSet.String("wal-dir", "", "Override the configured WAL directory")
	prefixLen := flagSet.Int("prefix-len", 0, "Override the configured prefix length")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if *snapshotPath != "" {
		cfg.SnapshotPath = *snapshotPath
	}
	if *walDir != "" {
		cfg.WALDir = *walDir
	}
	if *prefixLen != 0 {
		cfg.PrefixLen = *prefixLen
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return 1
	}

	log := dirlog.New("numdirctl", os.Stderr)

	dir := directory.New(cfg.DirectoryConfig())
	if err := restore(dir, cfg, log); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	walWriter, err := wal.NewWriter(cfg.WALDir, 64, wal.DefaultMaxSegmentSize, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer walWriter.Close()

	sweeper := checkpoint.New(cfg.SnapshotPath, cfg.CheckpointInterval(), cfg.CheckpointRetain, dir, log)
	sweeper.Run()
	defer sweeper.Stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		sweeper.Stop()
		walWriter.Close()
		os.Exit(130)
	}()

	return dispatch(dir, walWriter, cfg, rest[0], rest[1:])
}

// restore rebuilds in-memory state from the last snapshot, then replays
// any WAL records appended after it, so a crash between checkpoints
// loses nothing already fsynced to the log. It only looks at
// cfg.SnapshotPath itself, not the checkpoint sweeper's dated files
// alongside it — those don't participate in recovery yet.
func restore(dir *directory.Directory, cfg config.Config, log *dirlog.Logger) error {
	if _, err := os.Stat(cfg.SnapshotPath); err == nil {
		if err := dir.Restore(cfg.SnapshotPath); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	reader, err := wal.NewReader(cfg.WALDir)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer reader.Close()

	replayed := 0
	for rec, err := range reader.Iter() {
		if err != nil {
			return fmt.Errorf("replay wal: %w", err)
		}
		switch rec.Op {
		case wal.OpInsert:
			if err := dir.Insert(rec.Number, rec.Alias); err != nil {
				return fmt.Errorf("replay insert %s: %w", rec.Number, err)
			}
		case wal.OpDelete:
			_ = dir.Delete(rec.Number) // AbsentOk is expected on replay of an already-applied delete
		}
		replayed++
	}
	if replayed > 0 {
		log.Infof("replayed %d wal record(s)", replayed)
	}
	return nil
}

func dispatch(dir *directory.Directory, w *wal.Writer, cfg config.Config, cmd string, args []string) int {
	switch cmd {
	case "insert":
		return cmdInsert(dir, w, args)
	case "lookup":
		return cmdLookup(dir, args)
	case "delete":
		return cmdDelete(dir, w, args)
	case "get-block":
		return cmdGetBlock(dir, cfg, args)
	case "get-range":
		return cmdGetRange(dir, cfg, args)
	case "get-window":
		return cmdGetWindow(dir, args)
	case "snapshot":
		return cmdSnapshot(dir, cfg)
	default:
		fmt.Fprintln(os.Stderr, "error: unknown command:", cmd)
		fmt.Fprintln(os.Stderr, usage)
		return 1
	}
}

func cmdInsert(dir *directory.Directory, w *wal.Writer, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: numdirctl insert <number> <alias>")
		return 1
	}
	if err := dir.Insert(args[0], args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if err := w.Write(wal.Record{Op: wal.OpInsert, Number: args[0], Alias: args[1]}); err != nil {
		fmt.Fprintln(os.Stderr, "error: wal write:", err)
		return 1
	}
	return 0
}

func cmdLookup(dir *directory.Directory, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: numdirctl lookup <number>")
		return 1
	}
	alias, err := dir.Lookup(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	fmt.Println(alias)
	return 0
}

func cmdDelete(dir *directory.Directory, w *wal.Writer, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: numdirctl delete <number>")
		return 1
	}
	if err := dir.Delete(args[0]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if err := w.Write(wal.Record{Op: wal.OpDelete, Number: args[0]}); err != nil {
		fmt.Fprintln(os.Stderr, "error: wal write:", err)
		return 1
	}
	return 0
}

func cmdGetBlock(dir *directory.Directory, cfg config.Config, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: numdirctl get-block <number>")
		return 1
	}
	blk, err := dir.GetBlock(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	printBlock(blk, args[0][:cfg.PrefixLen])
	return 0
}

func cmdGetRange(dir *directory.Directory, cfg config.Config, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: numdirctl get-range <number> <postfix-len>")
		return 1
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid postfix length:", args[1])
		return 1
	}
	blk, err := dir.GetRange(args[0], n)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	printBlock(blk, args[0][:cfg.PrefixLen])
	return 0
}

func cmdGetWindow(dir *directory.Directory, args []string) int {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: numdirctl get-window <number> <before> <after>")
		return 1
	}
	before, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid before count:", args[1])
		return 1
	}
	after, err := strconv.Atoi(args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid after count:", args[2])
		return 1
	}
	pairs, err := dir.GetWindowAround(args[0], before, after)
	if err != nil && len(pairs) == 0 {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	for _, p := range pairs {
		fmt.Printf("%s %s\n", p.Number, p.Alias)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
	return 0
}

func cmdSnapshot(dir *directory.Directory, cfg config.Config) int {
	if err := dir.Snapshot(cfg.SnapshotPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func printBlock(blk *block.Block, prefix string) {
	for i := 0; i < blk.Len(); i++ {
		e := blk.EntryAt(i)
		postfix, err := digits.Unpack(e.Postfix())
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: decode postfix:", err)
			continue
		}
		alias, err := digits.Unpack(e.Alias())
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: decode alias:", err)
			continue
		}
		fmt.Printf("%s%s %s\n", prefix, postfix, alias)
	}
}
