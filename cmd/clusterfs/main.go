// Command clusterfs creates, inspects and edits clusterfs volumes stored in
// plain files, and moves volume images to and from blob stores.
//
// Usage:
//
//	clusterfs [global flags] <command> [flags] [args]
//
// Volume commands:
//
//	mkdrive  <drive> <blocks>        create a zeroed drive file
//	format   <drive>                 write an empty filesystem
//	info     <drive>                 print geometry and occupancy
//	ls       <drive>                 list files
//	put      <drive> <name> [file]   store file (or stdin) as name
//	cat      <drive> <name>          print a file
//	rm       <drive> <name>          delete a file
//	truncate <drive> <name> <size>   resize a file
//	defrag   <drive>                 free unreachable clusters
//	check    <drive>                 verify the tables
//	block    <drive> <id>            hex dump one block
//
// Image commands (targets are a directory, s3://bucket/prefix or
// minio://host:port/bucket/prefix):
//
//	export   <drive> <target> <name>   write an image
//	import   <target> <name> <drive>   restore an image
//	snapshot <drive> <target> <volume> write the next catalog version
//	restore  <target> <volume> <drive> restore the latest catalog version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/hupe1980/clusterfs"
)

// errUsage marks errors that should print the usage text.
var errUsage = errors.New("usage")

type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logger   *clusterfs.Logger
	cacheKiB int64
}

type command struct {
	args  string
	help  string
	flags func(fs *flag.FlagSet) func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{}

func register(name, args, help string, flags func(fs *flag.FlagSet) func(ctx context.Context, e *env, args []string) error) {
	commands[name] = command{args: args, help: help, flags: flags}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "clusterfs: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("clusterfs", flag.ContinueOnError)
	global.SetOutput(stderr)
	logLevel := global.String("log-level", "warn", "log level (debug, info, warn, error)")
	logJSON := global.Bool("log-json", false, "log as JSON")
	cacheKiB := global.Int64("cache-kib", 0, "block cache size in KiB (0 disables)")
	global.Usage = func() { usage(stderr, global) }

	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errUsage
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("invalid -log-level %q", *logLevel)
	}
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr, cacheKiB: *cacheKiB}
	if *logJSON {
		e.logger = clusterfs.NewLogger(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))
	} else {
		e.logger = clusterfs.NewLogger(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	}

	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		global.Usage()
		return errUsage
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	action := cmd.flags(fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: clusterfs %s [flags] %s\n\n%s\n", name, cmd.args, cmd.help)
		fs.PrintDefaults()
	}
	if err := fs.Parse(global.Args()[1:]); err != nil {
		return err
	}

	want := len(strings.Fields(strings.NewReplacer("[", "", "]", "").Replace(cmd.args)))
	optional := strings.Count(cmd.args, "[")
	if n := fs.NArg(); n < want-optional || n > want {
		fs.Usage()
		return errUsage
	}
	return action(ctx, e, fs.Args())
}

func usage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: clusterfs [global flags] <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-9s %-34s %s\n", name, commands[name].args, commands[name].help)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	global.PrintDefaults()
}
