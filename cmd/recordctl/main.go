/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command recordctl manages tables and items of a record store from the shell.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/suparena/recordstore"
	"github.com/suparena/recordstore/config"
	"github.com/suparena/recordstore/datastore/ddb"
)

const usage = `usage: recordctl [flags] <command> [args]

Commands:
  tables list
  tables describe <name>
  tables create -f <descriptor.yaml> [-wait]
  tables update -f <descriptor.yaml> [-wait]
  tables delete [-wait] <name>
  tables ensure
  put    -table <name> -item <json|@file> [-condition <expr>] [-names <json>] [-values <json>]
  get    -table <name> -key <json|@file> [-consistent]
  delete -table <name> -key <json|@file> [-condition <expr>] [-names <json>] [-values <json>]
  query  -table <name> -key-condition <expr> -values <json> [-index] [-filter] [-limit] [-desc] [-cursor] [-all]
  scan   -table <name> [-filter] [-limit] [-cursor] [-all] [-segments <n>]
  version

Items, keys and values are typed store JSON ({"id":{"S":"a"}}) unless -plain is set.

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries what every command needs.
type app struct {
	storage *recordstore.Storage
	conn    string
	plain   bool
	out     io.Writer
}

func (a *app) client(ctx context.Context) (*ddb.Client, error) {
	return a.storage.Client(ctx, a.conn)
}

// run parses global flags, opens the storage and dispatches the command.
// Extra options are passed to recordstore.Open.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...recordstore.Option) int {
	fs := flag.NewFlagSet("recordctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "Path to the config file (default $"+config.EnvConfigFile+")")
	conn := fs.String("connection", config.DefaultConnection, "Named connection to use")
	plain := fs.Bool("plain", false, "Read and write items as plain JSON instead of typed store JSON")
	versionFlag := fs.Bool("version", false, "Show version information")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *versionFlag || fs.Arg(0) == "version" {
		printVersion(stdout)
		return 0
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "recordctl: %v\n", err)
		return 1
	}
	storage, err := recordstore.Open(cfg, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "recordctl: %v\n", err)
		return 1
	}
	defer storage.Close()

	a := &app{storage: storage, conn: *conn, plain: *plain, out: stdout}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "tables":
		err = a.tables(ctx, rest)
	case "put":
		err = a.put(ctx, rest)
	case "get":
		err = a.get(ctx, rest)
	case "delete":
		err = a.delete(ctx, rest)
	case "query":
		err = a.query(ctx, rest)
	case "scan":
		err = a.scan(ctx, rest)
	default:
		fmt.Fprintf(stderr, "recordctl: unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "recordctl %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func printVersion(w io.Writer) {
	info := recordstore.GetVersionInfo()
	fmt.Fprintf(w, "RecordStore recordctl version %s\n", info.Version)
	fmt.Fprintf(w, "Git commit: %s\n", info.GitCommit)
	fmt.Fprintf(w, "Build date: %s\n", info.BuildDate)
	fmt.Fprintf(w, "Go version: %s\n", info.GoVersion)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// subcommand returns a flag set for a command that reports parse errors
// instead of exiting.
func subcommand(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}
