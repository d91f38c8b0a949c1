// Command bankctl inspects saved bank state offline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fastprodman/duxbank/internal/gacha"
	"github.com/fastprodman/duxbank/internal/infra/logging"
	"github.com/fastprodman/duxbank/internal/render"
	"github.com/fastprodman/duxbank/internal/repos/state"
	"github.com/fastprodman/duxbank/internal/repos/state/snapshot"
	"github.com/fastprodman/duxbank/internal/repos/state/sqlite"
	"github.com/fastprodman/duxbank/internal/services/bank"
)

var errNoSource = errors.New("one of -snapshot or -sqlite is required")

type options struct {
	snapshotPath string
	sqlitePath   string
	tuningPath   string
	check        bool
}

func main() {
	logging.SetupJSONTo(os.Stderr, slog.LevelWarn)

	err := run(context.Background(), os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bankctl: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var o options

	fs := flag.NewFlagSet("bankctl", flag.ContinueOnError)
	fs.StringVar(&o.snapshotPath, "snapshot", "", "path to a zstd snapshot file")
	fs.StringVar(&o.sqlitePath, "sqlite", "", "path to a sqlite state database")
	fs.StringVar(&o.tuningPath, "tuning", "", "tuning file the state was saved under (default economy when empty)")
	fs.BoolVar(&o.check, "check", false, "verify conservation and exit non-zero on violation")

	err := fs.Parse(args)
	if err != nil {
		return o, err
	}

	if (o.snapshotPath == "") == (o.sqlitePath == "") {
		return o, errNoSource
	}

	return o, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}

	tuning, err := gacha.Load(o.tuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	b, err := bank.New(tuning)
	if err != nil {
		return fmt.Errorf("init bank: %w", err)
	}

	st, err := load(ctx, o)
	if err != nil {
		return err
	}

	if o.check {
		err = b.CheckState(st)
		if err != nil {
			return fmt.Errorf("check: %w", err)
		}

		fmt.Fprintf(out, "ok: %d accounts, pool conserved\n", len(st.Accounts))

		return nil
	}

	fmt.Fprintln(out, render.Pool(b.Table(), st.Pool))
	fmt.Fprint(out, render.Accounts(st.Accounts))

	return nil
}

func load(ctx context.Context, o options) (bank.State, error) {
	if o.snapshotPath != "" {
		h, st, err := snapshot.Read(o.snapshotPath)
		if err != nil {
			return bank.State{}, fmt.Errorf("read snapshot: %w", err)
		}

		slog.Info("snapshot read", "saved_at", h.SavedAt, "accounts", h.Accounts)

		return st, nil
	}

	// sqlite.Open creates the file; refuse to conjure an empty database.
	_, err := os.Stat(o.sqlitePath)
	if err != nil {
		return bank.State{}, fmt.Errorf("stat sqlite: %w", err)
	}

	s, err := sqlite.Open(ctx, o.sqlitePath)
	if err != nil {
		return bank.State{}, fmt.Errorf("open sqlite: %w", err)
	}
	//nolint:errcheck
	defer s.Close()

	st, err := s.Load(ctx)
	if errors.Is(err, state.ErrNoState) {
		return bank.State{}, fmt.Errorf("sqlite %s: %w", o.sqlitePath, err)
	}

	if err != nil {
		return bank.State{}, fmt.Errorf("load sqlite: %w", err)
	}

	return st, nil
}
