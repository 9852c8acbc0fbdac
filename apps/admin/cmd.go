package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/storage/database"
)

var (
	runMigrationsFunc = database.RunMigrations // mockable
	isTerminalFunc    = term.IsTerminal        // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

const defaultRetentionDays = 90

// locationPurger deletes GPS samples recorded before a cutoff.
type locationPurger interface {
	PurgeLocations(ctx context.Context, before time.Time, exec ...core.DBExecutor) (int64, error)
}

type commandLine struct {
	db        *sql.DB
	locations locationPurger

	stdin  io.Reader
	stdout io.Writer
	now    func() time.Time
}

func newCommandLine(db *sql.DB, locations locationPurger) *commandLine {
	return &commandLine{
		db:        db,
		locations: locations,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		now:       time.Now,
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.stdout, "Usage:")
	fmt.Fprintln(cli.stdout, "  migrate COMMAND [ARGS...]           - run a goose command (up, down, status, redo, version...) with the embedded migrations")
	fmt.Fprintln(cli.stdout, "  purge-locations -days N [-yes]      - delete trip GPS samples older than N days")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	purgeCmd := flag.NewFlagSet("purge-locations", flag.ContinueOnError)
	purgeCmd.SetOutput(cli.stdout)
	purgeDays := purgeCmd.Int("days", defaultRetentionDays, "Samples older than this many days are deleted.")
	purgeYes := purgeCmd.Bool("yes", false, "Do not ask for confirmation.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "purge-locations":
		if err := purgeCmd.Parse(args[2:]); err != nil {
			if err == flag.ErrHelp {
				return errHelp
			}
			return err
		}
		if *purgeDays < 1 {
			purgeCmd.Usage()
			return errHelp
		}
		return cli.purgeLocations(*purgeDays, *purgeYes)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate(args []string) error {
	return runMigrationsFunc(context.Background(), cli.db, args[0], args[1:]...)
}

func (cli *commandLine) purgeLocations(days int, yes bool) error {
	before := cli.now().UTC().AddDate(0, 0, -days)

	if !yes && isTerminalFunc(int(os.Stdin.Fd())) {
		fmt.Fprintf(cli.stdout, "Delete GPS samples recorded before %s? [y/N] ", before.Format(time.RFC3339))
		answer, err := bufio.NewReader(cli.stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			return errAborted
		}
	}

	n, err := cli.locations.PurgeLocations(context.Background(), before)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout, "Deleted %d GPS samples.\n", n)
	return nil
}
