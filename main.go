package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"library-catalog/library"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

// app carries the resolved configuration shared by every command.
type app struct {
	cfg     library.Config
	cfgErr  error
	today   string
	jsonOut bool
	logger  *slog.Logger
	out     io.Writer
	now     func() time.Time
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{out: out, now: time.Now}
	a.cfg, a.cfgErr = library.LoadConfig()

	root := &cobra.Command{
		Use:           "library",
		Short:         "Library catalog: books, members and loans kept in flat files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(in)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfg.DataDir, "data-dir", a.cfg.DataDir, "directory holding the catalog files")
	f.StringVar(&a.cfg.Backend, "backend", a.cfg.Backend, "storage backend: files or sqlite")
	f.IntVar(&a.cfg.GraceDays, "grace-days", a.cfg.GraceDays, "loan period and renewal extension in days")
	f.IntVar(&a.cfg.MaxBooks, "max-books", a.cfg.MaxBooks, "maximum number of books (0 = unlimited)")
	f.IntVar(&a.cfg.MaxMembers, "max-members", a.cfg.MaxMembers, "maximum number of members (0 = unlimited)")
	f.IntVar(&a.cfg.MaxLoans, "max-loans", a.cfg.MaxLoans, "maximum number of loan records (0 = unlimited)")
	f.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn or error")
	f.StringVar(&a.today, "today", "", "reference date D-M-Y for overdue checks (default: system clock)")
	f.BoolVar(&a.jsonOut, "json", false, "print listings as JSON")

	root.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Start the interactive catalog shell",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runShell(in)
			},
		},
		newReportCmd(a),
		newLoansCmd(a),
		newCheckCmd(a),
		newBackupCmd(a),
	)
	return root
}

func (a *app) setup() error {
	if a.cfgErr != nil {
		return a.cfgErr
	}
	lvl, err := library.ParseLogLevel(a.cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	return a.cfg.Validate()
}

func (a *app) open() (*library.LibraryManager, error) {
	mgr, err := library.NewLibraryManager(a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	return mgr, nil
}

// referenceDate is the --today flag, or the system date when it is unset.
func (a *app) referenceDate() (library.Date, error) {
	if a.today == "" {
		return library.DateOf(a.now()), nil
	}
	return library.ParseDate(a.today)
}

func (a *app) printJSON(v any) error {
	data, err := jsoniter.ConfigFastest.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
