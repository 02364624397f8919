package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mrlokans/lending/internal/config"
	"github.com/mrlokans/lending/internal/database"
	"github.com/mrlokans/lending/internal/lending"
)

// SweepCommand runs one overdue sweep against a database and exits.
type SweepCommand struct {
	DatabasePath string
	AsOf         string
	JSON         bool

	Out    io.Writer
	config *config.Config
	asOf   time.Time // parsed AsOf, zero for now
}

func NewSweepCommand(cfg *config.Config) *SweepCommand {
	return &SweepCommand{
		Out:    os.Stdout,
		config: cfg,
	}
}

func (cmd *SweepCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", cmd.config.Database.Path, "Path to the database file")
	fs.Func("as-of", "Sweep as of this RFC 3339 instant instead of now", func(value string) error {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("invalid -as-of %q: %w", value, err)
		}
		cmd.AsOf, cmd.asOf = value, t
		return nil
	})
	fs.BoolVar(&cmd.JSON, "json", false, "Print the result as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sweep [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Mark loans past their due date as overdue and refresh their fines.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s sweep -db ./library.db\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s sweep -as-of 2024-06-01T00:00:00Z -json\n", os.Args[0])
	}

	return fs.Parse(args)
}

func (cmd *SweepCommand) Run(ctx context.Context) error {
	policy, err := cmd.config.Lending.Policy()
	if err != nil {
		return err
	}

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := lending.NewEngine(db, policy, lending.WithOperationTimeout(cmd.config.Lending.OperationTimeout))
	if err != nil {
		return err
	}

	result, err := engine.SweepOverdue(ctx, cmd.asOf)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	if cmd.JSON {
		out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.Out, string(out))
		return nil
	}

	fmt.Fprintf(cmd.Out, "Sweep %s as of %s\n", result.RunID, result.AsOf.Format(time.RFC3339))
	fmt.Fprintf(cmd.Out, "  Candidates:   %d\n", result.Candidates)
	fmt.Fprintf(cmd.Out, "  Marked:       %d\n", result.Transitioned)
	fmt.Fprintf(cmd.Out, "  Refreshed:    %d\n", result.Refreshed)
	fmt.Fprintf(cmd.Out, "  Skipped:      %d\n", result.Skipped)
	return nil
}
