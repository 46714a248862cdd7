// Command importer drives attendance sheet imports from the command
// line, against the record store directly, without going through the
// HTTP API. It can also generate synthetic sheets for testing.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	service "github.com/veloclub/sortie/internal/app"
	"github.com/veloclub/sortie/internal/sheetgen"
	"github.com/veloclub/sortie/pkg/logger"
)

const (
	defaultWriteDelayMS = 250
	defaultMembers      = 40
	defaultWeeks        = 12
)

func main() {
	app := &cli.App{
		Name:  "importer",
		Usage: "import and generate wide-format attendance sheets",
		Commands: []*cli.Command{
			importCommand(),
			generateCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "reconcile a CSV sheet into the record store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "path to the CSV sheet",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "year",
				Usage: "calendar year the sheet covers",
				Value: strconv.Itoa(time.Now().Year()),
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "record store backend: memory, sqlite or mongo",
				Value: service.DriverSQLite,
			},
			&cli.StringFlag{
				Name:  "sqlite-path",
				Usage: "database file for the sqlite driver",
				Value: "sortie.db",
			},
			&cli.StringFlag{
				Name:  "mongo-uri",
				Usage: "connection URI for the mongo driver",
				Value: "mongodb://localhost:27017",
			},
			&cli.StringFlag{
				Name:  "mongo-db",
				Usage: "database name for the mongo driver",
				Value: "sortie",
			},
			&cli.IntFlag{
				Name:  "write-delay-ms",
				Usage: "pacing delay between record store writes",
				Value: defaultWriteDelayMS,
			},
			&cli.IntFlag{
				Name:  "writers",
				Usage: "number of write pump workers",
				Value: runtime.NumCPU(),
			},
		},
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sheetBytes, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}

	svc := service.New(
		service.WithStoreDriver(c.String("driver")),
		service.WithSQLitePath(c.String("sqlite-path")),
		service.WithMongo(c.String("mongo-uri"), c.String("mongo-db")),
		service.WithWriterCount(c.Int("writers")),
		service.WithWriteDelay(time.Duration(c.Int("write-delay-ms"))*time.Millisecond),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	summary, err := svc.ReconcilePeriod(ctx, string(sheetBytes), c.String("year"))
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "write a synthetic sheet for testing imports",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "members",
				Usage: "number of member rows",
				Value: defaultMembers,
			},
			&cli.IntFlag{
				Name:  "weeks",
				Usage: "number of ISO weeks covered",
				Value: defaultWeeks,
			},
			&cli.IntFlag{
				Name:  "year",
				Usage: "calendar year the sheet covers",
				Value: time.Now().Year(),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output file (default: stdout)",
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(c *cli.Context) error {
	records, err := sheetgen.Generate(sheetgen.Config{
		Year:    c.Int("year"),
		Members: c.Int("members"),
		Weeks:   c.Int("weeks"),
	})
	if err != nil {
		return fmt.Errorf("generate sheet: %w", err)
	}

	out := os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}
	return nil
}
