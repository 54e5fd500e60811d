// Copyright 2026 Policytrail Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/policytrail/policytrail/audit"
	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
	"github.com/policytrail/policytrail/storage/factory"
)

func main() {
	app := &cli.App{
		Name:  "policytrail",
		Usage: "Versioned store for terms-of-service snapshots and versions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "count",
				Usage:  "Count records, optionally scoped to a service and terms type",
				Action: countCommand,
				Flags: append(storeFlags(),
					&cli.StringFlag{
						Name:  "service",
						Usage: "Restrict to one service ID",
					},
					&cli.StringFlag{
						Name:  "terms",
						Usage: "Restrict to one terms type (requires --service)",
					},
				),
			},
			{
				Name:   "ls",
				Usage:  "List records, newest first, without loading content",
				Action: listCommand,
				Flags: append(storeFlags(),
					&cli.StringFlag{
						Name:  "service",
						Usage: "Restrict to one service ID",
					},
					&cli.StringFlag{
						Name:  "terms",
						Usage: "Restrict to one terms type (requires --service)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records to list",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of records to skip",
					},
				),
			},
			{
				Name:   "show",
				Usage:  "Show one record by ID",
				Action: showCommand,
				Flags: append(storeFlags(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Record ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "content",
						Usage: "Write the raw content to stdout instead of metadata",
					},
				),
			},
			{
				Name:   "verify",
				Usage:  "Check the integrity of a repository",
				Action: verifyCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Worker pool size for per-record checks",
					},
				),
			},
			{
				Name:   "migrate",
				Usage:  "Copy all records from one backend to another",
				Action: migrateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "from-config",
						Usage:    "Storage config file of the source",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "to-config",
						Usage:    "Storage config file of the destination",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Record kind to migrate (snapshots or versions)",
						Value: "snapshots",
					},
				},
			},
			{
				Name:   "remove-all",
				Usage:  "Destroy every record of a repository and reset it",
				Action: removeAllCommand,
				Flags: append(storeFlags(),
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Confirm the destructive operation",
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the storage config file",
			Value:   "storage.yml",
		},
		&cli.StringFlag{
			Name:  "kind",
			Usage: "Record kind to operate on (snapshots or versions)",
			Value: "snapshots",
		},
	}
}

func recordKind(name string) (core.RecordKind, error) {
	switch name {
	case "snapshots", "snapshot":
		return core.KindSnapshot, nil
	case "versions", "version":
		return core.KindVersion, nil
	default:
		return 0, fmt.Errorf("unknown record kind %q: must be snapshots or versions", name)
	}
}

// openRepository builds and initializes the repository selected by the
// --config and --kind flags. The returned closer finalizes it.
func openRepository(ctx context.Context, configPath, kindName string) (storage.Repository, func(), error) {
	kind, err := recordKind(kindName)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := factory.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	repoCfg := cfg.Snapshots
	if kind == core.KindVersion {
		repoCfg = cfg.Versions
	}

	repo, err := factory.Create(repoCfg, kind)
	if err != nil {
		return nil, nil, err
	}

	if err := repo.Initialize(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s storage: %w", kindName, err)
	}

	closer := func() {
		if err := repo.Finalize(ctx); err != nil {
			slog.Warn("failed to finalize storage", "kind", kindName, "error", err)
		}
	}

	return repo, closer, nil
}

func countCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.String("terms") != "" && c.String("service") == "" {
		return fmt.Errorf("--terms requires --service")
	}

	repo, closer, err := openRepository(ctx, c.String("config"), c.String("kind"))
	if err != nil {
		return err
	}
	defer closer()

	count, err := repo.Count(ctx, c.String("service"), c.String("terms"))
	if err != nil {
		return err
	}

	fmt.Println(count)
	return nil
}

func listCommand(c *cli.Context) error {
	ctx := context.Background()

	service := c.String("service")
	terms := c.String("terms")
	if terms != "" && service == "" {
		return fmt.Errorf("--terms requires --service")
	}

	repo, closer, err := openRepository(ctx, c.String("config"), c.String("kind"))
	if err != nil {
		return err
	}
	defer closer()

	opts := storage.QueryOptions{Limit: c.Int("limit"), Offset: c.Int("offset")}

	var records []*core.Record
	switch {
	case terms != "":
		records, err = repo.FindByServiceAndTermsType(ctx, service, terms, opts)
	case service != "":
		records, err = repo.FindByService(ctx, service, opts)
	default:
		records, err = repo.FindAll(ctx, opts)
	}
	if err != nil {
		return err
	}

	for _, record := range records {
		scope := record.TermsType
		if record.DocumentID != "" {
			scope += " #" + record.DocumentID
		}
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
			record.ID, record.FetchDate.Format("2006-01-02T15:04:05Z07:00"),
			record.ServiceID, scope, record.MimeType)
	}

	return nil
}

func showCommand(c *cli.Context) error {
	ctx := context.Background()

	repo, closer, err := openRepository(ctx, c.String("config"), c.String("kind"))
	if err != nil {
		return err
	}
	defer closer()

	record, err := repo.FindByID(ctx, c.String("id"))
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("no record with ID %s", c.String("id"))
	}

	content, err := record.Content()
	if err != nil {
		return err
	}

	if c.Bool("content") {
		_, err := os.Stdout.Write(content)
		return err
	}

	fmt.Printf("ID:            %s\n", record.ID)
	fmt.Printf("Kind:          %s\n", record.Kind)
	fmt.Printf("Service:       %s\n", record.ServiceID)
	fmt.Printf("Terms type:    %s\n", record.TermsType)
	if record.DocumentID != "" {
		fmt.Printf("Document ID:   %s\n", record.DocumentID)
	}
	fmt.Printf("Fetch date:    %s\n", record.FetchDate.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Printf("Mime type:     %s\n", record.MimeType)
	fmt.Printf("First record:  %t\n", record.FirstRecord())
	if record.Kind == core.KindVersion {
		fmt.Printf("Extract only:  %t\n", record.IsExtractOnly)
		fmt.Printf("Snapshots:     %s\n", strings.Join(record.SnapshotIDs, ", "))
	}
	fmt.Printf("Content size:  %d bytes\n", len(content))
	fmt.Printf("Digest:        %s\n", audit.ContentDigest(content))

	return nil
}

func verifyCommand(c *cli.Context) error {
	ctx := context.Background()

	repo, closer, err := openRepository(ctx, c.String("config"), c.String("kind"))
	if err != nil {
		return err
	}
	defer closer()

	opts := []audit.Option{}
	if c.Int("workers") > 0 {
		opts = append(opts, audit.WithPoolSize(c.Int("workers")))
	}

	kind, err := recordKind(c.String("kind"))
	if err != nil {
		return err
	}

	// Version audits resolve snapshot references, which needs the snapshots
	// repository from the same config.
	if kind == core.KindVersion {
		snapshots, snapshotsCloser, err := openRepository(ctx, c.String("config"), "snapshots")
		if err != nil {
			return err
		}
		defer snapshotsCloser()
		opts = append(opts, audit.WithSnapshots(snapshots))
	}

	auditor, err := audit.NewAuditor(repo, opts...)
	if err != nil {
		return err
	}
	defer auditor.Release()

	report, err := auditor.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%d records checked\n", report.Records)
	for _, issue := range report.Issues {
		fmt.Printf("%s: %s\n", issue.RecordID, issue.Problem)
	}

	if !report.Ok() {
		return fmt.Errorf("%d integrity issues found", len(report.Issues))
	}

	fmt.Println("no issues found")
	return nil
}

func migrateCommand(c *cli.Context) error {
	ctx := context.Background()

	source, sourceCloser, err := openRepository(ctx, c.String("from-config"), c.String("kind"))
	if err != nil {
		return err
	}
	defer sourceCloser()

	destination, destinationCloser, err := openRepository(ctx, c.String("to-config"), c.String("kind"))
	if err != nil {
		return err
	}
	defer destinationCloser()

	var copied, skipped int
	for record, err := range source.Iterate(ctx) {
		if err != nil {
			return fmt.Errorf("migration aborted after %d records: %w", copied, err)
		}

		// Records keep their flags verbatim; only the ID is reassigned by
		// the destination backend.
		record.ID = ""
		saved, err := destination.Save(ctx, record)
		if err != nil {
			return fmt.Errorf("migration aborted after %d records: %w", copied, err)
		}
		if saved == nil {
			skipped++
			continue
		}
		copied++
	}

	fmt.Printf("%d records migrated, %d skipped as duplicates\n", copied, skipped)
	return nil
}

func removeAllCommand(c *cli.Context) error {
	ctx := context.Background()

	if !c.Bool("force") {
		return fmt.Errorf("remove-all deletes every record; pass --force to confirm")
	}

	repo, closer, err := openRepository(ctx, c.String("config"), c.String("kind"))
	if err != nil {
		return err
	}
	defer closer()

	if err := repo.RemoveAll(ctx); err != nil {
		return err
	}

	fmt.Println("store reset")
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
