// Command migrator manages the violation audit schema and prunes old rows.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"trailgate/internal/config"
	"trailgate/internal/repository"
)

type options struct {
	cmd       string
	dir       string
	step      int
	ver       int
	olderThan time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "command: up|down|steps|force|version|prune")
	flag.StringVar(&opts.dir, "dir", "migrations", "migrations directory")
	flag.IntVar(&opts.step, "step", 0, "steps for cmd=steps (positive or negative)")
	flag.IntVar(&opts.ver, "ver", 0, "version for cmd=force")
	flag.DurationVar(&opts.olderThan, "older-than", 0, "age cutoff for cmd=prune (defaults to rate_limit.violation_retention)")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fatalf("load config: %v", err)
	}

	if opts.cmd == "prune" {
		err = prune(cfg, opts.olderThan)
	} else {
		err = runMigration(cfg, opts)
	}
	if err != nil {
		fatalf("%s: %v", opts.cmd, err)
	}
}

func runMigration(cfg *config.Config, opts options) error {
	m, err := migrate.New("file://"+opts.dir, "mysql://"+repository.DSN(cfg.MySQL))
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer m.Close()

	switch opts.cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if opts.step == 0 {
			return errors.New("-step required for cmd=steps")
		}
		err = m.Steps(opts.step)
	case "force":
		if opts.ver == 0 {
			return errors.New("-ver required for cmd=force")
		}
		err = m.Force(opts.ver)
	case "version":
		v, dirty, e := m.Version()
		if errors.Is(e, migrate.ErrNilVersion) {
			fmt.Println("version: none")
			return nil
		}
		if e != nil {
			return e
		}
		fmt.Printf("version: %d dirty=%v\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown cmd %q", opts.cmd)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	fmt.Printf("migrate %s: ok\n", opts.cmd)
	return nil
}

func prune(cfg *config.Config, olderThan time.Duration) error {
	if olderThan <= 0 {
		olderThan = cfg.RateLimit.ViolationRetention
	}
	if olderThan <= 0 {
		return errors.New("-older-than must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := repository.NewMySQL(ctx, cfg.MySQL)
	if err != nil {
		return err
	}
	defer db.Close()

	cutoff := time.Now().UTC().Add(-olderThan)
	n, err := repository.NewViolationRepository(db).DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d violations created before %s\n", n, cutoff.Format(time.RFC3339))
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
