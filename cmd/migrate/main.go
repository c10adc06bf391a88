package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"text/tabwriter"
	"time"

	"github.com/supserrr/vevurn-sub002/internal/bootstrap"
	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory; empty uses the embedded set ("+migrate.DefaultDir+" for create)")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	flag.Parse()

	rt := bootstrap.Start("migrate")
	defer rt.Close()
	logg := rt.Logger
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": rt.Config.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	source := migrate.Embedded()
	if *dir != "" {
		source = os.DirFS(*dir)
	}

	switch *cmd {
	case "create":
		if *name == "" {
			rt.Must("create", errors.New("-name is required"))
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.Create(target, *name, time.Now())
		rt.Must("create", err)
		fmt.Println("created", path)
		return
	case "validate":
		rt.Must("validate", migrate.Validate(source))
		fmt.Println("migrations valid")
		return
	}

	client, err := db.New(ctx, rt.Config.DB, logg)
	rt.Must("database", err)
	rt.OnClose("database", client.Close)
	sqlDB, err := client.DB().DB()
	rt.Must("database", err)
	runner, err := migrate.NewRunner(sqlDB, source, logg)
	rt.Must("migrate", err)

	switch *cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "version":
		if *version == "" {
			err = errors.New("-version is required")
			break
		}
		err = runner.To(ctx, *version)
	case "status":
		err = printStatus(ctx, runner)
	default:
		err = fmt.Errorf("unknown -cmd %q", *cmd)
	}
	rt.Must(*cmd, err)
	logg.Info(ctx, "migrate finished")
}

func printStatus(ctx context.Context, runner *migrate.Runner) error {
	statuses, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, path.Base(s.Source.Path))
	}
	return w.Flush()
}
