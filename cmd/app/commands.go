package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/lectern/internal"
	"github.com/starford/lectern/internal/library"
	"github.com/starford/lectern/internal/mcpserver"
	"github.com/starford/lectern/internal/progress"
	"github.com/starford/lectern/internal/storage"
)

// withRuntime opens the runtime with logs on stderr, so stdout carries only
// command output.
func withRuntime(ctx context.Context, cmd *cli.Command, fn func(*internal.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := internal.Open(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func args(cmd *cli.Command, names ...string) ([]string, error) {
	if cmd.Args().Len() != len(names) {
		return nil, fmt.Errorf("%s: expected arguments %v", cmd.Name, names)
	}
	return cmd.Args().Slice(), nil
}

func listCmd(ctx context.Context, cmd *cli.Command) error {
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		books, err := rt.Service.ListBooks(ctx, cmd.Bool("removed"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, b := range books {
			state := ""
			if b.Removed {
				state = "removed"
			} else if !b.HasBody {
				state = "remote"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Hash, b.Name, b.Author, state)
		}
		return w.Flush()
	})
}

func syncCmd(ctx context.Context, cmd *cli.Command) error {
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		bar := progress.NewBar("sync", nil)
		report, err := rt.Service.SyncLibrary(ctx, bar.Update)
		_ = bar.Finish()
		if err != nil {
			return err
		}
		fmt.Printf("pulled %d, pushed %d, removed %d\n", report.Pulled, report.Pushed, report.Removed)
		if report.PushErr != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", report.PushErr)
		}
		return nil
	})
}

func addCmd(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "file.epub")
	if err != nil {
		return err
	}
	content, err := os.ReadFile(a[0])
	if err != nil {
		return err
	}
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		b, err := rt.Service.AddBook(ctx, content)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", b.Hash, b.Name)
		return nil
	})
}

func removeCmd(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "hash")
	if err != nil {
		return err
	}
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		b, err := rt.Service.RemoveBook(ctx, a[0])
		if err != nil {
			return err
		}
		fmt.Printf("removed %s\n", b.Name)
		return nil
	})
}

func importCmd(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "hash", "export.html")
	if err != nil {
		return err
	}
	f, err := os.Open(a[1])
	if err != nil {
		return err
	}
	defer f.Close()

	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		bar := progress.NewBar("import", nil)
		failures, err := rt.Service.Import(ctx, a[0], f, bar.Update)
		_ = bar.Finish()
		if err != nil {
			return err
		}
		if len(failures) == 0 {
			fmt.Println("all highlights imported")
			return nil
		}
		fmt.Printf("%d highlights not found:\n", len(failures))
		for _, lf := range failures {
			fmt.Println("  " + lf.String())
		}
		return nil
	})
}

func migrateCmd(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "dir")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a[0], 0o755); err != nil {
		return err
	}
	dst, err := storage.NewFS(a[0])
	if err != nil {
		return err
	}
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		n, err := library.Migrate(rt.Store, dst, rt.Logger)
		if err != nil {
			return err
		}
		fmt.Printf("copied %d files to %s\n", n, a[0])
		return nil
	})
}

func mcpCmd(ctx context.Context, cmd *cli.Command) error {
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		return mcpserver.New(rt.Service).ServeStdio()
	})
}
