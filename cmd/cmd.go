package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/migueldvb/fwrap/codegen"
	"github.com/migueldvb/fwrap/config"
	"github.com/migueldvb/fwrap/fparser"
	"github.com/migueldvb/fwrap/gitvcs"
	"github.com/migueldvb/fwrap/model"
	"github.com/migueldvb/fwrap/tracking"
)

// Execute runs the fwrap CLI with the given version string.
func Execute(version string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp(version, os.Stdout, os.Stderr).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		stop()
		os.Exit(1)
	}
}

// app holds what the actions share: output streams, the project
// configuration and the logger, both set up in before.
type app struct {
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
	log    *zap.SugaredLogger
}

var nameFlag = &cli.StringFlag{
	Name:    "name",
	Aliases: []string{"n"},
	Usage:   "Artifact name (defaults to the project name)",
}

var outFlag = &cli.StringFlag{
	Name:    "out",
	Aliases: []string{"o"},
	Usage:   "Artifact directory, relative to the project (defaults to [output] dir)",
}

func newApp(version string, stdout, stderr io.Writer) *cli.Command {
	a := &app{stdout: stdout, stderr: stderr}
	return &cli.Command{
		Name:                   "fwrap",
		Usage:                  "Generate and maintain Cython wrappers for Fortran code",
		Version:                version,
		Writer:                 stdout,
		ErrWriter:              stderr,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"C"},
				Usage:   "Project directory",
				Value:   ".",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Log in JSON",
			},
		},
		Before: a.before,
		After: func(ctx context.Context, cmd *cli.Command) error {
			if a.log != nil {
				_ = a.log.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Wrap Fortran sources and record them for tracking",
				ArgsUsage: "[source.f90...]",
				Flags: []cli.Flag{
					nameFlag,
					outFlag,
					&cli.StringFlag{
						Name:    "message",
						Aliases: []string{"m"},
						Usage:   "Commit message",
					},
				},
				Action: a.createAction,
			},
			{
				Name:  "status",
				Usage: "Report whether wrapped sources changed since generation",
				Flags: []cli.Flag{
					nameFlag,
					outFlag,
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json or yaml",
						Value:   "text",
					},
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Fail when an update is needed",
					},
					&cli.BoolFlag{
						Name:  "no-color",
						Usage: "Disable ANSI color output",
					},
				},
				Action: a.statusAction,
			},
			{
				Name:  "update",
				Usage: "Regenerate stale wrappers on a new branch",
				Flags: []cli.Flag{
					nameFlag,
					outFlag,
					&cli.StringFlag{
						Name:    "message",
						Aliases: []string{"m"},
						Usage:   "Commit message",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Regenerate even when up to date",
					},
					&cli.BoolFlag{
						Name:  "no-finalize",
						Usage: "Leave the head for fwrap finalize",
					},
				},
				Action: a.updateAction,
			},
			{
				Name:      "mergepyf",
				Usage:     "Exclude routines missing from a hand-edited pyf file and regenerate",
				ArgsUsage: "<file.pyf>",
				Flags: []cli.Flag{
					nameFlag,
					outFlag,
					&cli.BoolFlag{
						Name:  "no-finalize",
						Usage: "Leave the head for fwrap finalize",
					},
				},
				Action: a.mergeAction,
			},
			{
				Name:   "finalize",
				Usage:  "Record the head revision after an interrupted update or merge",
				Flags:  []cli.Flag{nameFlag, outFlag},
				Action: a.finalizeAction,
			},
			{
				Name:      "gen",
				Usage:     "Generate wrappers without tracking",
				ArgsUsage: "[source.f90...]",
				Flags: []cli.Flag{
					nameFlag,
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write into this directory instead of stdout",
					},
				},
				Action: a.genAction,
			},
			{
				Name:  "watch",
				Usage: "Watch wrapped sources and report or update stale wrappers",
				Flags: []cli.Flag{
					nameFlag,
					outFlag,
					&cli.BoolFlag{
						Name:  "update",
						Usage: "Run update when sources change",
					},
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period before reacting to changes",
						Value: 500 * time.Millisecond,
					},
				},
				Action: a.watchAction,
			},
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	a.log = newLogger(a.stderr, cmd.Bool("verbose"), cmd.Bool("log-json"))
	cfg, err := config.FindAndLoad(cmd.String("dir"))
	if err != nil {
		return ctx, err
	}
	a.cfg = cfg
	a.log.Debugw("Loaded configuration", "root", cfg.Dir, "versioned", cfg.Versioned())
	return ctx, nil
}

func (a *app) name(cmd *cli.Command) string {
	if n := cmd.String("name"); n != "" {
		return n
	}
	return a.cfg.Project.Name
}

// sources returns the command's arguments, or the configured sources.
func (a *app) sources(cmd *cli.Command) []string {
	if cmd.NArg() > 0 {
		return cmd.Args().Slice()
	}
	var paths []string
	for _, s := range a.cfg.Project.Sources {
		paths = append(paths, filepath.Join(a.cfg.Dir, s))
	}
	return paths
}

// orchestrator builds the orchestrator for cmd, honoring its --out flag.
func (a *app) orchestrator(cmd *cli.Command) (*tracking.Orchestrator, error) {
	opts := a.cfg.Tracking()
	if out := cmd.String("out"); out != "" {
		opts.OutputDir = out
	}
	var vcs tracking.VCS
	if opts.Versioned {
		repo, err := gitvcs.Open(a.cfg.Dir, a.cfg.VCS.Author, a.cfg.VCS.Email)
		if err != nil {
			return nil, errors.WithHint(err, "set enabled = false in the [vcs] section of fwrap.toml to work without git")
		}
		vcs = repo
	}
	return tracking.New(opts, fparser.New(), vcs, a.log), nil
}

func (a *app) reportSkipped(skipped []tracking.Skipped) {
	for _, s := range skipped {
		fmt.Fprintf(a.stderr, "skipped %s: %s\n", s.Name, s.Reason)
	}
}

func (a *app) createAction(ctx context.Context, cmd *cli.Command) error {
	files := a.sources(cmd)
	if len(files) == 0 {
		return fmt.Errorf("usage: fwrap create [source.f90...] (or list sources in %s)", config.FileName)
	}
	orch, err := a.orchestrator(cmd)
	if err != nil {
		return err
	}
	res, err := orch.Create(ctx, a.name(cmd), files, tracking.CreateOptions{Message: cmd.String("message")})
	if err != nil {
		return err
	}
	a.reportSkipped(res.Skipped)
	for _, f := range res.Files {
		fmt.Fprintf(a.stdout, "wrote %s\n", f)
	}
	if res.Head != tracking.HeadNone {
		fmt.Fprintf(a.stdout, "head %s\n", res.Head)
	}
	return nil
}

func (a *app) statusAction(ctx context.Context, cmd *cli.Command) error {
	orch, err := a.orchestrator(cmd)
	if err != nil {
		return err
	}
	st, err := orch.Status(ctx, a.name(cmd))
	if err != nil {
		return err
	}
	color := !cmd.Bool("no-color") && os.Getenv("NO_COLOR") == "" && isTerminal(a.stdout)
	if err := renderStatus(a.stdout, st, cmd.String("format"), color); err != nil {
		return err
	}
	if cmd.Bool("check") && st.NeedsUpdate {
		return errors.WithHint(errors.Wrapf(tracking.ErrStale, "%s", st.Artifact), "run fwrap update")
	}
	return nil
}

func (a *app) updateAction(ctx context.Context, cmd *cli.Command) error {
	orch, err := a.orchestrator(cmd)
	if err != nil {
		return err
	}
	res, err := orch.Update(ctx, a.name(cmd), tracking.UpdateOptions{
		Message:      cmd.String("message"),
		Force:        cmd.Bool("force"),
		SkipFinalize: cmd.Bool("no-finalize"),
	})
	if err != nil {
		return err
	}
	if !res.Updated {
		fmt.Fprintln(a.stdout, "up to date")
		return nil
	}
	a.reportSkipped(res.Skipped)
	fmt.Fprintf(a.stdout, "updated on branch %s (head %s)\n", res.Branch, res.Head)
	return nil
}

func (a *app) mergeAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("usage: fwrap mergepyf <file.pyf>")
	}
	orch, err := a.orchestrator(cmd)
	if err != nil {
		return err
	}
	name := a.name(cmd)
	res, err := orch.Merge(ctx, name, cmd.Args().First())
	if err != nil {
		return err
	}
	if res.Update == nil {
		fmt.Fprintln(a.stdout, "nothing to exclude")
		return nil
	}
	fmt.Fprintf(a.stdout, "excluded %s on branch %s\n", strings.Join(res.Excluded, ", "), res.Update.Branch)
	if cmd.Bool("no-finalize") {
		return nil
	}
	head, err := orch.FinalizeHead(ctx, name)
	if err != nil {
		return errors.WithHint(err, "fix the problem and run fwrap finalize to complete the merge")
	}
	fmt.Fprintf(a.stdout, "head %s\n", head)
	return nil
}

func (a *app) finalizeAction(ctx context.Context, cmd *cli.Command) error {
	orch, err := a.orchestrator(cmd)
	if err != nil {
		return err
	}
	head, err := orch.FinalizeHead(ctx, a.name(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "head %s\n", head)
	return nil
}

func (a *app) genAction(ctx context.Context, cmd *cli.Command) error {
	files := a.sources(cmd)
	if len(files) == 0 {
		return fmt.Errorf("usage: fwrap gen [-o dir] [source.f90...]")
	}
	procs, err := fparser.New().Parse(files)
	if err != nil {
		return err
	}
	wrappers, blocked, err := model.WrapAll(procs, nil)
	if err != nil {
		return err
	}
	for _, b := range blocked {
		a.log.Warnw("Skipping routine", "routine", b.Proc, "reason", b.Error())
	}
	art, err := codegen.Generate(a.name(cmd), model.NewCollection(wrappers), codegen.Options{})
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if out == "" {
		for i, f := range art.Files() {
			if i > 0 {
				fmt.Fprintln(a.stdout)
			}
			fmt.Fprintf(a.stdout, "==> %s <==\n%s", f.Name, f.Content)
		}
		return nil
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	paths, err := art.WriteTo(out)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(a.stdout, "wrote %s\n", p)
	}
	return nil
}
