// simagent turns a natural-language request into a verified simulation
// script: LLM generation, static validation, engine execution, and
// LLM-driven correction on failure, until the script runs or the budget
// is spent.
//
// Usage:
//
//	simagent loop "a mass-spring system with damping"
//	simagent exec simulation.m -stream
//	simagent rules
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"simagent/internal/artifact"
	"simagent/internal/codegen"
	"simagent/internal/config"
	"simagent/internal/engine"
	"simagent/internal/lint"
	"simagent/internal/llm"
	"simagent/internal/loop"
	"simagent/internal/prompt"
	"simagent/internal/runner"
	"simagent/internal/safeio"
	"simagent/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "loop":
		cmdLoop(os.Args[2:])
	case "exec":
		cmdExec(os.Args[2:])
	case "rules":
		cmdRules(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		log.Printf("unknown command %q", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `simagent <command> [flags]

commands:
  loop "intent"   generate, validate, execute and correct until accepted
  exec file.m     execute an existing script (skips generation/validation)
  rules           write the default constraint-rules file`)
}

type wiring struct {
	cfg    *config.Config
	fs     *safeio.SafeFS
	cli    *engine.Client
	handle *engine.Handle
	run    *runner.Runner
	local  *store.Local
	s3     *store.S3Store
}

func buildWiring(cfg *config.Config) (*wiring, error) {
	fs, err := safeio.NewSafeFS(cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	cli, err := engine.NewClient(cfg.EngineURL)
	if err != nil {
		return nil, err
	}
	local, err := store.NewLocal(fs)
	if err != nil {
		return nil, err
	}
	w := &wiring{
		cfg:    cfg,
		fs:     fs,
		cli:    cli,
		handle: engine.NewHandle(cli),
		local:  local,
	}
	w.run = &runner.Runner{
		Handle: w.handle,
		Sink: func(ev artifact.Event) {
			switch ev.Kind {
			case artifact.EventText:
				fmt.Print(ev.Payload)
			default:
				log.Printf("%s written: %s", ev.Kind, ev.Payload)
			}
		},
	}
	if cfg.Artifact.Enabled {
		s3, err := store.NewS3Store(cfg.Artifact.S3)
		if err != nil {
			log.Printf("artifact mirror disabled: %v", err)
		} else {
			w.s3 = s3
		}
	}
	return w, nil
}

func cmdLoop(args []string) {
	fs := flag.NewFlagSet("loop", flag.ExitOnError)
	model := fs.String("model", "", "Gemini model id (overrides SIMAGENT_MODEL)")
	engineURL := fs.String("engine", "", "numerical engine base URL")
	out := fs.String("out", "", "working directory for scripts and artifacts")
	attempts := fs.Int("attempts", 0, "correction budget")
	rulesPath := fs.String("rules", "", "constraint-rules file")
	stream := fs.Bool("stream", false, "stream execution output")
	timeout := fs.Duration("timeout", 0, "per-execution timeout")
	name := fs.String("name", "simulation", "script file name for the accepted code")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		log.Fatal("loop: intent argument is required")
	}
	intent := strings.Join(fs.Args(), " ")

	cfg := loadConfig(*model, *engineURL, *out, *rulesPath, *attempts, *timeout)
	if cfg.APIKey == "" {
		log.Fatal("GEMINI_API_KEY is not set")
	}
	w, err := buildWiring(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llmCli, err := llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		log.Fatal(err)
	}
	wrapped := llm.Wrap(llmCli,
		llm.WithLogging(nil),
		llm.Retry(3, 500*time.Millisecond),
		llm.RateLimit(1, 2),
	)
	defer wrapped.Close()

	rules := loadRules(cfg.RulesPath)

	validator, err := lint.NewValidator(w.cli, 32)
	if err != nil {
		log.Fatal(err)
	}

	mode := runner.ModeBatch
	if *stream {
		mode = runner.ModeStream
	}
	orch := &loop.Orchestrator{
		Gen:       &codegen.Generator{LLM: wrapped},
		Validator: validator,
		Runner:    w.run,
		Config: loop.Config{
			MaxAttempts: cfg.MaxAttempts,
			Mode:        mode,
			Timeout:     cfg.Timeout,
		},
	}

	log.Printf("running correction loop (model=%s, budget=%d)", cfg.Model, cfg.MaxAttempts)
	session, err := orch.Run(ctx, intent, rules)
	switch {
	case errors.Is(err, loop.ErrExhausted):
		log.Printf("budget exhausted after %d revisions:", len(session.Attempts))
		fmt.Print(session.History())
		os.Exit(1)
	case err != nil:
		log.Fatalf("session failed: %v\n%s", err, session.History())
	}

	if session.State() == loop.StateAborted {
		log.Print("session aborted")
		os.Exit(130)
	}

	accepted, ok := session.Accepted()
	if !ok {
		log.Fatal("session ended without an accepted revision")
	}
	path, err := w.local.SaveScript(*name, accepted.Source)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("accepted revision %d saved to %s", accepted.Revision, path)

	last := session.Attempts[len(session.Attempts)-1]
	if last.Execution != nil {
		persistArtifacts(ctx, w, *name, *last.Execution)
		if last.Execution.Stdout != "" {
			fmt.Println(last.Execution.Stdout)
		}
	}
}

func cmdExec(args []string) {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	engineURL := fs.String("engine", "", "numerical engine base URL")
	out := fs.String("out", "", "working directory for scripts and artifacts")
	stream := fs.Bool("stream", false, "stream execution output")
	timeout := fs.Duration("timeout", 0, "per-execution timeout")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		log.Fatal("exec: exactly one script path is required")
	}
	path := fs.Arg(0)

	cfg := loadConfig("", *engineURL, *out, "", 0, *timeout)
	w, err := buildWiring(cfg)
	if err != nil {
		log.Fatal(err)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("exec: read script: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := runner.ModeBatch
	if *stream {
		mode = runner.ModeStream
	}
	art := artifact.New(string(source), artifact.OriginUser)
	res, err := w.run.Run(ctx, art, mode, cfg.Timeout)
	if err != nil {
		log.Fatalf("exec: %v", err)
	}

	if res.Stdout != "" && mode == runner.ModeBatch {
		fmt.Println(res.Stdout)
	}
	switch res.Status {
	case artifact.ExecSucceeded:
		log.Print("execution succeeded")
		persistArtifacts(ctx, w, strings.TrimSuffix(path, ".m"), res)
	default:
		log.Fatalf("execution %s: %s", res.Status, res.Diagnostic)
	}
}

func cmdRules(args []string) {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	path := fs.String("path", prompt.DefaultRulesFile, "where to write the rules file")
	_ = fs.Parse(args)

	if err := prompt.WriteDefaultRules(*path); err != nil {
		log.Fatal(err)
	}
	log.Printf("default rules written to %s", *path)
}

func loadConfig(model, engineURL, out, rulesPath string, attempts int, timeout time.Duration) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if model != "" {
		cfg.Model = model
	}
	if engineURL != "" {
		cfg.EngineURL = engineURL
	}
	if out != "" {
		cfg.WorkDir = out
	}
	if rulesPath != "" {
		cfg.RulesPath = rulesPath
	}
	if attempts > 0 {
		cfg.MaxAttempts = attempts
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg
}

// loadRules reads the constraint file once per session; the directives pass
// unmodified, in order, into every prompt of the session. The file is
// resolved against the current directory, like a dotfile.
func loadRules(path string) []string {
	if path == "" {
		path = prompt.DefaultRulesFile
	}
	rules, err := prompt.LoadRules(os.DirFS("."), path)
	if err != nil {
		log.Printf("rules: %v, using defaults", err)
		return prompt.DefaultRules()
	}
	return rules
}

// persistArtifacts mirrors engine-produced files to the S3 backend when
// configured. The engine already wrote them into the shared working
// directory; mirroring is best effort.
func persistArtifacts(ctx context.Context, w *wiring, name string, res artifact.ExecutionResult) {
	paths := res.ArtifactPaths()
	if len(paths) == 0 || w.s3 == nil {
		return
	}
	sessionID := fmt.Sprintf("%s-%s", name, time.Now().UTC().Format("20060102T150405Z"))
	for _, p := range paths {
		data, err := w.fs.SafeReadFile(p)
		if err != nil {
			log.Printf("artifact mirror: read %s: %v", p, err)
			continue
		}
		if err := w.s3.Put(ctx, sessionID, p, data); err != nil {
			log.Printf("artifact mirror: put %s: %v", p, err)
			continue
		}
		log.Printf("artifact mirrored: %s/%s", sessionID, p)
	}
}
