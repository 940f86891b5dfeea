package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"splan/internal/evaluator"
	"splan/internal/object"
	"splan/internal/parser"
	"splan/internal/security"
	"splan/internal/tools"
	"splan/internal/trace"
	"splan/internal/util"
)

var (
	// Version is the current version of the splan binary.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
	help      bool
	version   bool
	// logging
	logLevel string
	logFile  string
	// plan input
	planText string
	// security config
	policyFile string
	admin      bool
	// evaluator config
	concurrent  bool
	maxParallel int
	// trace config
	traceFile string
	// tool config
	dbDriver string
	dbDSN    string
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	// plan input
	flag.StringVar(&planText, "e", "", "Evaluate the given plan text instead of reading a file")
	// security config
	flag.StringVar(&policyFile, "policy", "", "Load the security policy from a TOML file")
	flag.BoolVar(&admin, "admin", false, "Run with the administrative tool set enabled")
	// evaluator config
	flag.BoolVar(&concurrent, "concurrent", false, "Use the cooperative task scheduler for par branches")
	flag.IntVar(&maxParallel, "max-parallel", evaluator.DefaultMaxParallel, "Maximum concurrently admitted par branches (task scheduler)")
	// trace config
	flag.StringVar(&traceFile, "trace-file", "", "Write the execution trace as JSON lines to this file")
	// tool config
	flag.StringVar(&dbDriver, "db-driver", "sqlite3", "Database driver for the db-query tool: sqlite3, mysql, postgres")
	flag.StringVar(&dbDSN, "db-dsn", "", "Database DSN for the db-query tool")
	// log config
	flag.StringVar(&logLevel, "log-level", "error", "Log level: debug, info, warn, error")
	flag.StringVar(&logFile, "log-file", "", "Log file path (if not set, logs to stderr)")
}

func main() {

	flag.Parse()

	loggerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(logLevel),
	}
	logWriter := configureLogWriter()
	defaultLogger := slog.New(slog.NewJSONHandler(logWriter, loggerOptions))
	slog.SetDefault(defaultLogger)

	if version {
		printVersion()
		return
	}

	if help {
		printHelp()
		return
	}

	config := util.Configuration{
		Version:     Version,
		BuildDate:   BuildDate,
		Commit:      Commit,
		PolicyFile:  policyFile,
		Admin:       admin,
		Concurrent:  concurrent,
		MaxParallel: maxParallel,
		TraceFile:   traceFile,
		DBDriver:    dbDriver,
		DBDSN:       dbDSN,
	}

	os.Exit(run(config, defaultLogger))
}

func run(config util.Configuration, logger *slog.Logger) int {
	source, err := readPlanSource()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	expr, err := parser.Parse(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		return 1
	}

	policy := security.DefaultPolicy()
	if config.PolicyFile != "" {
		policy, err = security.LoadPolicy(config.PolicyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "policy error: %v\n", err)
			return 1
		}
	}
	gate := security.NewGate(policy, logger)
	if report := gate.Check(expr, config.Admin); !report.OK {
		fmt.Fprintln(os.Stderr, "plan rejected by the security gate:")
		for _, reason := range report.Reasons {
			fmt.Fprintf(os.Stderr, "  - %s\n", reason)
		}
		return 2
	}

	registry := tools.NewRegistry(tools.Options{
		Logger:   logger,
		DBDriver: config.DBDriver,
		DBDSN:    config.DBDSN,
	})

	recorder := trace.NewRecorder()
	eval := evaluator.New(evaluator.Config{
		Concurrent:  config.Concurrent,
		MaxParallel: config.MaxParallel,
	}, registry, recorder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, evalErr := eval.Evaluate(ctx, expr, object.NewEnvironment())

	if config.TraceFile != "" {
		if err := writeTrace(recorder, config.TraceFile); err != nil {
			fmt.Fprintf(os.Stderr, "trace error: %v\n", err)
		}
	}

	if evalErr != nil {
		fmt.Fprintf(os.Stderr, "evaluation error: %v\n", evalErr)
		return 1
	}

	fmt.Println(result.Inspect())
	return 0
}

func readPlanSource() (string, error) {
	if planText != "" {
		return planText, nil
	}
	if flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile("/dev/stdin")
	if err != nil {
		return "", fmt.Errorf("no plan given: pass a file, -e, or pipe to stdin")
	}
	return string(data), nil
}

func writeTrace(recorder *trace.Recorder, path string) error {
	recorder.AnalyzeTreeStructure()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return recorder.WriteJSONL(f)
}

func configureLogWriter() *os.File {
	var logWriter *os.File
	var err error
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
			return os.Stderr
		}
		logWriter, err = os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
			logWriter = os.Stderr
		}
	} else {
		logWriter = os.Stderr
	}
	return logWriter
}

func printVersion() {

	fmt.Printf("splan version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: splan [options] [filename]

Options:
  -e <plan>            Evaluate the given plan text instead of reading a file.
  -policy <path>       Load the security policy from a TOML file. Defaults are built in.
  -admin               Run with the administrative tool set enabled.
  -concurrent          Use the cooperative task scheduler for par branches.
  -max-parallel <n>    Maximum concurrently admitted par branches. Default is %d.
  -trace-file <path>   Write the execution trace as JSON lines to this file.
  -db-driver <name>    Database driver for the db-query tool: sqlite3, mysql, postgres.
  -db-dsn <dsn>        Database DSN for the db-query tool.
  -help                Display this help information and exit.
  -version             Display version information and exit.
  -log-level <level>   Set the log level: debug, info, warn, error. Default is 'error'.
  -log-file <path>     Specify a log file to write logs. Default is stderr.

Details:
splan evaluates S-expression plans: every plan is checked against the
security policy before a single form runs, then walked by the selected
scheduler while each tool dispatch is recorded in a path-addressed trace.

Examples:
  splan -e '(plan (seq (calc "2+3") (notify done)))'
  splan -concurrent -trace-file trace.jsonl myplan.sp
  splan -admin -policy ops-policy.toml release-plan.sp

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, evaluator.DefaultMaxParallel, Version, BuildDate, Commit)
}

func logLevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
