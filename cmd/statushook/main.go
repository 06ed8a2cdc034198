package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/statusops/statushook/internal/action"
	"github.com/statusops/statushook/internal/config"
	"github.com/statusops/statushook/internal/dispatch"
	"github.com/statusops/statushook/internal/doctor"
	"github.com/statusops/statushook/internal/event"
	"github.com/statusops/statushook/internal/execlog"
	"github.com/statusops/statushook/internal/storage"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		os.Exit(runSystemNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "action":
		os.Exit(runActionNoun(args))
	case "log":
		os.Exit(runLogNoun(args))

	// --- ROOT ALIASES ---
	case "start":
		os.Exit(runStart(args))
	case "doctor":
		os.Exit(runConfigCheck(args))
	case "version":
		fmt.Printf("statushook version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`statushook - Issue status transition action dispatcher

Usage:
  statushook <noun> <action> [flags]

Core Resources (Nouns):
  system    Daemon lifecycle and health
  config    Configuration and integrity
  action    Action config management
  log       Execution log browsing

System Commands:
  system start          Start the daemon in foreground

Config Commands:
  config lock           Authorize current config (update integrity hash)
  config check          Validate config, environment, and integrity

Action Commands:
  action list           List action configs
  action test <id>      Dispatch a synthetic transition for a config

Log Commands:
  log list              List recent execution logs
  log show <id>         Show one execution log in full

General:
  version               Show version information
  help                  Show this help message

Use 'statushook <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	verb := args[0]
	verbArgs := args[1:]

	switch verb {
	case "start":
		if hasHelpFlag(verbArgs) {
			fmt.Println("Usage: statushook system start [--config PATH]")
			fmt.Println("Start the daemon in the foreground.")
			return 0
		}
		return runStart(verbArgs)
	case "help":
		printSystemNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", verb)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	verb := args[0]
	verbArgs := args[1:]

	switch verb {
	case "lock":
		if hasHelpFlag(verbArgs) {
			fmt.Println("Usage: statushook config lock [--config PATH]")
			fmt.Println("Authorize current configuration state by regenerating its integrity hash.")
			return 0
		}
		return runConfigLock(verbArgs)
	case "check":
		if hasHelpFlag(verbArgs) {
			fmt.Println("Usage: statushook config check [--config PATH] [--strict] [--json]")
			fmt.Println("Validate configuration, environment, and integrity.")
			return 0
		}
		return runConfigCheck(verbArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", verb)
		return 1
	}
}

func runActionNoun(args []string) int {
	if len(args) < 1 {
		printActionNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printActionNounHelp(os.Stdout)
		return 0
	}

	verb := args[0]
	verbArgs := args[1:]

	switch verb {
	case "list":
		if hasHelpFlag(verbArgs) {
			fmt.Println("Usage: statushook action list [--config PATH] [--json]")
			fmt.Println("List all action configs.")
			return 0
		}
		return runActionList(verbArgs)
	case "test":
		if hasHelpFlag(verbArgs) {
			fmt.Println("Usage: statushook action test <id> [--config PATH] [--issue-id N]")
			fmt.Println("Dispatch a synthetic transition matching the config and print the log.")
			return 0
		}
		return runActionTest(verbArgs)
	case "help":
		printActionNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown action verb: %s\n", verb)
		return 1
	}
}

func runLogNoun(args []string) int {
	if len(args) < 1 {
		printLogNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printLogNounHelp(os.Stdout)
		return 0
	}

	verb := args[0]
	verbArgs := args[1:]

	switch verb {
	case "list":
		if hasHelpFlag(verbArgs) {
			fmt.Println("Usage: statushook log list [--config PATH] [--limit N] [--issue-id N] [--failed] [--json]")
			fmt.Println("List recent execution logs, newest first.")
			return 0
		}
		return runLogList(verbArgs)
	case "show":
		if hasHelpFlag(verbArgs) {
			fmt.Println("Usage: statushook log show <id> [--config PATH]")
			fmt.Println("Show one execution log in full, including captured output.")
			return 0
		}
		return runLogShow(verbArgs)
	case "help":
		printLogNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown log verb: %s\n", verb)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: statushook system <action>")
	fmt.Fprintln(w, "Actions: start")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: statushook config <action> [flags]")
	fmt.Fprintln(w, "Actions: lock, check")
}

func printActionNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: statushook action <verb> [flags]")
	fmt.Fprintln(w, "Verbs: list, test")
}

func printLogNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: statushook log <verb> [flags]")
	fmt.Fprintln(w, "Verbs: list, show")
}

// --- ACTION IMPLEMENTATIONS ---

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	resolvedPath := *configPath
	if resolvedPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		resolvedPath = discovered
	}

	hash, err := config.Lock(resolvedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	fmt.Printf("Locked %s\n  blake3: %s\n", resolvedPath, hash)
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg, resolvedPath).Validate(context.Background())

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if *strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runActionList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	db, cleanup, err := openDatabase(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer cleanup()

	configs, err := action.NewStore(db).List(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list action configs: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(configs, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(configs) == 0 {
		fmt.Println("No action configs defined.")
		return 0
	}
	for _, c := range configs {
		state := "enabled"
		if !c.Enabled {
			state = "disabled"
		}
		from := "*"
		if c.FromStatusID != nil {
			from = strconv.FormatInt(*c.FromStatusID, 10)
		}
		project := "global"
		if c.ProjectID != nil {
			project = fmt.Sprintf("project %d", *c.ProjectID)
		}
		fmt.Printf("%4d  %-8s %-8s %s -> %d  [%s]  %s\n",
			c.ID, c.Type, state, from, c.ToStatusID, project, c.Name)
	}
	return 0
}

func runActionTest(args []string) int {
	var configPath string
	var issueID int64

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file")
	fs.Int64Var(&issueID, "issue-id", 1, "Issue id for the synthetic transition")

	// Support flags after the positional id.
	var idArg string
	var remainingArgs []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") && idArg == "" {
			idArg = arg
		} else {
			remainingArgs = append(remainingArgs, arg)
		}
	}
	if err := fs.Parse(remainingArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if idArg == "" {
		fmt.Fprintf(os.Stderr, "Usage: statushook action test <id> [--config PATH] [--issue-id N]\n")
		return 1
	}
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid action id: %s\n", idArg)
		return 1
	}

	db, cleanup, err := openDatabase(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer cleanup()

	ctx := context.Background()
	actions := action.NewStore(db)
	logs := execlog.NewStore(db)

	cfg, err := actions.Get(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load action config: %v\n", err)
		return 1
	}
	if !cfg.Enabled {
		fmt.Fprintf(os.Stderr, "Action config %d is disabled; enable it first\n", id)
		return 1
	}

	t := event.Transition{
		IssueID:       issueID,
		IssueSubject:  "Test issue",
		OldStatusID:   cfg.FromStatusID,
		NewStatusID:   cfg.ToStatusID,
		NewStatusName: "Test Status",
		AuthorName:    "CLI Test",
		CreatedOn:     time.Now().UTC(),
		UpdatedOn:     time.Now().UTC(),
	}
	if cfg.ProjectID != nil {
		t.ProjectID = *cfg.ProjectID
	}

	logID := dispatch.New(actions, logs).Dispatch(ctx, t)
	if logID == "" {
		fmt.Fprintf(os.Stderr, "Transition resolved to a different config; nothing executed\n")
		return 1
	}

	rec, err := logs.Get(ctx, logID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dispatch ran but log lookup failed: %v\n", err)
		return 1
	}

	printLogRecord(rec)
	if !rec.Success {
		return 1
	}
	return 0
}

func runLogList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	limit := fs.Int("limit", 20, "Maximum number of logs")
	issueID := fs.Int64("issue-id", 0, "Filter by issue id")
	failed := fs.Bool("failed", false, "Show only failures")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	db, cleanup, err := openDatabase(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer cleanup()

	filter := execlog.Filter{Limit: *limit}
	if *issueID != 0 {
		filter.IssueID = issueID
	}
	if *failed {
		success := false
		filter.Success = &success
	}

	records, err := execlog.NewStore(db).List(context.Background(), filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list execution logs: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(records) == 0 {
		fmt.Println("No execution logs.")
		return 0
	}
	for _, rec := range records {
		verdict := "FAIL"
		if rec.Success {
			verdict = "ok"
		}
		duration := ""
		if ms := rec.DurationMS(); ms >= 0 {
			duration = fmt.Sprintf(" %dms", ms)
		}
		fmt.Printf("%s  %s  issue %d -> status %d  %s%s\n",
			rec.ExecutedAt.Local().Format("2006-01-02 15:04:05"),
			rec.ID, rec.IssueID, rec.ToStatusID, verdict, duration)
	}
	return 0
}

func runLogShow(args []string) int {
	var configPath string

	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file")

	var logID string
	var remainingArgs []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") && logID == "" {
			logID = arg
		} else {
			remainingArgs = append(remainingArgs, arg)
		}
	}
	if err := fs.Parse(remainingArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if logID == "" {
		fmt.Fprintf(os.Stderr, "Usage: statushook log show <id> [--config PATH]\n")
		return 1
	}

	db, cleanup, err := openDatabase(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer cleanup()

	rec, err := execlog.NewStore(db).Get(context.Background(), logID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load execution log: %v\n", err)
		return 1
	}

	printLogRecord(rec)
	return 0
}

func printLogRecord(rec *execlog.Record) {
	verdict := "FAIL"
	if rec.Success {
		verdict = "ok"
	}
	fmt.Printf("Log %s  [%s]\n", rec.ID, verdict)
	fmt.Printf("  issue:    %d\n", rec.IssueID)
	if rec.FromStatusID != nil {
		fmt.Printf("  status:   %d -> %d\n", *rec.FromStatusID, rec.ToStatusID)
	} else {
		fmt.Printf("  status:   * -> %d\n", rec.ToStatusID)
	}
	if rec.ConfigID != nil {
		fmt.Printf("  config:   %d\n", *rec.ConfigID)
	}
	fmt.Printf("  executed: %s\n", rec.ExecutedAt.Local().Format(time.RFC3339))
	if ms := rec.DurationMS(); ms >= 0 {
		fmt.Printf("  duration: %dms\n", ms)
	}
	if rec.Output != "" {
		fmt.Printf("  output:\n%s\n", indent(rec.Output))
	}
	if rec.ErrorMessage != "" {
		fmt.Printf("  error:\n%s\n", indent(rec.ErrorMessage))
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func loadConfig(configPath string) (*config.Config, string, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, "", err
		}
		configPath = discovered
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

func openDatabase(configPath string) (db *sql.DB, cleanup func(), err error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to load config: %w", err)
	}
	d, err := storage.OpenSQLite(context.Background(), cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to open database: %w", err)
	}
	return d, func() { d.Close() }, nil
}
