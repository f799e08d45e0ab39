// buildgatectl administers a build server's security configuration:
// validating settings files, listing users, querying the audit trail,
// purging expired sessions and hashing passwords for settings files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ccnet/buildgate/internal/config"
	"github.com/ccnet/buildgate/internal/security"
	"github.com/ccnet/buildgate/internal/security/audit"
	"github.com/ccnet/buildgate/internal/security/auth"
	"github.com/ccnet/buildgate/internal/security/manager"
	"github.com/ccnet/buildgate/internal/security/permission"
	"github.com/ccnet/buildgate/internal/security/session"
	"github.com/ccnet/buildgate/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type cliConfig struct {
	configPath string
	jsonOutput bool
}

func main() {
	cli, command, args, err := parseArgs(os.Args[1:])
	if errors.Is(err, errShowUsage) {
		printUsage()
		if len(os.Args) == 1 {
			os.Exit(1)
		}
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	if command == "" {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(cli.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()

	shutdownTraces, err := telemetry.InitTraceProvider(ctx, cfg.OTLPEndpoint, version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tracing disabled: %v\n", err)
	} else {
		defer shutdownTraces(ctx)
	}

	switch command {
	case "validate":
		err = runValidate(ctx, cfg, args)
	case "users":
		err = runUsers(cfg, cli, args)
	case "audit":
		err = runAudit(ctx, cfg, cli, args)
	case "sessions":
		err = runSessions(cfg, args)
	case "hash-password":
		err = runHashPassword(args)
	case "version":
		fmt.Printf("buildgatectl %s (commit: %s, built: %s)\n", version, commit, date)
		return
	case "help", "--help", "-h":
		printUsage()
	default:
		err = fmt.Errorf("unknown command: %s", command)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var errShowUsage = errors.New("show usage")

func parseArgs(args []string) (cliConfig, string, []string, error) {
	cli := cliConfig{
		configPath: os.Getenv("BUILDGATE_CONFIG"),
	}

	idx := 0
	for idx < len(args) {
		arg := args[idx]
		if !strings.HasPrefix(arg, "-") {
			break
		}
		switch arg {
		case "--help", "-h":
			return cli, "", nil, errShowUsage
		case "--config", "-c":
			if idx+1 >= len(args) {
				return cli, "", nil, fmt.Errorf("--config requires a value")
			}
			cli.configPath = args[idx+1]
			idx += 2
		case "--json":
			cli.jsonOutput = true
			idx++
		default:
			return cli, "", nil, fmt.Errorf("unknown flag: %s", arg)
		}
	}

	if idx >= len(args) {
		return cli, "", nil, errShowUsage
	}

	return cli, args[idx], args[idx+1:], nil
}

func printUsage() {
	fmt.Print(`Usage: buildgatectl [--config <path>] [--json] <command>

Commands:
  validate [files...]       Check settings files: parse errors, dangling
                            rule references, reference cycles. With no
                            files, assemble and check the whole config
  users                     List configured users
  audit [--count n] [--start n] [--user u] [--project p]
                            Query the audit trail, oldest first
  audit purge               Trim durable audit stores to retention_days
  sessions purge            Evict expired durable sessions
  hash-password <password>  Print a password hash for settings files
  version                   Show version
`)
}

// buildManager loads the file-backed manager the server itself would
// run with, so validation sees exactly what the server would.
func buildManager(cfg config.Config, paths []string) (*manager.File, error) {
	if len(paths) == 0 {
		paths = cfg.SettingsFiles
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no settings files: pass them as arguments or set settings_files in the config")
	}

	right, err := security.ParseRight(cfg.DefaultRight)
	if err != nil {
		return nil, fmt.Errorf("default_right: %w", err)
	}

	var dir auth.DirectoryService
	if cfg.HasLDAP() {
		dir = auth.NewLDAPService(cfg.LDAP.URL, time.Duration(cfg.LDAP.TimeoutSeconds)*time.Second)
	}

	m := manager.NewFile(manager.Options{
		Defaults: permission.Rights{Default: right},
	}, dir, paths...)
	if err := m.Init(); err != nil {
		return nil, err
	}
	return m, nil
}

func runValidate(ctx context.Context, cfg config.Config, args []string) error {
	// With explicit files, check just those. Otherwise assemble the
	// whole configured subsystem so session store, sweep schedule and
	// audit sinks are exercised too.
	if len(args) > 0 {
		m, err := buildManager(cfg, args)
		if err != nil {
			return err
		}
		fmt.Printf("ok: %d users\n", len(m.ListUsers()))
		return nil
	}

	m, release, err := manager.FromConfig(ctx, cfg, nil)
	if err != nil {
		return err
	}
	users := len(m.ListUsers())
	if err := release(); err != nil {
		return err
	}
	fmt.Printf("ok: mode %s, %d users\n", cfg.Mode, users)
	return nil
}

func runUsers(cfg config.Config, cli cliConfig, args []string) error {
	m, err := buildManager(cfg, args)
	if err != nil {
		return err
	}
	users := m.ListUsers()

	if cli.jsonOutput {
		return PrintJSON(os.Stdout, users)
	}

	headers := []string{"NAME", "DISPLAY", "KIND"}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		display := u.DisplayName
		if display == "" {
			display = "-"
		}
		rows = append(rows, []string{u.UserName, Truncate(display, 30), u.Kind})
	}
	RenderTable(os.Stdout, headers, rows)
	fmt.Fprintf(os.Stdout, "\nTotal: %d users\n", len(users))
	return nil
}

// openReader picks the configured audit reader: the SQLite store when
// one is configured, else the centralized Postgres store, else the
// JSONL file log.
func openReader(ctx context.Context, cfg config.Config) (audit.Reader, func() error, error) {
	if cfg.Audit.SQLitePath != "" {
		store, err := audit.NewStore(cfg.Audit.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	if cfg.Audit.PostgresDSN != "" {
		pg, err := audit.NewPostgres(ctx, cfg.Audit.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() error { pg.Close(); return nil }, nil
	}
	if cfg.Audit.FilePath != "" {
		flog, err := audit.NewFileLog(cfg.Audit.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return flog, flog.Close, nil
	}
	return nil, nil, fmt.Errorf("no audit store configured")
}

func runAudit(ctx context.Context, cfg config.Config, cli cliConfig, args []string) error {
	if len(args) > 0 && args[0] == "purge" {
		return runAuditPurge(ctx, cfg)
	}

	start := 0
	count := 50
	filter := &audit.Filter{}

	for i := 0; i < len(args); i++ {
		needsValue := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", args[i])
			}
			i++
			return args[i], nil
		}
		var v string
		var err error
		switch args[i] {
		case "--start":
			if v, err = needsValue(); err == nil {
				start, err = strconv.Atoi(v)
			}
		case "--count":
			if v, err = needsValue(); err == nil {
				count, err = strconv.Atoi(v)
			}
		case "--user":
			filter.UserName, err = needsValue()
		case "--project":
			filter.Project, err = needsValue()
		default:
			err = fmt.Errorf("unknown flag: %s", args[i])
		}
		if err != nil {
			return err
		}
	}

	reader, release, err := openReader(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	recs, err := reader.Read(ctx, start, count, filter)
	if err != nil {
		return err
	}

	if cli.jsonOutput {
		return PrintJSON(os.Stdout, recs)
	}

	headers := []string{"TIME", "TYPE", "USER", "PROJECT", "RIGHT", "MESSAGE"}
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		project := rec.Project
		if project == "" {
			project = "-"
		}
		rows = append(rows, []string{
			FormatTimeOrDash(rec.Timestamp),
			string(rec.Type),
			Truncate(rec.UserName, 18),
			Truncate(project, 18),
			ColorRight(rec.Right.String()),
			Truncate(rec.Message, 40),
		})
	}
	RenderTable(os.Stdout, headers, rows)
	fmt.Fprintf(os.Stdout, "\nTotal: %d records\n", len(recs))
	return nil
}

// runAuditPurge trims durable audit stores to the configured
// retention window.
func runAuditPurge(ctx context.Context, cfg config.Config) error {
	if cfg.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit purge needs retention_days > 0 in the config")
	}
	retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour

	purged := false
	if cfg.Audit.SQLitePath != "" {
		store, err := audit.NewStore(cfg.Audit.SQLitePath)
		if err != nil {
			return err
		}
		n, err := store.Purge(retention)
		if cerr := store.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Printf("sqlite: purged %d records older than %d days\n", n, cfg.Audit.RetentionDays)
		purged = true
	}
	if cfg.Audit.PostgresDSN != "" {
		pg, err := audit.NewPostgres(ctx, cfg.Audit.PostgresDSN)
		if err != nil {
			return err
		}
		n, err := pg.Purge(ctx, retention)
		pg.Close()
		if err != nil {
			return err
		}
		fmt.Printf("postgres: purged %d records older than %d days\n", n, cfg.Audit.RetentionDays)
		purged = true
	}
	if !purged {
		return fmt.Errorf("no durable audit store configured")
	}
	return nil
}

func runSessions(cfg config.Config, args []string) error {
	if len(args) != 1 || args[0] != "purge" {
		return fmt.Errorf("usage: buildgatectl sessions purge")
	}

	mode, err := session.ParseExpiryMode(cfg.Session.Mode)
	if err != nil {
		return err
	}
	duration := time.Duration(cfg.Session.DurationMinutes) * time.Minute

	cache := session.NewFile(sessionDir(cfg), duration, mode, nil)
	if err := cache.Init(); err != nil {
		return err
	}
	evicted := cache.Purge()
	fmt.Printf("purged %d expired sessions\n", evicted)
	return nil
}

func sessionDir(cfg config.Config) string {
	return cfg.DataDir + "/sessions"
}

func runHashPassword(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: buildgatectl hash-password <password>")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}
