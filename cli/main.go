package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kardianos/service"

	"github.com/martin-buur/ccusage/cli/internal/aggregator"
	"github.com/martin-buur/ccusage/cli/internal/config"
	"github.com/martin-buur/ccusage/cli/internal/output"
	syncclient "github.com/martin-buur/ccusage/cli/internal/sync"
	"github.com/martin-buur/ccusage/internal/model"
	"github.com/martin-buur/ccusage/internal/parser"
)

const version = "0.1.0"

func main() {
	// Detect subcommand first
	command := "daily"
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "daily", "monthly", "session", "sync", "config":
			command = args[0]
			args = args[1:]
		}
	}

	// Handle special commands
	switch command {
	case "sync":
		runSync(args)
		return
	case "config":
		runConfig(args)
		return
	}

	fs := flag.NewFlagSet("ccusage", flag.ExitOnError)

	var (
		since    string
		until    string
		timezone string
		mode     string
		order    string
		dataDir  string
		jsonOut  bool
		compact  bool
		offline  bool
		showHelp bool
		showVer  bool
	)

	fs.StringVar(&since, "since", "", "Start date filter (YYYYMMDD)")
	fs.StringVar(&until, "until", "", "End date filter (YYYYMMDD)")
	fs.StringVar(&timezone, "timezone", "", "Timezone for date grouping (e.g., America/New_York)")
	fs.StringVar(&mode, "mode", "auto", "Cost mode: auto, calculate or display")
	fs.StringVar(&order, "order", "desc", "Sort order: asc or desc")
	fs.StringVar(&dataDir, "dir", "", "Claude Code data directory (default ~/.claude/projects)")
	fs.BoolVar(&jsonOut, "json", false, "Output as JSON")
	fs.BoolVar(&compact, "compact", false, "Force compact table output")
	fs.BoolVar(&compact, "c", false, "Force compact table output")
	fs.BoolVar(&offline, "offline", false, "Use embedded pricing data (no network)")
	fs.BoolVar(&showHelp, "help", false, "Show help")
	fs.BoolVar(&showHelp, "h", false, "Show help")
	fs.BoolVar(&showVer, "version", false, "Show version")
	fs.BoolVar(&showVer, "v", false, "Show version")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ccusage - Claude Code usage reports

Usage: ccusage [command] [options]

Commands:
  daily     Show daily usage report (default)
  monthly   Show monthly usage report
  session   Show usage by session (5-hour activity windows)
  sync      Sync usage data to server
  config    Configure sync settings

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ccusage                      Show daily usage
  ccusage daily --since 20250115 --until 20250120
  ccusage monthly --json
  ccusage session --order asc
  ccusage daily --mode calculate --offline
  ccusage config --server https://example.com --api-key <key>
  ccusage sync
`)
	}

	fs.Parse(args)

	if showVer {
		fmt.Printf("ccusage version %s\n", version)
		return
	}

	if showHelp {
		fs.Usage()
		return
	}

	opts := aggregator.Options{
		Offline: offline,
		DataDir: resolveDataDir(dataDir),
	}

	if since != "" {
		if _, err := time.Parse("20060102", since); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid --since date format. Use YYYYMMDD.\n")
			os.Exit(1)
		}
		opts.Since = since
	}

	if until != "" {
		if _, err := time.Parse("20060102", until); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid --until date format. Use YYYYMMDD.\n")
			os.Exit(1)
		}
		opts.Until = until
	}

	costMode, err := aggregator.ParseCostMode(mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	opts.Mode = costMode

	sortOrder, err := aggregator.ParseSortOrder(order)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	opts.Order = sortOrder

	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid timezone: %s\n", timezone)
			os.Exit(1)
		}
		opts.Timezone = loc
	}

	tableOpts := output.TableOptions{ForceCompact: compact}

	switch command {
	case "daily":
		rows, err := aggregator.LoadDaily(opts)
		if err != nil {
			fatalf("Error reading usage data: %v", err)
		}
		if jsonOut {
			output.PrintJSON(dailyJSON(rows))
			return
		}
		output.PrintTable(output.DailyRows(rows), "Date", tableOpts)

	case "monthly":
		rows, err := aggregator.LoadMonthly(opts)
		if err != nil {
			fatalf("Error reading usage data: %v", err)
		}
		if jsonOut {
			output.PrintJSON(monthlyJSON(rows))
			return
		}
		output.PrintTable(output.MonthlyRows(rows), "Month", tableOpts)

	case "session":
		rows, err := aggregator.LoadSessions(opts)
		if err != nil {
			fatalf("Error reading usage data: %v", err)
		}
		if jsonOut {
			output.PrintJSON(sessionJSON(rows))
			return
		}
		output.PrintSessions(rows, tableOpts)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// resolveDataDir picks the data directory: flag first, then the config file.
// Empty means the aggregator falls back to the default location.
func resolveDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	cfg, err := config.Load()
	if err != nil {
		return ""
	}
	return cfg.DataDir
}

func dailyJSON(rows []model.DailyUsage) any {
	total := model.DailyUsage{Date: "total"}
	for _, r := range rows {
		total.Usage.Add(r.Usage)
		total.TotalCost += r.TotalCost
	}
	return struct {
		Daily []model.DailyUsage `json:"daily"`
		Total model.DailyUsage   `json:"total"`
	}{rows, total}
}

func monthlyJSON(rows []model.MonthlyUsage) any {
	total := model.MonthlyUsage{Month: "total"}
	for _, r := range rows {
		total.Usage.Add(r.Usage)
		total.TotalCost += r.TotalCost
	}
	return struct {
		Monthly []model.MonthlyUsage `json:"monthly"`
		Total   model.MonthlyUsage   `json:"total"`
	}{rows, total}
}

func sessionJSON(rows []model.SessionUsage) any {
	total := model.SessionUsage{SessionID: "total"}
	for _, r := range rows {
		total.Usage.Add(r.Usage)
		total.TotalCost += r.TotalCost
	}
	return struct {
		Sessions []model.SessionUsage `json:"sessions"`
		Total    model.SessionUsage   `json:"total"`
	}{rows, total}
}

func runConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	var (
		server  string
		apiKey  string
		dataDir string
		show    bool
	)
	fs.StringVar(&server, "server", "", "Server URL")
	fs.StringVar(&apiKey, "api-key", "", "API key for authentication")
	fs.StringVar(&dataDir, "dir", "", "Claude Code data directory override")
	fs.BoolVar(&show, "show", false, "Show current configuration")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ccusage config [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ccusage config --server https://example.com --api-key ccusage_xxx
  ccusage config --show
`)
	}

	fs.Parse(args)

	if show {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cfg.Server == "" {
			fmt.Println("No configuration found. Run 'ccusage config --server <url> --api-key <key>' to configure.")
			return
		}
		fmt.Printf("Server: %s\n", cfg.Server)
		if len(cfg.APIKey) > 14 {
			fmt.Printf("API Key: %s...%s\n", cfg.APIKey[:10], cfg.APIKey[len(cfg.APIKey)-4:])
		}
		if cfg.ClientID != "" {
			fmt.Printf("Client ID: %s\n", cfg.ClientID)
		}
		if cfg.DataDir != "" {
			fmt.Printf("Data dir: %s\n", cfg.DataDir)
		}
		return
	}

	if server == "" && apiKey == "" && dataDir == "" {
		fs.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}

	if server != "" {
		cfg.Server = server
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration saved.")
}

// syncService implements service.Interface for background syncing
type syncService struct {
	interval time.Duration
	stop     chan struct{}
	logger   service.Logger
}

func (s *syncService) Start(svc service.Service) error {
	s.stop = make(chan struct{})
	go s.run()
	return nil
}

func (s *syncService) Stop(svc service.Service) error {
	close(s.stop)
	return nil
}

func (s *syncService) run() {
	cfg, err := config.Load()
	if err != nil || cfg.Server == "" || cfg.APIKey == "" {
		if s.logger != nil {
			s.logger.Error("Not configured. Run 'ccusage config' first.")
		}
		return
	}

	client := syncclient.NewClient(cfg)

	// Sync immediately on start
	s.doSync(client, cfg)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.doSync(client, cfg)
		case <-s.stop:
			return
		}
	}
}

func (s *syncService) doSync(client *syncclient.Client, cfg *config.Config) {
	lastSync, _ := client.GetSyncStatus()

	records, err := parseAll(cfg.DataDir)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error reading usage data: %v", err)
		}
		return
	}

	toSync := newerThan(records, lastSync)
	if len(toSync) == 0 {
		return
	}

	inserted, err := client.Sync(toSync)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error syncing: %v", err)
		}
		return
	}

	if s.logger != nil {
		s.logger.Infof("Synced %d records", inserted)
	}
}

func parseAll(dataDir string) ([]model.UsageRecord, error) {
	root := dataDir
	if root == "" {
		var err error
		root, err = parser.DefaultDataDir()
		if err != nil {
			return nil, err
		}
	}
	return parser.ParseAll(root)
}

func newerThan(records []model.UsageRecord, lastSync *time.Time) []model.UsageRecord {
	var out []model.UsageRecord
	for _, r := range records {
		if lastSync == nil || r.Timestamp.After(*lastSync) {
			out = append(out, r)
		}
	}
	return out
}

func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	var (
		dryRun   bool
		interval time.Duration
	)
	fs.BoolVar(&dryRun, "dry-run", false, "Show what would be synced without sending")
	fs.DurationVar(&interval, "interval", time.Hour, "Sync interval for service mode (e.g., 1h, 30m)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ccusage sync [command] [options]

Commands:
  (none)      Sync once
  install     Install as a background service
  start       Start the background service
  stop        Stop the background service
  uninstall   Remove the background service
  status      Show service status

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ccusage sync                       Sync once
  ccusage sync install               Install service (syncs every hour)
  ccusage sync install --interval 30m
  ccusage sync start                 Start the service
  ccusage sync stop                  Stop the service
`)
	}

	// Check for service commands before parsing flags
	var svcCommand string
	if len(args) > 0 {
		switch args[0] {
		case "install", "start", "stop", "uninstall", "status", "run":
			svcCommand = args[0]
			args = args[1:]
		}
	}

	fs.Parse(args)

	svcConfig := &service.Config{
		Name:        "ccusage-sync",
		DisplayName: "ccusage Sync Service",
		Description: "Automatically syncs Claude Code usage data to server",
		Arguments:   []string{"sync", "run", fmt.Sprintf("--interval=%s", interval)},
	}

	svc := &syncService{interval: interval}
	s, err := service.New(svc, svcConfig)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	switch svcCommand {
	case "install":
		cfg, err := config.Load()
		if err != nil || cfg.Server == "" || cfg.APIKey == "" {
			fmt.Fprintf(os.Stderr, "Error: Not configured. Run 'ccusage config --server <url> --api-key <key>' first.\n")
			os.Exit(1)
		}
		if err := s.Install(); err != nil {
			log.Fatalf("Failed to install service: %v", err)
		}
		if err := s.Start(); err != nil {
			log.Fatalf("Service installed but failed to start: %v", err)
		}
		fmt.Printf("Service installed and started.\n")
		fmt.Printf("Sync interval: %s\n", interval)

	case "start":
		if err := s.Start(); err != nil {
			log.Fatalf("Failed to start service: %v", err)
		}
		fmt.Println("Service started.")

	case "stop":
		if err := s.Stop(); err != nil {
			log.Fatalf("Failed to stop service: %v", err)
		}
		fmt.Println("Service stopped.")

	case "uninstall":
		s.Stop() // ignore error
		if err := s.Uninstall(); err != nil {
			log.Fatalf("Failed to uninstall service: %v", err)
		}
		fmt.Println("Service uninstalled.")

	case "status":
		status, err := s.Status()
		if err != nil {
			fmt.Printf("Service status: not installed or error (%v)\n", err)
			return
		}
		switch status {
		case service.StatusRunning:
			fmt.Println("Service status: running")
		case service.StatusStopped:
			fmt.Println("Service status: stopped")
		default:
			fmt.Println("Service status: unknown")
		}

	case "run":
		// Running as the installed service
		logger, err := s.Logger(nil)
		if err == nil {
			svc.logger = logger
		}
		if err := s.Run(); err != nil && logger != nil {
			logger.Error(err)
		}

	default:
		cfg, err := config.Load()
		if err != nil || cfg.Server == "" || cfg.APIKey == "" {
			fmt.Fprintf(os.Stderr, "Error: Not configured. Run 'ccusage config --server <url> --api-key <key>' first.\n")
			os.Exit(1)
		}

		client := syncclient.NewClient(cfg)
		doSyncOnce(client, cfg, dryRun)
	}
}

func doSyncOnce(client *syncclient.Client, cfg *config.Config, dryRun bool) {
	lastSync, err := client.GetSyncStatus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not get sync status: %v\n", err)
	}

	records, err := parseAll(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading usage data: %v\n", err)
		os.Exit(1)
	}

	toSync := newerThan(records, lastSync)
	if len(toSync) == 0 {
		fmt.Println("No new records to sync.")
		return
	}

	fmt.Printf("Found %d new records to sync.\n", len(toSync))

	if dryRun {
		fmt.Println("Dry run - no data sent.")
		return
	}

	inserted, err := client.Sync(toSync)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error syncing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sync complete. %d records inserted.\n", inserted)
}
