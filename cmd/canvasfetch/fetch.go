package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"canvasfetch/pkg/auth"
	"canvasfetch/pkg/browser"
	"canvasfetch/pkg/config"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/ratelimit"
	"canvasfetch/pkg/scraper"
	"canvasfetch/pkg/storage"
	"canvasfetch/pkg/transfer"
)

var (
	fetchURL        string
	fetchUsername   string
	fetchDir        string
	fetchNoSkip     bool
	fetchHeadless   bool
	fetchDelay      time.Duration
	fetchConcurrent int
	fetchRateLimit  int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Sign in and mirror every course to the download directory",
	Long: `Fetch signs into the portal, discovers every course on the account,
and mirrors each course's homepage attachments, module items, and file
browser tree into the download directory.

Re-running fetch resumes where the last run left off: files already on
disk are skipped and earlier failures are retried.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchURL, "url", "u", "", "portal base URL (e.g. https://canvas.example.edu)")
	fetchCmd.Flags().StringVar(&fetchUsername, "username", "", "account to sign in with")
	fetchCmd.Flags().StringVarP(&fetchDir, "dir", "d", "", "download directory")
	fetchCmd.Flags().BoolVar(&fetchNoSkip, "no-skip", false, "re-download files that already exist")
	fetchCmd.Flags().BoolVar(&fetchHeadless, "headless", false, "run the browser without a window")
	fetchCmd.Flags().DurationVar(&fetchDelay, "delay", 0, "extra settle delay after each navigation")
	fetchCmd.Flags().IntVar(&fetchConcurrent, "concurrent", 0, "concurrent file transfers")
	fetchCmd.Flags().IntVar(&fetchRateLimit, "rate-limit", 0, "max portal requests per minute")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, map[string]interface{}{
		"url":        fetchURL,
		"username":   fetchUsername,
		"dir":        fetchDir,
		"no-skip":    fetchNoSkip,
		"headless":   fetchHeadless,
		"delay":      fetchDelay,
		"concurrent": fetchConcurrent,
		"rate-limit": fetchRateLimit,
		"log-level":  logLevel,
	})
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	authManager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential stores: %w", err)
	}
	account, err := authManager.Resolve(cfg.Canvas.Username)
	if err != nil {
		return fmt.Errorf("no usable credentials: %w", err)
	}
	store, err := storage.NewManager(cfg.Download.BaseDirectory, log)
	if err != nil {
		return err
	}
	ledger, err := storage.OpenLedger(store.Fs(), store.BaseDir())
	if err != nil {
		log.WithError(err).Warn("attempt ledger unavailable, continuing without it")
	}

	driver, err := browser.NewRodDriver(&cfg.Browser, log)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer driver.Close()

	runID := ""
	if ledger != nil {
		runID = ledger.RunID()
	}
	flow := browser.NewLoginFlow(driver, cfg, runID, log)
	if err := flow.Login(account.Username, account.Password); err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	client := transfer.NewClient(cfg.Download.TransferTimeout, limiter, cfg.RateLimit.MaxRetries, log)

	cookies, err := driver.Cookies()
	if err != nil {
		return fmt.Errorf("failed to export session cookies: %w", err)
	}
	if err := client.SeedCookies(cfg.Canvas.BaseURL, cookies); err != nil {
		return fmt.Errorf("failed to seed session cookies: %w", err)
	}

	engine := scraper.New(driver, client, store, ledger, cfg, log)
	stats, err := engine.Run()
	if err != nil {
		return err
	}

	fmt.Printf("\nDone. %d of %d courses mirrored into %s\n",
		stats.CoursesProcessed, stats.CoursesDiscovered, store.BaseDir())
	fmt.Printf("  downloaded: %d   skipped: %d   failed: %d\n",
		stats.Downloaded, stats.Skipped, stats.Failed)
	if stats.Failed > 0 {
		fmt.Println("  failed files were recorded as empty placeholders and will be retried next run")
	}

	return nil
}
