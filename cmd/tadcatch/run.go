package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tadcatch/pkg/auth"
	"tadcatch/pkg/backoff"
	"tadcatch/pkg/browser"
	"tadcatch/pkg/config"
	"tadcatch/pkg/download"
	"tadcatch/pkg/logger"
	"tadcatch/pkg/scraper"
	"tadcatch/pkg/session"
	"tadcatch/pkg/storage"
)

var (
	// Run command flags
	downloadDir    string
	includeReports bool
	maxAttempts    int
	headless       bool
	stateDir       string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the account and download everything new",
	Long: `Crawl every month tile on the account, for every child, and download
each photo, video and daily report that is not already on disk.

Credentials come from stored accounts ('tadcatch auth login'), the
TADCATCH_EMAIL and TADCATCH_PASSWORD environment variables, or an
interactive prompt. A successful login leaves an encrypted cookie jar
behind so the next run skips the login flow.

Interrupting with Ctrl-C skips the item currently being downloaded and
moves on; the crawl itself keeps going.`,
	Example: `  # Crawl with defaults
  tadcatch run

  # Media only, into a custom directory, without a browser window
  tadcatch run --download-dir ~/tadpoles --include-reports=false --headless

  # Give up on an item after 5 failed fetches instead of retrying forever
  tadcatch run --max-attempts 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runCrawl(cmd)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&downloadDir, "download-dir", "d", "", "directory for downloaded files (default: ./download)")
	runCmd.Flags().BoolVar(&includeReports, "include-reports", true, "also download daily reports")
	runCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "fetch attempts per item, 0 retries forever")
	runCmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	runCmd.Flags().StringVar(&stateDir, "state-dir", "", "directory for session state (default: ./state)")
}

// Make run the default command when no subcommand is specified.
func init() {
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(runCmd, args)
	}
}

func runCrawl(cmd *cobra.Command) {
	flags := make(map[string]interface{})
	if downloadDir != "" {
		flags["download-dir"] = downloadDir
	}
	if cmd.Flags().Changed("include-reports") {
		flags["include-reports"] = includeReports
	}
	if cmd.Flags().Changed("max-attempts") {
		flags["max-attempts"] = maxAttempts
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	if stateDir != "" {
		flags["state-dir"] = stateDir
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logging:", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("tadcatch starting")

	jar, err := session.NewJar(cfg.State.CookieJarPath())
	if err != nil {
		log.WithError(err).Fatal("failed to open cookie jar")
	}

	// A saved session makes credentials optional; resolve them only when the
	// jar cannot carry the run.
	creds := resolveCredentials(jar, log)

	b, err := browser.NewChrome(cfg.Portal, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start browser")
	}
	defer b.Close()

	ctx := context.Background()
	sleeper := backoff.New(cfg.Backoff, log)

	sess := session.New(b, jar, sleeper, creds, log)
	if err := sess.Establish(ctx); err != nil {
		log.WithError(err).Fatal("failed to establish session")
	}

	cookies, err := sess.RequestCookies(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to export session cookies")
	}

	store, err := storage.NewManager(cfg.Download.Directory)
	if err != nil {
		log.WithError(err).Fatal("failed to prepare download directory")
	}

	engine := download.NewEngine(store, b, sleeper, cfg.Download, cfg.Portal.UserAgent, cookies, log)

	if err := scraper.New(b, sleeper, engine, cfg, log).Run(ctx); err != nil {
		log.WithError(err).Fatal("crawl failed")
	}

	log.Info("crawl completed")
}

// resolveCredentials finds login credentials without failing the run: a
// saved cookie jar may make them unnecessary. Order is stored accounts,
// environment, then an interactive prompt.
func resolveCredentials(jar *session.Jar, log logger.Logger) *auth.Credentials {
	manager, err := auth.NewManager()
	if err == nil {
		creds, err := manager.LoadAny()
		if err == nil {
			log.WithField("email", creds.Email).Info("using stored credentials")
			return creds
		}
		if !errors.Is(err, auth.ErrCredentialsNotFound) {
			log.WithError(err).Warn("failed to read stored credentials")
		}
	}

	if _, err := jar.Load(); err == nil {
		// No credentials, but a saved session might still get us in.
		return nil
	}

	creds, err := promptCredentials("")
	if err != nil {
		log.WithError(err).Fatal("no credentials available")
	}
	return creds
}
