// Command spider is a breadth-first keyword crawler: it fetches pages
// starting from a seed URL, follows in-scope anchor links up to a
// depth cap, and persists page bodies into a per-host table.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FranksOps/spider/internal/fingerprint"
	"github.com/FranksOps/spider/internal/logging"
	"github.com/FranksOps/spider/internal/metrics"
	"github.com/FranksOps/spider/internal/scraper"
	"github.com/FranksOps/spider/internal/storage"
	"github.com/FranksOps/spider/internal/storage/postgres"
	"github.com/FranksOps/spider/internal/storage/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "spider -u <url>",
	Short: "Breadth-first web crawler with keyword filtering",
	Long: `spider crawls a site breadth-first from a seed URL, stores page
bodies into a per-host table of an embedded database, and optionally
keeps only pages containing a keyword. Scope is the seed's primary
domain and its subdomains unless --pridomain restricts it to the exact
seed host.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringP("url", "u", "", "seed URL to start crawling from (required)")
	flags.IntP("deep", "d", 7, "maximum crawl depth")
	flags.StringP("logfile", "f", "spider.log", "append log output to this file")
	flags.IntP("loglevel", "l", 5, "log verbosity 1-5, higher is more verbose")
	flags.Int("thread", 20, "worker pool size")
	flags.String("dbfile", "data.db", "sqlite database file for crawl results")
	flags.String("dsn", "", "postgres DSN; overrides --dbfile when set")
	flags.String("key", "", "only persist non-seed pages containing this keyword")
	flags.BoolP("pridomain", "p", false, "restrict the crawl to the exact seed host")
	flags.Bool("testself", false, "run the self test and exit")
	flags.String("fingerprint", "go", "TLS fingerprint profile: go, chrome, firefox, safari, random")
	flags.Int("metrics-port", 0, "expose prometheus metrics on this port (0 = disabled)")
	flags.Bool("store-raw", true, "persist bodies whose charset cannot be resolved")
	flags.StringVar(&cfgFile, "config", "", "optional config file (yaml)")

	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("SPIDER")
	viper.AutomaticEnv()

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
		}
	})
}

func run(cmd *cobra.Command, args []string) error {
	if viper.GetBool("testself") {
		fmt.Println("...............ok.................")
		return nil
	}

	seedURL := viper.GetString("url")
	if seedURL == "" {
		fmt.Println("Error: option -u must not be null")
		fmt.Println("Use -h or --help for more information.")
		os.Exit(1)
	}

	profile := viper.GetString("fingerprint")
	if !fingerprint.Valid(profile) {
		fmt.Printf("Error: unknown fingerprint profile %q\n", profile)
		fmt.Println("Use -h or --help for more information.")
		os.Exit(1)
	}

	logger, closeLog, err := logging.Setup(viper.GetString("logfile"), viper.GetInt("loglevel"))
	if err != nil {
		return err
	}
	defer closeLog()

	seed := scraper.NormalizeSeed(seedURL)
	parsed, err := url.Parse(seed)
	if err != nil {
		return fmt.Errorf("bad seed URL %q: %w", seedURL, err)
	}

	// The crawl table is keyed by the seed netloc, host-with-port.
	store, err := openStore(cmd.Context(), parsed.Host)
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.Profile(profile),
	})
	if err != nil {
		return err
	}

	crawler, err := scraper.NewCrawler(seed, scraper.CrawlConfig{
		Deep:      viper.GetInt("deep"),
		Threads:   viper.GetInt("thread"),
		Keyword:   viper.GetString("key"),
		PriDomain: viper.GetBool("pridomain"),
		StoreRaw:  viper.GetBool("store-raw"),
		Store:     store,
	}, fetcher, logger)
	if err != nil {
		return err
	}

	if port := viper.GetInt("metrics-port"); port > 0 {
		srv := metrics.Start(port)
		defer srv.Stop(context.Background())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return crawler.Run(ctx) })

	if err := g.Wait(); err != nil {
		if errors.Is(err, scraper.ErrInterrupted) {
			_ = store.Close()
			logger.Warn("*** ERROR: KeyboardInterrupt")
			_ = closeLog()
			os.Exit(1)
		}
		return err
	}
	return nil
}

func openStore(ctx context.Context, netloc string) (storage.PageStore, error) {
	if dsn := viper.GetString("dsn"); dsn != "" {
		return postgres.New(ctx, dsn, netloc)
	}
	return sqlite.New(viper.GetString("dbfile"), netloc)
}

func main() {
	if len(os.Args) == 1 {
		_ = rootCmd.Help()
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		fmt.Println("Use -h or --help for more information.")
		os.Exit(1)
	}
}
