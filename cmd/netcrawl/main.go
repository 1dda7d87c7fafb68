package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/common"
	"dev.hon.one/netcrawl/crawler"
	"dev.hon.one/netcrawl/db"
	"dev.hon.one/netcrawl/http"
	"dev.hon.one/netcrawl/parsers"
	"dev.hon.one/netcrawl/scrapers"
	"dev.hon.one/netcrawl/util"
)

// Exit code after SIGINT/SIGTERM
const exitInterrupted = 130

func main() {
	os.Exit(run())
}

func run() int {
	log.Infof("Starting %v version %v by %v", common.AppName, common.AppVersion, common.AppAuthor)

	// Parse CLI args (may exit)
	debug := false
	configPath := "config.json"
	flag.BoolVar(&debug, "debug", debug, "Show debug messages.")
	flag.StringVar(&configPath, "config", configPath, "Config file path.")
	flag.Parse()
	if debug {
		log.SetLevel(log.TraceLevel)
		log.Info("Debug mode enabled")
	}

	// Load config and credentials
	config, err := common.LoadConfig(configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load config")
		return 1
	}
	credentials, err := config.ResolveCredentials()
	if err != nil {
		log.WithError(err).Error("Failed to load credentials")
		return 1
	}
	exclude, err := crawler.ExcludePattern(config.ExclusionPattern)
	if err != nil {
		log.WithError(err).Error("Invalid exclusion pattern")
		return 1
	}

	// Setup internal shutdown mechanism
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
	shutdown := util.NewShutdownChannelDistributor(signalChannel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	crawlShutdownChannel := make(chan bool, 1)
	shutdown.AddListener(crawlShutdownChannel)
	go func() {
		<-crawlShutdownChannel
		cancel()
	}()

	sink, err := openSinks(ctx, config)
	if err != nil {
		log.WithError(err).Error("Failed to open sinks")
		return 1
	}
	defer sink.Close()

	// Wire the crawl
	mapping := parsers.NewVersionMapping(config.VersionMapping, config.DefaultClass, config.DefaultVendor)
	parseOptions := parsers.ParseOptions{
		Names: parsers.NameOptions{
			DomainSuffixes: config.DomainSuffixes,
			UpperCase:      config.UpperCaseNames,
		},
		Mapping: mapping,
	}
	dialer := &scrapers.SSHDialer{
		Credentials:    credentials,
		DefaultPort:    config.SSHPort,
		ConnectTimeout: config.ConnectTimeout,
	}
	registry := http.NewRegistry()
	netCrawler := crawler.New(crawler.NewSession(scrapers.NewDefaultRegistry(dialer.Dial), parseOptions), crawler.Options{
		Concurrency:    config.Concurrency,
		SessionTimeout: config.SessionTimeout,
		Exclude:        exclude,
		Names:          parseOptions.Names,
		Mapping:        mapping,
		CredentialID:   config.CredentialID,
		Sink:           sink,
		Metrics:        crawler.NewMetrics(registry),
	})

	// Run internal services in background
	var waitGroup sync.WaitGroup
	if config.HTTPEndpoint != "" {
		http.StartServer(&waitGroup, shutdown, config.HTTPEndpoint, http.NewHandler(registry, netCrawler.Progress))
	}
	defer func() {
		shutdown.Shutdown()
		waitGroup.Wait()
	}()

	result, err := netCrawler.Run(ctx, config.RootDevice)
	if result == nil {
		if shutdown.HasShutdown() {
			log.WithError(err).Warn("Crawl interrupted before the root device was visited")
			return exitInterrupted
		}
		log.WithError(err).Error("Crawl failed")
		return 1
	}
	if _, writeErr := db.WriteArtifacts(config.OutputDir, config.OutputFormat, result.StartTime, result.Adjacency, result.Failed); writeErr != nil {
		log.WithError(writeErr).Error("Failed to write artifacts")
		return 1
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"unvisited": len(result.Unvisited),
		}).Warn("Crawl did not finish")
		if shutdown.HasShutdown() {
			return exitInterrupted
		}
		return 1
	}
	return 0
}

func openSinks(ctx context.Context, config *common.Config) (db.Sink, error) {
	sinks := db.MultiSink{db.LogSink{}}
	if config.SQLitePath != "" {
		sqliteSink, err := db.NewSQLiteSink(config.SQLitePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sqliteSink)
	}
	if config.InfluxDB.Enabled() {
		connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
		defer connectCancel()
		influxSink, err := db.NewInfluxSink(connectCtx, config.InfluxDB)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, influxSink)
	}
	return sinks, nil
}
