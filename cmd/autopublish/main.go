package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecociel/autopublish/api"
	"github.com/ecociel/autopublish/automation"
	"github.com/ecociel/autopublish/browser"
	"github.com/ecociel/autopublish/capture"
	"github.com/ecociel/autopublish/collector"
	"github.com/ecociel/autopublish/domain"
	"github.com/ecociel/autopublish/gateway/backend"
	"github.com/ecociel/autopublish/gateway/kafka"
	"github.com/ecociel/autopublish/lib/kafkaclient"
	"github.com/ecociel/autopublish/metrics"
	"github.com/ecociel/autopublish/outbox"
	"github.com/ecociel/autopublish/queue"
	redisrepo "github.com/ecociel/autopublish/repos/redis"
	"github.com/ecociel/autopublish/repos/sql"
	"github.com/ecociel/autopublish/runner"
	"github.com/ecociel/autopublish/sink"
	"github.com/ecociel/autopublish/uc"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/emicklei/go-restful/v3/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const accountRefresh = 5 * time.Minute

func main() {
	_ = godotenv.Load()

	var config Config
	envconfig.MustProcess("", &config)

	log.SetLogger(stdlog.New(os.Stderr, "[autopublish] ", stdlog.LstdFlags))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backendClient := backend.New(config.BackendUrl, config.BackendTimeout)

	reg := prometheus.NewRegistry()
	m := metrics.NewPromMetrics(reg)

	var (
		sinkOpts  []sink.Option
		queueOpts = []queue.Option{queue.WithMetrics(m)}
		events    uc.EventPublisher
	)

	if len(config.QueueHostPorts) > 0 {
		kClient, err := kafkaclient.NewProducer(config.QueueHostPorts, config.EventsTopic)
		if err != nil {
			stdlog.Fatal(err)
		}
		defer kClient.Close()
		pub := kafka.NewPublisher(kClient, config.EventsTopic)
		events = pub
		sinkOpts = append(sinkOpts, sink.WithEvents(pub))
	}

	resultSink := uc.ResultSink(backendClient.ReportResult)
	if config.DbConnectionUri != "" {
		pool, err := pgxpool.New(ctx, config.DbConnectionUri)
		if err != nil {
			stdlog.Fatal(err)
		}
		defer pool.Close()
		results := sql.NewResultRepo(pool)
		resultSink = results.Enqueue
		sinkOpts = append(sinkOpts, sink.WithSnapshotStore(sql.NewSnapshotRepo(pool)))
		go outbox.New(config.OutboxLimit, config.OutboxInterval, results, backendClient).Run(ctx)
	}

	if config.RedisUrl != "" {
		rdb, err := redisrepo.Connect(ctx, config.RedisUrl)
		if err != nil {
			stdlog.Fatal(err)
		}
		defer rdb.Close()
		queueOpts = append(queueOpts, queue.WithLedger(redisrepo.NewLedger(rdb)))
	}

	selectors, err := browser.LoadSelectors(config.SelectorsFile)
	if err != nil {
		stdlog.Fatal(err)
	}
	chrome, err := browser.Launch(ctx, config.browser(), selectors)
	if err != nil {
		stdlog.Fatal(err)
	}
	defer chrome.Close()

	watchTab, err := chrome.NewTab()
	if err != nil {
		stdlog.Fatal(err)
	}

	aggregator := sink.New(backendClient, sinkOpts...)
	scans := collector.New(watchTab, aggregator)
	ingest := uc.MakeIngestUseCase(aggregator, scans)

	tap := capture.NewTap(func(c domain.Capture) { ingest(ctx, c) }, aggregator.SetToken, config.BlockMedia)
	if err := tap.Attach(watchTab.Context()); err != nil {
		stdlog.Fatal(err)
	}

	watcher := browser.NewWatcher(watchTab, config.WatchUrls, aggregator.ResetPageLoad)
	refreshAccount := func(ctx context.Context) error {
		account, err := watchTab.FetchAccount(ctx)
		if err != nil {
			return err
		}
		if account.Email != "" || account.ID != "" {
			aggregator.SetAccount(account)
		}
		return nil
	}

	go runner.NewRunner("watch", watcher.Step, 0, config.WatchInterval).Run(ctx)
	go runner.NewRunner("collector", scans.CollectOnce, time.Second, config.ScanInterval).Run(ctx)
	go runner.NewRunner("account", refreshAccount, 5*time.Second, accountRefresh).Run(ctx)

	report := uc.MakeReportResultUseCase(resultSink, events)
	driver := automation.New(chrome, config.automation())
	manager := queue.New(backendClient, driver, report, config.queue(), queueOpts...)

	container := restful.NewContainer()
	container.Add(api.NewResource(uc.MakeCommandUseCase(manager)).WebService())
	control := &http.Server{Addr: config.ControlAddr, Handler: container}
	go serve(control, "control")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: config.MetricsAddr, Handler: mux}
	go serve(metricsServer, "metrics")

	log.Printf("publisher started, backend %s", config.BackendUrl)
	manager.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = control.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	log.Printf("publisher stopped")
}

func serve(srv *http.Server, name string) {
	log.Printf("%s listening on %s", name, srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("%s server stopped: %v", name, err)
	}
}
