// Command pixelreco clusters pixel digis event by event, optionally storing
// the clusters in SQLite and serving status, charts, metrics and gRPC
// health while it runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/banshee-data/pixelreco/internal/config"
	"github.com/banshee-data/pixelreco/internal/pixel"
	"github.com/banshee-data/pixelreco/internal/pixel/calib"
	"github.com/banshee-data/pixelreco/internal/pixel/clusterizer"
	"github.com/banshee-data/pixelreco/internal/pixel/geometry"
	"github.com/banshee-data/pixelreco/internal/pixel/health"
	"github.com/banshee-data/pixelreco/internal/pixel/ingest"
	"github.com/banshee-data/pixelreco/internal/pixel/monitor"
	"github.com/banshee-data/pixelreco/internal/pixel/pipeline"
	"github.com/banshee-data/pixelreco/internal/pixel/producer"
	"github.com/banshee-data/pixelreco/internal/pixel/storage/sqlite"
	"github.com/banshee-data/pixelreco/internal/version"
)

type options struct {
	configPath   string
	inputPath    string
	geometryPath string
	dbPath       string
	listen       string
	grpcListen   string
	serve        bool
	logOps       string
	logDiag      string
	logTrace     string
	version      bool
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("pixelreco", flag.ContinueOnError)
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Path to cluster config JSON (default: built-in defaults)")
	fs.StringVar(&o.inputPath, "input", "-", "Events JSONL file, or - for stdin")
	fs.StringVar(&o.geometryPath, "geometry", "", "Detector geometry JSON file")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database for runs, clusters and geometry (optional)")
	fs.StringVar(&o.listen, "listen", "", "HTTP monitor listen address, e.g. :8080 (optional)")
	fs.StringVar(&o.grpcListen, "grpc-listen", "", "gRPC health listen address (optional)")
	fs.BoolVar(&o.serve, "serve", false, "Keep serving HTTP/gRPC after the input is exhausted")
	fs.StringVar(&o.logOps, "log-ops", "stderr", "Ops log destination: stderr, stdout, a file path, or empty to disable")
	fs.StringVar(&o.logDiag, "log-diag", "", "Diag log destination (per-event summaries)")
	fs.StringVar(&o.logTrace, "log-trace", "", "Trace log destination (per-unit telemetry)")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.version {
		return o, nil
	}
	if o.geometryPath == "" && o.dbPath == "" {
		return nil, errors.New("one of -geometry or -db is required")
	}
	if o.serve && o.listen == "" && o.grpcListen == "" {
		return nil, errors.New("-serve requires -listen or -grpc-listen")
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	if o.version {
		fmt.Printf("pixelreco %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	logs, err := openLogs(o)
	if err != nil {
		log.Fatalf("failed to open logs: %v", err)
	}
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil {
		log.Fatalf("pixelreco: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// logFiles holds the writers opened for the three log streams.
type logFiles []io.Closer

func (l logFiles) Close() {
	for _, c := range l {
		_ = c.Close()
	}
}

// openLogs routes the ops, diag and trace streams of the pixel and
// pipeline packages to the destinations named by the flags.
func openLogs(o *options) (logFiles, error) {
	var files logFiles
	open := func(dest string) (io.Writer, error) {
		switch dest {
		case "":
			return nil, nil
		case "stderr":
			return os.Stderr, nil
		case "stdout":
			return os.Stdout, nil
		}
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		return f, nil
	}

	var w pixel.LogWriters
	var err error
	if w.Ops, err = open(o.logOps); err != nil {
		files.Close()
		return nil, err
	}
	if w.Diag, err = open(o.logDiag); err != nil {
		files.Close()
		return nil, err
	}
	if w.Trace, err = open(o.logTrace); err != nil {
		files.Close()
		return nil, err
	}
	pixel.SetLogWriters(w)
	pipeline.SetLogWriters(w.Ops, w.Diag, w.Trace)
	return files, nil
}

func loadConfig(path string) (*config.ClusterConfig, error) {
	if path == "" {
		return config.DefaultClusterConfig(), nil
	}
	return config.LoadClusterConfig(path)
}

// run wires the producer to its input, stores and servers and processes
// the input once.
func run(ctx context.Context, o *options) error {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}

	prod := producer.New(producer.Options{
		Mode: cfg.GetClusterMode(),
		Params: clusterizer.Params{
			ChannelThreshold: cfg.GetChannelThreshold(),
			SeedThreshold:    cfg.GetSeedThreshold(),
			ClusterThreshold: cfg.GetClusterThreshold(),
		},
		Conditions: calib.NewPlaceholder(cfg.GetNoiseChannels(), float32(cfg.GetNoiseValue())),
		Workers:    cfg.GetWorkers(),
	})

	var geoms *geometry.MapResolver
	if o.geometryPath != "" {
		f, err := os.Open(o.geometryPath)
		if err != nil {
			return fmt.Errorf("open geometry: %w", err)
		}
		geoms, err = geometry.LoadJSON(f)
		_ = f.Close()
		if err != nil {
			return err
		}
		log.Printf("loaded geometry for %d detector units from %s", geoms.Len(), o.geometryPath)
	}

	var (
		resolver geometry.Resolver
		db       *sqlite.DB
		runs     *sqlite.RunManager
		geoStore *sqlite.GeometryStore
		sinks    []pipeline.Sink
	)
	if geoms != nil {
		resolver = geoms
	}
	if o.dbPath != "" {
		db, err = sqlite.Open(o.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		geoStore = sqlite.NewGeometryStore(db, cfg.GetGeometryCacheTTL())
		if geoms != nil {
			if err := geoStore.Import(ctx, geoms); err != nil {
				return err
			}
		}
		resolver = geoStore
		runs = sqlite.NewRunManager(db, nil)
		sinks = append(sinks, sqlite.NewClusterStore(db, runs))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := pipeline.NewMetrics(reg)
	if err != nil {
		return err
	}

	srvCtx, stopServers := context.WithCancel(ctx)
	defer stopServers()
	var wg sync.WaitGroup

	if o.listen != "" {
		ws, err := monitor.NewWebServer(monitor.WebServerConfig{
			Address:  o.listen,
			Producer: prod,
			Gatherer: reg,
			DB:       db,
			Runs:     runs,
			Geometry: geoStore,
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, ws)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(srvCtx); err != nil {
				log.Printf("HTTP server error: %v", err)
			}
		}()
	}
	if o.grpcListen != "" {
		hs := health.NewServer(prod)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hs.ListenAndServe(srvCtx, o.grpcListen); err != nil {
				log.Printf("gRPC health server error: %v", err)
			}
		}()
	}

	src, err := ingest.Open(o.inputPath)
	if err != nil {
		stopServers()
		wg.Wait()
		return err
	}
	defer src.Close()

	cfgJSON, err := cfg.JSON()
	if err != nil {
		return err
	}
	pl, err := pipeline.New(pipeline.Config{
		Producer: prod,
		Source:   src,
		Resolver: resolver,
		Sinks:    sinks,
		Runs:     runs,
		RunParams: sqlite.RunParams{
			SourcePath:   o.inputPath,
			ClusterMode:  cfg.GetClusterMode(),
			DigiProducer: cfg.GetDigiProducer(),
			ConfigJSON:   cfgJSON,
		},
		Metrics:     metrics,
		StopOnFatal: cfg.GetStopOnFatal(),
	})
	if err != nil {
		stopServers()
		wg.Wait()
		return err
	}

	sum, runErr := pl.Run(ctx)
	log.Printf("processed %d events (%d failed, %d not ready): %d clusters in %d detector units",
		sum.Events, sum.FailedEvents, sum.NotReady, sum.Clusters, sum.DetUnits)

	if o.serve && runErr == nil {
		log.Printf("input exhausted, serving until interrupted")
		<-ctx.Done()
	}
	stopServers()
	wg.Wait()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
