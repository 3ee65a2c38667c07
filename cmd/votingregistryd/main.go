package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/constitutional-platform/voting-registry/config"
	"github.com/constitutional-platform/voting-registry/registry"
	"github.com/constitutional-platform/voting-registry/service"
	"github.com/constitutional-platform/voting-registry/storage"
	"github.com/constitutional-platform/voting-registry/verifier"
	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not up yet
		println("invalid configuration:", err.Error())
		os.Exit(1)
	}

	// flags override the environment
	host := flag.String("host", cfg.Host, "API listen host")
	port := flag.Int("port", cfg.Port, "API listen port")
	dataDir := flag.String("dataDir", cfg.DataDir, "data directory")
	logLevel := flag.String("logLevel", cfg.LogLevel, "log level (debug, info, warn, error)")
	adminAddress := flag.String("adminAddress", cfg.AdminAddress, "address holding the admin role")
	flag.Parse()

	log.Init(*logLevel, cfg.LogOutput, nil)

	if *adminAddress == "" {
		log.Fatal("an admin address is required (--adminAddress or VOTEREGISTRY_ADMIN_ADDRESS)")
	}

	database, err := metadb.New(cfg.DBType, filepath.Join(*dataDir, "db"))
	if err != nil {
		log.Fatalf("could not open database: %v", err)
	}

	stg := storage.New(database)
	access := registry.NewAccessControl(common.HexToAddress(*adminAddress), stg)

	// Reload the published eligibility root, so open sessions keep
	// accepting commitments across restarts.
	root, err := stg.EligibilityRoot()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Fatalf("could not load eligibility root: %v", err)
	}
	elig := verifier.NewEligibility(root)
	reg := registry.New(stg, access, elig, registry.Options{Quorum: cfg.Quorum})

	ctx := context.Background()

	apiSrv := service.NewAPI(reg, stg, *host, *port)
	if err := apiSrv.Start(ctx); err != nil {
		log.Fatal(err)
	}

	monitor := service.NewSessionMonitor(stg, cfg.MonitorInterval)
	if err := monitor.Start(ctx); err != nil {
		log.Fatal(err)
	}

	dispatcher := service.NewEventDispatcher(stg, cfg.EventInterval, service.LogSink{})
	if err := dispatcher.Start(ctx); err != nil {
		log.Fatal(err)
	}

	log.Infow("voting registry daemon running",
		"host", *host, "port", *port,
		"dataDir", *dataDir, "admin", common.HexToAddress(*adminAddress).Hex())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	dispatcher.Stop()
	monitor.Stop()
	apiSrv.Stop()
}
