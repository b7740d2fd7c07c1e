package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/ledger/app/services/node/handlers"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage/disk"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage/leveldb"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/snapshot"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/blockchain/worker"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/logger"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
			CorsOrigin      string        `conf:"default:*"`
		}
		State struct {
			IdentityKey       string        `conf:"default:zblock/accounts/validator1.ecdsa"`
			GenesisPath       string        `conf:"default:zblock/genesis.json"`
			Storage           string        `conf:"default:leveldb"`
			DBPath            string        `conf:"default:zblock/ledger.db"`
			SnapshotPath      string        `conf:"default:zblock/snapshots"`
			SnapshotKeep      int           `conf:"default:8"`
			SelectStrategy    string        `conf:"default:price"`
			Workers           int           `conf:"default:0"`
			SlotDuration      time.Duration `conf:"default:400ms"`
			ConfirmationDepth uint64        `conf:"default:32"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	fmt.Println(`     _    ____  ____    _    _   _   _     _____ ____   ____ _____ ____  `)
	fmt.Println(`    / \  |  _ \|  _ \  / \  | \ | | | |   | ____|  _ \ / ___| ____|  _ \ `)
	fmt.Println(`   / _ \ | |_) | | | |/ _ \ |  \| | | |   |  _| | | | | |  _|  _| | |_) |`)
	fmt.Println(`  / ___ \|  _ <| |_| / ___ \| |\  | | |___| |___| |_| | |_| | |___|  _ < `)
	fmt.Println(` /_/   \_\_| \_\____/_/   \_\_| \_| |_____|_____|____/ \____|_____|_| \_\`)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Ledger Support

	// Need to load the private key file for the configured identity so the
	// node can collect fees and sign its votes.
	privateKey, err := crypto.LoadECDSA(cfg.State.IdentityKey)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}
	log.Infow("startup", "status", "identity", "pubkey", database.PublicKeyToPubkey(privateKey.PublicKey))

	gen, err := genesis.Load(cfg.State.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	// Each new root is snapshotted so a restart resumes from the latest
	// root instead of replaying from genesis.
	snaps, err := snapshot.NewDisk(cfg.State.SnapshotPath, cfg.State.SnapshotKeep)
	if err != nil {
		return fmt.Errorf("unable to open snapshot folder: %w", err)
	}

	// The rooted accounts are persisted so they survive a restart.
	storage, err := openStorage(cfg.State.Storage, cfg.State.DBPath)
	if err != nil {
		return err
	}

	// The ledger packages accept a function of this signature to allow the
	// application to log. For now, these raw messages are sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value represents the ledger node. It manages the fork set of
	// banks and the account database and provides an API for application
	// support.
	state, err := state.New(state.Config{
		Identity:       privateKey,
		Genesis:        gen,
		Storage:        storage,
		Snapshot:       snaps,
		SelectStrategy: cfg.State.SelectStrategy,
		Workers:        cfg.State.Workers,
		EvHandler:      ev,
	})
	if err != nil {
		storage.Close()
		return err
	}
	defer state.Shutdown()

	// The worker package implements the slot workflow. The worker will
	// register itself with the state.
	worker.Run(state, worker.Config{
		SlotDuration:      cfg.State.SlotDuration,
		ConfirmationDepth: cfg.State.ConfirmationDepth,
	}, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, state)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listeners. Use a
	// buffered channel so the goroutines can exit if we don't collect them.
	serverErrors := make(chan error, 2)

	muxCfg := handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    state,
		Evts:     evts,
		Origin:   cfg.Web.CorsOrigin,
	}

	// The public api serves wallets and the private api serves operators.
	servers := map[string]*http.Server{
		"public":  newServer(cfg.Web.PublicHost, handlers.PublicMux(muxCfg)),
		"private": newServer(cfg.Web.PrivateHost, handlers.PrivateMux(muxCfg)),
	}

	for name, srv := range servers {
		srv.ReadTimeout = cfg.Web.ReadTimeout
		srv.WriteTimeout = cfg.Web.WriteTimeout
		srv.IdleTimeout = cfg.Web.IdleTimeout
		srv.ErrorLog = zap.NewStdLog(log.Desugar())

		go func() {
			log.Infow("startup", "status", name+" api router started", "host", srv.Addr)
			serverErrors <- fmt.Errorf("%s: %w", name, srv.ListenAndServe())
		}()
	}

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Ask every listener to shut down and shed load at the same time.
		var g errgroup.Group
		for name, srv := range servers {
			g.Go(func() error {
				log.Infow("shutdown", "status", "shutdown "+name+" API started")
				if err := srv.Shutdown(ctx); err != nil {
					srv.Close()
					return fmt.Errorf("could not stop %s service gracefully: %w", name, err)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
	}

	return nil
}

// openStorage constructs the serializer for the rooted accounts.
func openStorage(kind string, path string) (database.Serializer, error) {
	switch kind {
	case "leveldb":
		return leveldb.New(path)

	case "disk":
		return disk.New(path)
	}

	return nil, fmt.Errorf("unknown storage %q", kind)
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,
	}
}
