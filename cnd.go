package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/atomicswap/cnd/channeldb"
	"github.com/atomicswap/cnd/kvdb"
	flags "github.com/jessevdk/go-flags"
)

// cndMain is the true entry point for cnd. This function is required
// since defers created in the top-level scope of a main method aren't
// executed if os.Exit() is called (the same reason the teacher's lnd.go
// splits its real work out of main itself).
func cndMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rotator, err := initLogging(cfg.DataDir, cfg.DebugLevel)
	if err != nil {
		return err
	}
	defer rotator.Close()

	log.Info("Starting cnd")

	chains, err := newChainRegistry(cfg)
	if err != nil {
		log.Errorf("unable to initialize chain registry: %v", err)
		return err
	}

	backend, err := kvdb.OpenBolt(cfg.DataDir, "swap.db")
	if err != nil {
		log.Errorf("unable to open swap database backend: %v", err)
		return err
	}

	chanDB, err := channeldb.Open(backend)
	if err != nil {
		log.Errorf("unable to open swap database: %v", err)
		backend.Close()
		return err
	}

	srv, err := newServer(cfg, chanDB, chains)
	if err != nil {
		log.Errorf("unable to create server: %v", err)
		return err
	}
	if err := srv.Start(); err != nil {
		log.Errorf("unable to start server: %v", err)
		return err
	}

	log.Infof("cnd started, peer id %s, control socket %s",
		srv.host.ID(), cfg.ControlSocket)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Received shutdown signal, stopping")
	if err := srv.Stop(); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
	srv.WaitForShutdown()

	log.Info("Shutdown complete")
	return nil
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := cndMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
