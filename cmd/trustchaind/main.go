// Command trustchaind serves the trust economy over HTTP.
//
// Configuration comes from TRUSTCHAIN_* environment variables. The token
// ledger is in-memory; set TRUSTCHAIN_DEV_MINT to fund new stakeholders.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xdao.co/trustchain/api/httpapi"
	"xdao.co/trustchain/config"
	"xdao.co/trustchain/domain"
	jsqlite "xdao.co/trustchain/journal/sqlite"
	"xdao.co/trustchain/ledger"
	"xdao.co/trustchain/storage"
	"xdao.co/trustchain/storage/grpccas"
	"xdao.co/trustchain/storage/localfs"
	"xdao.co/trustchain/storage/memcas"
	"xdao.co/trustchain/telemetry"
	"xdao.co/trustchain/trustchain"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("trustchaind: %v", err)
	}
	logger := log.New(os.Stderr, "trustchaind: ", log.LstdFlags)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, "trustchaind", cfg.OTELEndpoint, cfg.OTELEnabled)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Printf("telemetry shutdown: %v", err)
		}
	}()

	audit, err := jsqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer audit.Close()

	cas, closeCAS, err := openCAS(cfg)
	if err != nil {
		return err
	}
	defer closeCAS()

	token := ledger.NewToken()
	custody := cfg.Custody()
	opts := trustchain.Options{
		Domain:      cfg.Domain(),
		Admin:       cfg.Admin(),
		Ledger:      token.Custody(custody),
		PenaltySink: cfg.Sink(),
		Attestors:   cfg.Attestors,
		CAS:         cas,
		Journal:     audit,
		Logger:      logger,
	}
	if cfg.DevMint > 0 {
		grant := domain.Amount(cfg.DevMint)
		opts.OnRegister = func(_ context.Context, sh domain.Stakeholder) error {
			token.Approve(sh.Address, custody, grant)
			return token.Mint(sh.Address, grant)
		}
		logger.Printf("dev mint enabled: %s per stakeholder", grant)
	}
	sys, err := trustchain.New(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(sys, httpapi.Options{Secret: []byte(cfg.JWTSecret), Logger: logger}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openCAS picks the evidence archive. A local directory and a remote daemon
// together form a replicating store.
func openCAS(cfg config.Config) (storage.CAS, func(), error) {
	var replicas storage.Replicating
	closeFn := func() {}
	if cfg.CASDir != "" {
		cas, err := localfs.New(cfg.CASDir)
		if err != nil {
			return nil, nil, err
		}
		replicas = append(replicas, storage.Replica{Name: "localfs", CAS: cas})
	}
	if cfg.CASGRPCTarget != "" {
		client, err := grpccas.Dial(cfg.CASGRPCTarget, grpccas.DialOptions{Timeout: 10 * time.Second})
		if err != nil {
			return nil, nil, err
		}
		replicas = append(replicas, storage.Replica{Name: "grpc", CAS: client})
		closeFn = func() { _ = client.Close() }
	}
	switch len(replicas) {
	case 0:
		return memcas.New(), closeFn, nil
	case 1:
		return replicas[0].CAS, closeFn, nil
	default:
		return replicas, closeFn, nil
	}
}
