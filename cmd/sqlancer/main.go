package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"sqlancer/internal/config"
	"sqlancer/internal/dialect"
	"sqlancer/internal/runner"
	"sqlancer/internal/uploader"
	"sqlancer/internal/util"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	os.Exit(run(*configPath))
}

// run returns the process exit code so deferred cleanup happens before
// main exits.
func run(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	util.SetVerbose(cfg.Logging.Verbose)
	if cfg.Logging.LogFile != "" {
		closer, err := util.TeeLogFile(cfg.Logging.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			return 1
		}
		defer util.CloseWithErr(closer, "log file")
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	d, err := dialect.ByName(cfg.Dialect)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	util.Infof("starting sqlancer dialect=%s workers=%d seed=%d", d.Name, cfg.Workers, cfg.Seed)
	if data, err := yaml.Marshal(&cfg); err == nil {
		util.Highlightf("config:\n%s", string(data))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	up, err := uploader.New(ctx, cfg.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init uploader: %v\n", err)
		return 1
	}

	var wg sync.WaitGroup
	errCh := make(chan error, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			if err := runWorker(ctx, cfg, worker, up); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	code := 0
	for err := range errCh {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		code = 1
	}
	return code
}

// runWorker gives each worker its own dialect instance and session, so no
// mutable state is shared between goroutines.
func runWorker(ctx context.Context, cfg config.Config, worker int, up uploader.Uploader) error {
	d, err := dialect.ByName(cfg.Dialect)
	if err != nil {
		return err
	}
	exec, err := runner.OpenSession(cfg, worker, d)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(exec, "worker session")
	return runner.New(cfg, worker, d, exec, up).Run(ctx)
}
