package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nhle/managemyhealth/internal/credential"
	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/onboarding"
	"github.com/nhle/managemyhealth/internal/store"
	appsync "github.com/nhle/managemyhealth/internal/sync"
)

var version = "dev"

const usage = `Usage: mmh [-config path] <command> [flags]

Commands:
  setup    add a ManageMyHealth account (or -entry <email> to reconfigure)
  remove   remove a configured account by email
  status   run one refresh cycle and print entity states
  watch    open the terminal dashboard
  serve    poll in the background and serve the state API
`

// deps are the services shared by every command.
type deps struct {
	cfgPath string
	cfg     *model.AppConfig
	store   *store.SQLiteStore
	vault   *credential.Vault
	poller  *appsync.Poller
	flow    *onboarding.Flow
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	fs := flag.NewFlagSet("mmh", flag.ExitOnError)
	cfgPath := fs.String("config", model.DefaultConfigPath(), "path to config.yaml")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := openDeps(*cfgPath)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer d.close()

	cmd, args := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "setup":
		err = runSetup(ctx, d, args)
	case "remove":
		err = runRemove(ctx, d, args)
	case "status":
		err = runStatus(ctx, d, os.Stdout)
	case "watch":
		err = runWatch(ctx, d)
	case "serve":
		err = runServe(ctx, d)
	case "version":
		fmt.Println(version)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		d.close()
		log.Fatalf("%s: %v", cmd, err)
	}
}

func openDeps(cfgPath string) (*deps, error) {
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	v, err := credential.Open()
	if err != nil {
		s.Close()
		return nil, err
	}

	return &deps{
		cfgPath: cfgPath,
		cfg:     cfg,
		store:   s,
		vault:   v,
		poller:  appsync.New(s, cfg.Poll.Interval()),
		flow:    onboarding.NewFlow(s, v, onboarding.PortalClientFactory(cfg.Portal)),
	}, nil
}

func (d *deps) close() {
	d.poller.Stop()
	if err := d.store.Close(); err != nil {
		log.Printf("closing store: %v", err)
	}
}
