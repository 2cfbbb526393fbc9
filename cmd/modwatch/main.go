package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modwatch/internal/app"
)

func main() {
	var (
		cfgPath    string
		importPath string
		exportMode string
		syncPath   string
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.StringVar(&importPath, "import", "", "parse a saved dashboard export and fold it into the ledger, then exit")
	flag.StringVar(&exportMode, "export", "", "write a ledger and exit: all, bans, or both")
	flag.StringVar(&syncPath, "sync-blocklist", "", "block every name on the given list that is not blocked yet, then exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	// One-shot modes run without the live services.
	if importPath != "" || exportMode != "" || syncPath != "" {
		if err := runOneShot(ctx, a, importPath, exportMode, syncPath); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		return
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	<-a.Done()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx)
	if err := a.Err(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func runOneShot(ctx context.Context, a *app.App, importPath, exportMode, syncPath string) error {
	if importPath != "" {
		n, err := a.ImportActionsFile(ctx, importPath)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d actions\n", n)
	}

	switch exportMode {
	case "":
	case "all", "bans", "both":
		if exportMode != "bans" {
			path, n, err := a.ExportAll(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d new rows)\n", path, n)
		}
		if exportMode != "all" {
			path, n, err := a.ExportBans(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d new rows)\n", path, n)
		}
	default:
		return fmt.Errorf("unknown -export mode %q (want all, bans, or both)", exportMode)
	}

	if syncPath != "" {
		n, err := a.SyncBlocklist(ctx, syncPath)
		if err != nil {
			return err
		}
		fmt.Printf("blocked %d users\n", n)
	}
	return nil
}
