package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/loykin/observr"
)

// This example loads a TOML config file and starts the defined observers using the public observr facade.
func main() {
	// Use the sample config in the repo (adjust path if running from a different cwd)
	cfgPath := "observr.toml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := observr.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}

	mgr := observr.New(cfg.ChangelogFile(), cfg.PositionFile())
	// Attach history sinks when the config declares any
	if sinks, err := cfg.BuildSinks(); err == nil && len(sinks) > 0 {
		mgr.SetSinks(sinks...)
	}

	// Create observers from config
	names := make([]string, 0, len(cfg.Observers))
	for _, oc := range cfg.Observers {
		o, err := mgr.Create(oc.Path, oc.Name)
		if err != nil {
			panic(err)
		}
		names = append(names, o.Name())
	}

	// Watch everything for a few seconds
	if err := mgr.StartAll(context.Background(), names, observr.MethodThread, 3*time.Second); err != nil {
		panic(err)
	}

	// Print statuses and recorded changes
	b, _ := json.MarshalIndent(mgr.StatusAll(), "", "  ")
	fmt.Println(string(b))
	b, _ = json.MarshalIndent(mgr.Changes(), "", "  ")
	fmt.Println(string(b))
}
