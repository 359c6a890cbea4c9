// Command colldbd serves JSON record collections with secondary indexes over
// a Bolt-backed ordered key-value store.
//
// Collections are declared in a JSON config file:
//
//	{
//	  "collections": [
//	    {"name": "tasks", "indexes": {"by-project": ["project", "date"]}},
//	    {"name": "audit", "internal": true}
//	  ]
//	}
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/handlers"

	"github.com/andreyvit/colldb"
)

type configFile struct {
	Collections []collectionConfig `json:"collections"`
}

type collectionConfig struct {
	Name     string              `json:"name"`
	Internal bool                `json:"internal"`
	Indexes  map[string][]string `json:"indexes"`
}

func main() {
	var (
		addr       = flag.String("addr", ":8080", "listen address")
		dbPath     = flag.String("db", "colldb.db", "Bolt database file")
		configPath = flag.String("config", "colldb.json", "collection config file")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	defs, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	store, err := colldb.OpenBolt(*dbPath, colldb.BoltOptions{})
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	opt := colldb.RegistryOptions{}
	if *verbose {
		opt.Logger = logger
	}
	reg, err := colldb.NewRegistry(store, defs, opt)
	if err != nil {
		logger.Error("registry", "err", err)
		os.Exit(1)
	}

	h := handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stderr, reg.Handler()))

	logger.Info("listening", "addr", *addr, "db", *dbPath, "collections", len(defs))
	if err := http.ListenAndServe(*addr, h); err != nil {
		logger.Error("server", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) ([]colldb.CollectionDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg configFile
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(cfg.Collections) == 0 {
		return nil, fmt.Errorf("%s: no collections declared", path)
	}

	defs := make([]colldb.CollectionDef, 0, len(cfg.Collections))
	for _, cc := range cfg.Collections {
		def := colldb.CollectionDef{
			Name:     cc.Name,
			Internal: cc.Internal,
			Indexes:  make(map[string]colldb.KeyBuilder, len(cc.Indexes)),
		}
		for name, fields := range cc.Indexes {
			if len(fields) == 0 {
				return nil, fmt.Errorf("%s: collection %q: index %q has no fields", path, cc.Name, name)
			}
			def.Indexes[name] = colldb.FieldKey(fields...)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
