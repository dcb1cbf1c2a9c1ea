package cmd

import (
	"fmt"

	"github.com/nextlevelbuilder/anyedit/internal/config"
	"github.com/nextlevelbuilder/anyedit/internal/store"
	"github.com/nextlevelbuilder/anyedit/internal/store/file"
	"github.com/nextlevelbuilder/anyedit/internal/store/pg"
	"github.com/nextlevelbuilder/anyedit/internal/store/sqlite"
)

func storeConfig(cfg *config.Config) store.StoreConfig {
	return store.StoreConfig{
		Backend:     cfg.Errors.Store,
		Path:        config.ExpandHome(cfg.Errors.Path),
		PostgresDSN: cfg.Database.PostgresDSN,
	}
}

// openErrorStore opens the configured error store. It returns nil, nil when
// persistence is turned off.
func openErrorStore(sc store.StoreConfig) (store.ErrorStore, error) {
	switch sc.Backend {
	case "", "file":
		path := sc.Path
		if path == "" {
			path = file.DefaultPath
		}
		return file.NewFileErrorStore(path)
	case "sqlite":
		path := sc.Path
		if path == "" {
			path = sqlite.DefaultPath
		}
		return sqlite.OpenErrorStore(path)
	case "postgres":
		return pg.NewPGErrorStore(sc.PostgresDSN)
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown error store %q", sc.Backend)
}
