// Package plugin installs the JSON import feature on the registered
// collections.
//
// Install is called once at startup, after the collection schema has been
// registered and before the HTTP routes are built. The import routes accept
// any registered collection; the collection list only selects the ones
// advertised with an import action.
package plugin

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/JonMunkholm/jsonimport/internal/core"
)

// Options mirror the host plugin options.
type Options struct {
	// Collections lists the slugs advertised with an import action.
	// Nil or empty lists none.
	Collections map[string]bool

	// Disabled keeps the collections registered but mounts no import routes.
	Disabled bool
}

// Result reports what Install did.
type Result struct {
	// Importable is the sorted list of listed slugs.
	Importable []string

	// Unknown lists requested slugs that are not registered. They are
	// ignored.
	Unknown []string

	// MountRoutes is false when the plugin is disabled.
	MountRoutes bool
}

// Install marks the requested collections importable in reg.
func Install(reg *core.Registry, opts Options) (Result, error) {
	if reg == nil {
		return Result{}, fmt.Errorf("plugin install: nil registry")
	}

	slugs := make([]string, 0, len(opts.Collections))
	for slug, enabled := range opts.Collections {
		if enabled {
			slugs = append(slugs, slug)
		}
	}
	sort.Strings(slugs)

	var res Result
	for _, slug := range slugs {
		if _, ok := reg.Get(slug); !ok {
			res.Unknown = append(res.Unknown, slug)
			slog.Warn("plugin: collection not registered, skipping", "collection", slug)
			continue
		}
		if err := reg.SetImportable(slug, true); err != nil {
			return Result{}, fmt.Errorf("plugin install: %w", err)
		}
	}
	if len(slugs) == 0 {
		slog.Warn("plugin: no collections listed; set PLUGIN_COLLECTIONS to advertise imports")
	}

	res.Importable = reg.ImportableSlugs()
	res.MountRoutes = !opts.Disabled

	slog.Info("plugin installed",
		"importable", res.Importable,
		"disabled", opts.Disabled,
	)
	return res, nil
}
