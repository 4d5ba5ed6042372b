package cmd

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/gwsandbox/gwsandbox-ctl/internal/app"
	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
	"github.com/gwsandbox/gwsandbox-ctl/internal/orchestrator"
)

// currentApp returns the application, building it from the configuration
// on first use.
func currentApp() (*app.App, error) {
	if app.Default != nil {
		return app.Default, nil
	}

	path := config.ResolveConfigPath(configPath)
	cfg, unknown, err := config.Load(path)
	if err != nil {
		return nil, errors.ConfigError("failed to load configuration", err)
	}
	for _, key := range unknown {
		logging.Warn("unknown configuration key", "key", key, "file", path)
	}

	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	app.SetDefault(a)
	return a, nil
}

// resolveID accepts a full environment id, an id prefix or a name and
// returns the id of the single matching environment.
func resolveID(ctx context.Context, o *orchestrator.Orchestrator, ref string) (string, error) {
	if config.ValidateID(ref) == nil {
		return ref, nil
	}

	var matches []string
	for _, v := range o.List(ctx) {
		if v.Name == ref || (len(ref) >= 4 && strings.HasPrefix(v.ID, ref)) {
			matches = append(matches, v.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", errors.NotFound(ref)
	case 1:
		return matches[0], nil
	default:
		return "", errors.New(errors.KindGeneral, "ambiguous environment reference "+ref+": use the full id")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
