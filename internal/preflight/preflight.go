package preflight

import (
	"context"
	"fmt"

	"ytarchive/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every readiness check for cfg. st may be nil when the store could
// not be opened; the store check then fails.
func RunAll(ctx context.Context, cfg *config.Config, st Pinger) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results,
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckSource(cfg),
		CheckStore(ctx, st),
	)

	for _, status := range CheckSystemDeps(ctx, cfg) {
		res := Result{Name: status.Name, Passed: status.Available || status.Optional}
		switch {
		case status.Available && status.Version != "":
			res.Detail = fmt.Sprintf("%s (%s)", status.Path, status.Version)
		case status.Available:
			res.Detail = status.Path
		default:
			res.Detail = status.Detail
		}
		results = append(results, res)
	}

	for _, up := range cfg.Credentials.Uploaders {
		results = append(results,
			CheckReadableFile("Client secret "+up.Name, up.ClientSecretFile),
			CheckToken("Token "+up.Name, up.Name, up.TokenFile),
		)
	}
	if len(cfg.Credentials.Uploaders) == 0 {
		results = append(results, Result{Name: "Upload credentials", Detail: "none configured; uploads disabled"})
	}

	results = append(results, CheckEndpoint(ctx, "Data API", cfg.Source.APIBaseURL))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
