// Package profiling mounts the pprof endpoints and a runtime stats route.
// Both expose process internals and are off unless profiling.enabled is set.
package profiling

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/dimgraph/dimgraph/internal/web/response"
	"github.com/dimgraph/dimgraph/internal/web/router"
)

// Path is where the pprof index is served. net/http/pprof resolves named
// profiles relative to it.
const Path = "/debug/pprof"

// Config enables profiling
type Config struct {
	Enabled bool `mapstructure:"enabled"`
	// BlockRate is passed to runtime.SetBlockProfileRate when positive
	BlockRate int `mapstructure:"block_rate"`
	// MutexFraction is passed to runtime.SetMutexProfileFraction when positive
	MutexFraction int `mapstructure:"mutex_fraction"`
}

// StatsFunc adds application counters to the stats route
type StatsFunc func() map[string]any

// Register mounts the profiling routes on r when cfg is enabled
func Register(r *router.Router, cfg Config, stats StatsFunc) {
	if !cfg.Enabled {
		return
	}
	if cfg.BlockRate > 0 {
		runtime.SetBlockProfileRate(cfg.BlockRate)
	}
	if cfg.MutexFraction > 0 {
		runtime.SetMutexProfileFraction(cfg.MutexFraction)
	}

	r.Get(Path+"/", pprof.Index).Named("pprof.index")
	r.Get(Path+"/cmdline", pprof.Cmdline).Named("pprof.cmdline")
	r.Get(Path+"/profile", pprof.Profile).Named("pprof.profile")
	r.Post(Path+"/symbol", pprof.Symbol).Named("pprof.symbol")
	r.Get(Path+"/symbol", pprof.Symbol)
	r.Get(Path+"/trace", pprof.Trace).Named("pprof.trace")
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		r.Handle(http.MethodGet, Path+"/"+name, pprof.Handler(name)).Named("pprof." + name)
	}

	r.Get("/debug/stats", func(w http.ResponseWriter, req *http.Request) {
		body := RuntimeStats()
		if stats != nil {
			body["app"] = stats()
		}
		response.OK(w, body)
	}).Named("debug.stats")
}

// RuntimeStats returns goroutine, memory and CPU counters
func RuntimeStats() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]any{
			"alloc":       m.Alloc,
			"total_alloc": m.TotalAlloc,
			"sys":         m.Sys,
			"num_gc":      m.NumGC,
		},
		"cpu": map[string]any{
			"num_cpu":      runtime.NumCPU(),
			"num_cgo_call": runtime.NumCgoCall(),
		},
	}
}
