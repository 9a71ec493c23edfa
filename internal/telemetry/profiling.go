package telemetry

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig contains configuration for Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether profiling is enabled
	Enabled bool

	// ServiceName is the application name shown in Pyroscope.
	// Empty uses ServiceName.
	ServiceName string

	// ServiceVersion is the application version
	ServiceVersion string

	// Endpoint is the Pyroscope server URL (e.g., "http://localhost:4040")
	Endpoint string

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string

	// Tags label every profile, so one Pyroscope app can hold several
	// deployments. serve sets the cache name and key strategy.
	Tags map[string]string
}

// Profile tag names set by serve.
const (
	TagCache       = "cache"
	TagKeyStrategy = "key_strategy"
	TagVersion     = "version"
)

// Sampling rates applied when mutex or block profiles are requested.
const (
	mutexProfileFraction = 5
	blockProfileRate     = 5
)

var (
	profilerMu sync.Mutex

	// profiler is the running Pyroscope profiler, nil when disabled
	profiler *pyroscope.Profiler
)

// InitProfiling starts Pyroscope continuous profiling.
// Returns a shutdown function that stops the profiler and restores the
// runtime mutex and block sampling rates.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	plan, err := parseProfileTypes(cfg.ProfileTypes)
	if err != nil {
		return nil, err
	}

	name := cfg.ServiceName
	if name == "" {
		name = ServiceName
	}

	prevMutex := -1
	if plan.mutex {
		prevMutex = runtime.SetMutexProfileFraction(mutexProfileFraction)
	}
	if plan.block {
		runtime.SetBlockProfileRate(blockProfileRate)
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.Endpoint,
		Tags:            profileTags(cfg.ServiceVersion, cfg.Tags),
		ProfileTypes:    plan.types,
	})
	if err != nil {
		restoreRuntimeRates(plan, prevMutex)
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}

	profilerMu.Lock()
	profiler = p
	profilerMu.Unlock()

	shutdown = func() error {
		profilerMu.Lock()
		defer profilerMu.Unlock()
		if profiler == nil {
			return nil
		}
		err := profiler.Stop()
		profiler = nil
		restoreRuntimeRates(plan, prevMutex)
		return err
	}

	return shutdown, nil
}

// IsProfilingEnabled returns whether a profiler is running
func IsProfilingEnabled() bool {
	profilerMu.Lock()
	defer profilerMu.Unlock()
	return profiler != nil
}

// profilePlan is the parsed form of ProfilingConfig.ProfileTypes.
type profilePlan struct {
	types []pyroscope.ProfileType
	mutex bool
	block bool
}

// parseProfileTypes validates names and drops duplicates.
func parseProfileTypes(names []string) (profilePlan, error) {
	var plan profilePlan
	seen := make(map[pyroscope.ProfileType]bool, len(names))

	for _, name := range names {
		pt, err := parseProfileType(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			return profilePlan{}, fmt.Errorf("invalid profile type %q: %w", name, err)
		}
		if seen[pt] {
			continue
		}
		seen[pt] = true
		plan.types = append(plan.types, pt)

		switch pt {
		case pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration:
			plan.mutex = true
		case pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration:
			plan.block = true
		}
	}

	return plan, nil
}

// profileTags merges the version tag with extra. Empty values are dropped
// because Pyroscope rejects them.
func profileTags(version string, extra map[string]string) map[string]string {
	tags := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		if v != "" {
			tags[k] = v
		}
	}
	if version != "" {
		tags[TagVersion] = version
	}
	return tags
}

func restoreRuntimeRates(plan profilePlan, prevMutex int) {
	if plan.mutex && prevMutex >= 0 {
		runtime.SetMutexProfileFraction(prevMutex)
	}
	if plan.block {
		runtime.SetBlockProfileRate(0)
	}
}

// parseProfileType converts a string profile type to Pyroscope ProfileType.
func parseProfileType(pt string) (pyroscope.ProfileType, error) {
	switch pt {
	case "cpu":
		return pyroscope.ProfileCPU, nil
	case "alloc_objects":
		return pyroscope.ProfileAllocObjects, nil
	case "alloc_space":
		return pyroscope.ProfileAllocSpace, nil
	case "inuse_objects":
		return pyroscope.ProfileInuseObjects, nil
	case "inuse_space":
		return pyroscope.ProfileInuseSpace, nil
	case "goroutines":
		return pyroscope.ProfileGoroutines, nil
	case "mutex_count":
		return pyroscope.ProfileMutexCount, nil
	case "mutex_duration":
		return pyroscope.ProfileMutexDuration, nil
	case "block_count":
		return pyroscope.ProfileBlockCount, nil
	case "block_duration":
		return pyroscope.ProfileBlockDuration, nil
	default:
		return pyroscope.ProfileCPU, fmt.Errorf("unknown profile type: %s", pt)
	}
}
