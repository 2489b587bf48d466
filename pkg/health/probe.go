package health

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/glestaris/ice/pkg/types"
)

// ProbeConfig extends Config with the banner the target must greet with
type ProbeConfig struct {
	Config

	// RequireBanner makes the probe wait for an SSH identification line
	RequireBanner bool
}

// ProbeResult is the reachability of one instance's SSH port
type ProbeResult struct {
	Instance  *types.Instance
	Reachable bool
	// Failures counts the failed attempts before the outcome was decided
	Failures int
	// Last is the final attempt
	Last Result
}

// SuggestedStatus maps the probe outcome onto the informational instance
// status
func (r ProbeResult) SuggestedStatus() types.InstanceStatus {
	if r.Reachable {
		return types.InstanceStatusRunning
	}
	return types.InstanceStatusUnreachable
}

// sshAddress returns host:port of the instance's SSH daemon
func sshAddress(instance *types.Instance) string {
	port := instance.SSHPort
	if port == 0 {
		port = types.DefaultSSHPort
	}
	return net.JoinHostPort(instance.Host(), strconv.Itoa(port))
}

// Probe checks the SSH port of every instance in parallel. Each target is
// tried until it answers or config.Retries consecutive attempts fail.
// Results are returned in the order of instances.
func Probe(ctx context.Context, instances []*types.Instance, config ProbeConfig) []ProbeResult {
	if config.Retries < 1 {
		config.Retries = 1
	}

	results := make([]ProbeResult, len(instances))
	var wg sync.WaitGroup
	for i, instance := range instances {
		wg.Add(1)
		go func(i int, instance *types.Instance) {
			defer wg.Done()
			checker := NewTCPChecker(sshAddress(instance)).WithTimeout(config.Timeout)
			if config.RequireBanner {
				checker.WithBanner(SSHBannerPrefix)
			}
			results[i] = probeOne(ctx, checker, config.Config)
			results[i].Instance = instance
		}(i, instance)
	}
	wg.Wait()
	return results
}

// probeOne tries checker until it succeeds, config.Retries attempts fail or
// ctx is done
func probeOne(ctx context.Context, checker Checker, config Config) ProbeResult {
	var r ProbeResult
	for attempt := 0; attempt < config.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				r.Last = Result{Message: ctx.Err().Error()}
				return r
			case <-time.After(config.Interval):
			}
		}
		r.Last = checker.Check(ctx)
		if r.Last.Healthy {
			r.Reachable = true
			return r
		}
		r.Failures++
	}
	return r
}
