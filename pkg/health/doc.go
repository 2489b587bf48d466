/*
Package health probes the reachability of registered instances.

The registry never moves an instance's status on its own; status and
failed_pings_count are informational. This package is what an operator
runs to fill them in: it dials each instance's SSH port and reports
whether the daemon answered.

# Architecture

	┌──────────────────────────────────────────────┐
	│           Probe(ctx, instances, cfg)         │
	└─────────┬────────────────────────────────────┘
	          │ one goroutine per instance
	          ▼
	┌──────────────────────────────────────────────┐
	│ TCPChecker  host:ssh_port  [SSH- banner]     │
	└─────────┬────────────────────────────────────┘
	          │ Result per attempt
	          ▼
	┌──────────────────────────────────────────────┐
	│ probeOne  (stops on the first success, gives │
	│            up after Retries failures)        │
	└──────────────────────────────────────────────┘

The host is the instance's reverse DNS name when known and its public
address otherwise. A zero ssh_port means 22.

# Usage

	results := health.Probe(ctx, instances, health.ProbeConfig{
		Config:        health.DefaultConfig(),
		RequireBanner: true,
	})
	for _, r := range results {
		fmt.Println(r.Instance.ID, r.SuggestedStatus(), r.Failures)
	}
*/
package health
