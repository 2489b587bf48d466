/*
Package metrics provides Prometheus metrics and health endpoints for the
ice registry.

Metrics are package-level collectors registered with the default Prometheus
registry in init and exposed through Handler on /metrics.

# Registry Metrics

	ice_sessions_total                     gauge    stored sessions
	ice_instances_total{status}            gauge    stored instances by status
	ice_instances_registered_total         counter  accepted registrations
	ice_cascade_failures_total             counter  instances left behind by a session delete
	ice_validation_failures_total{resource} counter rejected documents

The two gauges are refreshed every 15 seconds by a Collector reading the
store; the counters are updated inline by the API handlers.

# API Metrics

	ice_api_requests_total{method,route,status}   counter
	ice_api_request_duration_seconds{route}       histogram

route is the matched route template (e.g. /instances/{id}), never the raw
path, to keep cardinality bounded.

# Health

Components report their state with RegisterComponent/UpdateComponent.
HealthHandler (/health) answers 503 when a critical component is
unhealthy and reports "degraded" with 200 when only an optional one (nats)
is.
ReadyHandler (/ready) answers 503 until every entry of CriticalComponents
(storage, api) is registered and healthy. LivenessHandler always answers
200 while the process runs.

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.APIRequestDuration, route)
*/
package metrics
