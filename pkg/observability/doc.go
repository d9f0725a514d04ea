/*
Package observability turns engine lifecycle events into logs and Prometheus metrics.

Both are exposed as domain.LifecycleHooks so they can be combined with Chain
and passed to the engine like any user supplied hook.
*/
package observability
