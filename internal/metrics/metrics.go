// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars HTTP endpoint when the serve
// command is running.
package metrics

import "expvar"

// Operation counters.
var (
	ResolveTotal     = expvar.NewInt("almoner_resolve_total")
	ResolveStableID  = expvar.NewInt("almoner_resolve_stable_id_total")
	ResolveNameExact = expvar.NewInt("almoner_resolve_name_exact_total")
	ResolveExternal  = expvar.NewInt("almoner_resolve_external_total")
	ResolveCreated   = expvar.NewInt("almoner_resolve_created_total")
	NodeWrites       = expvar.NewInt("almoner_node_writes_total")
	EdgeWrites       = expvar.NewInt("almoner_edge_writes_total")
	SchemaViolations = expvar.NewInt("almoner_schema_violations_total")
	ResolverSkipped  = expvar.NewInt("almoner_resolver_skipped_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
