// Package route classifies views into caching tiers.
//
// A view's Descriptor carries declarative flags about how the view
// consumes its input. Classify maps those flags onto the three cache
// tiers: views whose parameter space is known ahead of time render as
// BuildStatic, views with open parameter spaces but no dependency on
// caller identity render as RuntimeStatic, and anything reading
// per-request ambient data renders as Dynamic.
//
// The classification is advisory. The executor may degrade a view to
// recomputation at any time; it must never serve one caller's cached
// ambient-dependent output to another.
package route
