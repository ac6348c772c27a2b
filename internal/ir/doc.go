// Package ir provides the canonical intermediate representation for bspgen.
//
// Every format adapter produces an *Ir and every renderer consumes one. This
// package imports nothing internal so that adapters, resolvers, heuristics and
// renderers can all depend on it without cycles.
//
// Key design constraints:
//   - Ordered maps (OrderedMap) preserve discovery order through YAML and JSON
//   - Pinctrl keeps duplicates in discovery order; nothing de-duplicates pins
//   - All YAML/JSON tags use snake_case
//   - Heuristics operate on Clone() and never mutate a caller's IR
package ir
