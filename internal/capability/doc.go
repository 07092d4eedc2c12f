// Package capability classifies the executing device into a capability tier
// and derives the encoding ceilings and defaults for that tier.
//
// Profile is pure: callers pass an Environment snapshot, so classification is
// deterministic and testable. DetectHost builds that snapshot for the local
// process.
package capability
