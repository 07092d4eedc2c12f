// Package preflight provides readiness checks for the binaries and
// filesystem paths alphareel depends on.
//
// The CLI "alphareel doctor" command runs RunAll and CheckSystemDeps and
// prints the results. The encode command runs RunAll before loading the
// codec runtime so a bad scratch directory fails fast. Checks for optional
// features are skipped when the feature is disabled.
package preflight
