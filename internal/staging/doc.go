// Package staging reclaims scratch workspaces left behind by encoders that
// exited without disposing them.
package staging
