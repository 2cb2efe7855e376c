// Package rules loads compatibility rule sets from YAML files and keeps a
// running engine's rules current via filesystem watching. Stored per-category
// rules live in pkg/storage; this package covers the deployment-wide base
// rules an operator edits on disk.
package rules
