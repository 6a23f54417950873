// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository wraps one table and exposes the queries the workflow engine
// and services need. Structured fields (setlists, matches, selections, handle
// maps, role lists) are stored as JSON text columns so a workflow survives a
// restart intact.
//
// Key Implementations:
//   - [TenantConfigRepository] : per-tenant roles, credentials and extraction patterns
//   - [SongRepository] : song history with first/last usage tracking
//   - [SetlistRepository] : audit records of processed setlists
//   - [WorkflowRepository] : durable workflow state for restore and retry
package repositories
