// Package artifact archives the reports of finished pipeline runs.
//
// Store is keyed by run ID and report name. InMemoryStore suits tests and
// single process use; DirStore writes one directory per run so reports can be
// read after the process exits. SaveReports writes each analyst report, the
// plans and the final decision as Markdown plus the complete state as JSON.
package artifact
