// Package ingestion builds searchable snapshots from source records.
//
// A Builder runs one build at a time:
//   - records are normalized, fingerprinted and deduplicated (first occurrence wins)
//   - document summaries are embedded in batches on a worker pool, with retries
//   - a fresh table and collection are staged concurrently and checked for
//     one-to-one id correspondence
//   - the staged pair is published through snapshot.Manager
//
// A failed build drops whatever it staged and leaves the published snapshot
// untouched. Malformed and duplicate records are skipped and counted in the
// returned core.BuildReport.
//
// Reembed re-embeds the active snapshot's documents into a new generation
// without rereading the source, for use after an embedding model change.
// Every finished run is recorded through the RunLog when one is configured.
package ingestion
