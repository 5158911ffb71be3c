// Package creative defines the domain model for advertising creative
// analysis: analysis records, validation checks, side metadata and the
// collaborator interfaces (object store, metadata store) the analysis
// pipeline consumes.
//
// # Update semantics
//
// The two entities kept in the metadata store are written differently and
// the difference is part of the MetadataStore contract rather than a call
// site decision:
//
//   - SideMetadata is merged. Writers may set individual flags without
//     knowing about the others.
//   - AnalysisRecord is replaced. A reprocessing run overwrites the whole
//     record so no check from a previous attempt can survive.
//
// # Identifiers
//
// ContentID is the stable key of an uploaded asset. DisplayName is the
// human-readable file name. Both are split once, at ingestion (see
// ParseObjectName), and carried separately afterwards.
package creative
