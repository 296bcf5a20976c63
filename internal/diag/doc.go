// Package diag defines the diagnostic model shared by the manifest loader,
// the hierarchy checker and the driver.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – Info, Warning or Error.
//   - Code – numeric identifier with a stable ID such as HIE3002 (see codes.go).
//     Ranges: 1000s manifest, 3000s hierarchy, 4000s IO, 5000s project config.
//   - Message – short, actionable text.
//   - Primary – the source.Span the finding points at.
//   - Notes – secondary spans, e.g. where a finalized member was declared.
//   - Fixes – optional text edits, e.g. inserting a missing `overrides` marker.
//
// # Emitting diagnostics
//
// Producers talk to a Reporter. ReportError / ReportWarning / ReportInfo
// return a ReportBuilder that collects notes and fixes until Emit is called.
// BagReporter stores into a Bag, which supports limits, sorting, dedup and
// severity filtering. DedupReporter and MultiReporter compose reporters.
//
// Rendering lives in internal/diagfmt; FormatShortDiagnostics here is the
// one-line form shared by the CLI short output and tests.
package diag
