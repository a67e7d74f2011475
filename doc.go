// Package tracemark keeps a traceability graph between source comments,
// unit tests and user stories, linked by markers embedded in comments.
//
// # Markers
//
// A marker is a caret followed by dash-separated name/number pairs. Its
// segment count gives its role:
//
//	^JIRA1234-001                          story
//	^JIRA1234-001-solution-002             solution
//	^JIRA1234-001-solution-002-test-003    test
//
// # Pipeline
//
//  1. Scan: the [Scanner] mirrors every application and unit test source
//     file into a derived comment document holding its documentation
//     comments. It works one phase per [Scanner.Step] so a [Scheduler] can
//     drive it from a ticker without blocking on large trees. Documents are
//     only rewritten when their source is newer; orphans are pruned at the
//     end of every cycle.
//
//  2. Cross-reference: [Engine.BuildSolutions] reads the derived documents
//     and the story documents, groups markers into solution documents and
//     writes one document per solution with transclusion links to the
//     story, the implementing comments and their unit tests.
//
//  3. Index: [Engine.BuildMarkerTable] writes a flat marker to document
//     table.
//
// # Usage
//
//	cfg, err := config.Load(".", "")
//	if err != nil { ... }
//	e, err := tracemark.New(cfg, vault.NewDisk(cfg.VaultPath), vault.NewDisk(""))
//	if err != nil { ... }
//
//	ctx := context.Background()
//	_, err = e.Scanner().Cycle(ctx)
//	_, err = e.BuildSolutions(ctx)
//	_, err = e.BuildMarkerTable(ctx)
//
// # Ledger
//
// With [WithLedger] every run, derived document and marker is recorded in
// SQLite and can be read back through [Engine.Query].
package tracemark
