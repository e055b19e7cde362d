// Package service provides the business logic for photo job operations.
//
// This package ties the domain packages together behind one API,
// independent of any transport. It can be driven by HTTP handlers, CLI
// tools, or tests without modification.
//
// # Jobs
//
// A job is a directory with the studio's fixed layout: roster.csv at the
// root, Extracted/ holding the raw card dump, Output/ for renamed files
// and generated CSVs, Finished Teams/ and For Upload/ for staging.
// [JobLayout] resolves the paths; [CreateJobLayout] builds the structure
// for a new job.
//
// # Operations
//
// Long-running work (building the upload file, rebuilds, rename apply
// and undo) runs asynchronously. A Start method validates its inputs,
// acquires a slot from the operation limiter, registers the operation
// under a fresh ID, and returns immediately:
//
//	opID, err := svc.StartBuild(ctx, service.BuildRequest{Root: jobDir})
//	ch, _ := svc.SubscribeProgress(opID)
//	for p := range ch {
//	    fmt.Printf("%s %d/%d\n", p.Phase, p.Done, p.Total)
//	}
//	result, _ := svc.OperationResult(opID)
//
// Progress snapshots are published to subscriber channels with
// non-blocking sends; a slow subscriber misses intermediate updates but
// always sees the terminal one. [Service.CancelOperation] cancels the
// operation's context; pending file work short-circuits while in-flight
// items finish. Results stay available for a grace period after
// completion, then the operation is dropped from the registry.
//
// # History
//
// When a history store is attached, every operation is recorded as a
// run, and rename applies journal each moved file so
// [Service.StartRenameUndo] can replay the run in reverse.
//
// # Errors
//
// Technical errors flow out of operations unchanged. [MapError] and
// [FormatUserError] translate them into operator-facing messages with
// stable support codes; see the error codes reference in this package.
package service
