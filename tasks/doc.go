// Package tasks is the boundary between a task runner and the ingestion
// pipeline.
//
// Tasks carry JSON payloads made of wire-safe primitives only: paths are
// strings and timestamps are RFC 3339 strings. Handlers are looked up by
// name in a Registry populated once at startup. The ingest_file handler
// resolves its input to one or more files, runs them through an Ingester and
// always answers with a structured IngestFileOutput, even when the input is
// unusable.
//
// A Pool drains a Queue on an ants worker pool, and a Watcher turns file
// system events into ingest_file tasks:
//
//	reg := tasks.NewRegistry()
//	_ = tasks.RegisterIngestFile(reg, coordinator)
//
//	queue := tasks.NewMemoryQueue(64)
//	pool, _ := tasks.NewPool(reg, queue, tasks.WithWorkers(4))
//	go pool.Run(ctx)
//
//	task, _ := tasks.NewTask(tasks.IngestFileTaskName, input)
//	_ = queue.Enqueue(ctx, task)
package tasks
