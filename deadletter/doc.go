// Package deadletter archives executions that ended FAILED or TIMED_OUT so
// operators can inspect them and resubmit the original input.
//
// When an execution reaches a fatal failure or its deadline, the engine
// calls [Service.Push] to archive it. The original submission input, the
// Document at time of failure, and the classified cause are preserved.
//
// Resubmitting an entry starts a brand new execution of the same graph with
// the entry's original input; the archived entry is marked with
// ResubmittedAt but kept for the record.
package deadletter
