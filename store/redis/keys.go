package redis

// Redis key naming conventions for stategraph data.
// All keys are prefixed with "stategraph:" to avoid collisions.

const keyPrefix = "stategraph:"

// ── Execution keys ──

// execKey returns the key for an execution Hash: stategraph:exec:{id}
func execKey(id string) string { return keyPrefix + "exec:" + id }

// execIDsKey is the Set tracking all execution IDs for enumeration.
const execIDsKey = keyPrefix + "exec_ids"

// dueKey is the Sorted Set of RUNNING execution IDs scored by their due
// time in unix milliseconds (wake time or deadline, whichever is earlier).
const dueKey = keyPrefix + "due"

// historyKey returns the List key for an execution's step history:
// stategraph:history:{execID}
func historyKey(execID string) string { return keyPrefix + "history:" + execID }

// ── Event keys ──

// eventKey returns the key for an event Hash: stategraph:event:{id}
func eventKey(id string) string { return keyPrefix + "event:" + id }

// eventStreamKey returns the Stream key for an event name: stategraph:events:{name}
func eventStreamKey(name string) string { return keyPrefix + "events:" + name }

// ── Dead letter keys ──

// deadLetterKey returns the key for a dead letter Hash: stategraph:dl:{id}
func deadLetterKey(id string) string { return keyPrefix + "dl:" + id }

// deadLetterIDsKey is the Set tracking all dead letter IDs for enumeration.
const deadLetterIDsKey = keyPrefix + "dl_ids"
