// Package broker connects the job store to Redis.
//
// Dispatchers decide how a freshly submitted job reaches a worker: the local
// dispatcher wakes the in-process pool, the asynq dispatcher enqueues a
// render:execute task that an asynq server hands to the same executor. The
// StatusMirror copies every job transition into a Redis hash so external
// pollers can read job status without touching SQLite.
package broker
