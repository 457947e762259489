// Package tuner provides the online decision engine that re-partitions a
// fixed budget of cache units among named resource pools.
//
// # Reading Guide
//
// Start with these files to understand one round:
//   - engine.go: the serialization point; one mutex-guarded observe, reward,
//     update, select cycle per client report
//   - scheduler.go: the SAMPLING / EXPLOITING / CONVERGED state machine,
//     best-arm tracking and workload-change detection
//   - reward.go: how per-pool throughputs combine into the round reward
//
// # Architecture
//
// The decision space and the learner live in sub-packages:
//   - tuner/feature/: Context Transform (invocation count to a (0,1) feature)
//   - tuner/arms/: Arm Space enumeration, coverage sweep, nearest-arm lookup
//   - tuner/linucb/: disjoint LinUCB ridge regression, one unit per pool
//   - tuner/trace/: round log records and the stable text line format
//
// Transport (the TCP Round Driver and its wire codec) lives in server/.
package tuner
