// Package prober implements the concurrent probing engine of mirrorrank.
//
// This package is internal to mirrorrank and handles everything between a
// list of endpoint identifiers and a set of per-endpoint statistics. It
// implements a bounded fan-out over endpoints, with each endpoint probed a
// fixed number of times in sequence.
//
// The main components are:
//
//   - [Client]: HTTP prober issuing one HEAD request per attempt
//   - [Classify]: maps transport failures onto a closed set of [Class] values
//   - [Evaluator]: drives a [Prober] for a fixed number of attempts and reduces
//     the outcomes into [Stats]
//   - [Coordinator]: evaluates many endpoints with bounded concurrency
//   - [Scheduler]: repeats full rounds on an interval for watch mode
//
// Users of the mirrorrank library should not need to interact with this
// package directly. Configuration is done through the main mirrorrank package.
package prober
