// Package respool provides a generic asynchronous resource pool: a bounded
// set of expensive-to-construct resources multiplexed between concurrent
// requesters, with lifetime, idle-time, open-count, and idle-count limits,
// and graceful, quiescence-aware shutdown.
//
// The design mirrors database/sql's internal connection pool: a FIFO queue
// of waiting callers, a LIFO stack of idle resources, background growth
// bounded by an open-count ceiling, and periodic sweeps that expire idle or
// over-aged resources.
package respool
