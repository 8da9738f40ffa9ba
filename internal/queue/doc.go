// Package queue provides a client for an external batch-queue service that is
// driven through its command-line tool (thorq by default).
//
// The client submits jobs, lists job statuses and requests cancellation. The
// service's textual replies are parsed into a JobHandle for submissions and
// into Entries for status listings.
package queue
