// Package protocol exchanges commands with the Marvin app through files in its
// staging folder.
//
// A command goes through these states:
//
//	IDLE -> STAGING -> AWAITING_ACK -> MONITORING -> COMPLETED | FAILED | CANCELLED | TIMED_OUT -> IDLE
//
// The envelope is written to a temporary name and renamed into place, so the
// app never sees a partial command. The app acknowledges by creating the status
// artifact and reports progress through it; an advancing timestamp keeps the
// watchdog alive. Status codes: -1 running, 0 success, 1 success with warnings,
// 2 failure, 3 cancelled.
//
// Cancelling the request context while the app is working writes the cancel
// artifact and waits for code 3. Before the app has picked the command up the
// command file is simply withdrawn.
//
// The status and cancel artifacts are removed on every exit path, and mutating
// commands are followed by a device database refresh.
package protocol
