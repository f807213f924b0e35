// Package bootstrap contains the domain types of an environment bootstrap run.
//
// Stage and Tracker model the run as START -> DOWNLOADING -> CONFIGURING ->
// DONE, with FAILED reachable from both working stages. WritePolicy says what
// happens to data already present at the destination. The sentinel errors
// classify every failure a run can end with.
package bootstrap
