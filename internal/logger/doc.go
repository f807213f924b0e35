// Package logger wraps zap for the fetcher binaries:
//   - a global sugared logger writing console lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing and an atomic level shared by every derived logger,
//   - leveled shortcuts (Infof, InfoKV, ErrorKV, ...).
//
// Services receive a context and pull the logger out of it, so a run id or a
// component name attached once shows up on every line below it.
package logger
