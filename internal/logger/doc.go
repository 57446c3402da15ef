// Package logger wraps zap to give the daemon and the CLI:
//   - a global sugared logger writing to stderr with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and runtime level changes,
//   - leveled shortcuts (InfoKV, WarnKV, ...).
//
// Components receive a context and pull the logger from it, so every line
// carries the component name it was logged from.
package logger
