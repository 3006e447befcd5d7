// Package logx wraps zerolog for classbell.
//
// The console gets human-readable lines with a short file:line caller, the
// optional file sink gets JSON. Service.Apply swaps level and sinks when the
// config file is reloaded, and loggers handed out earlier follow the swap.
package logx
