// Package logx is tickmux's structured logging on top of zerolog.
//
// Console lines carry the component in their own column; the file sink is
// JSON lines. Lines about a probe run carry its run_id (see Run) so a log
// file can be split per run. The Service config can change at runtime.
package logx
