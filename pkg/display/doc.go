// Package display connects decoded preview frames to the grid that shows
// them.
//
// The receive loop pushes frames into a Sink with TryEnqueue, which never
// blocks; a Driver drains the sink in its own goroutine and hands each frame
// to an Actuator.
//
//	receive loop ──TryEnqueue──> Channel (depth 1) ──> Driver ──Paint──> Actuator
//
// Frames shorter than the grid are padded with black before painting. An
// actuator error pauses the driver for the restart delay; it never stops it.
//
// Actuators provided here:
//
//   - LogActuator: logs every frame through slog
//   - TerminalActuator: draws a coloured grid with lipgloss
//   - DiscardActuator: drops everything
package display
