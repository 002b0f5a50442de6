// Package logging assembles the structured slog loggers used by manimate.
//
// It owns the console and JSON handlers, level parsing, the tee that mirrors
// console output into the log directory, and helpers that keep warning lines
// shaped the same way everywhere (event type, hint, impact). Request and
// render identifiers travel on the context and are attached by WithContext.
package logging
