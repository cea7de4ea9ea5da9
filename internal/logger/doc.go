// Package logger builds the structured slog logger shared by every component.
// Development environments get human-readable text output, production gets JSON.
package logger
