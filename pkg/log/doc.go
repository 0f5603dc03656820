// Package log provides the structured logging facade used across the engine.
//
// It exposes a small Logger interface with leveled methods and a simple
// Field type for structured context, backed by the standard library slog.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithOutput(os.Stderr),
//	)
//	l = l.With(log.Component("engine"), log.Str("ns", "/prod"))
//	l.Info("connected", log.Str("addr", "localhost:6379"))
package log
