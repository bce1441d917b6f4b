package help

import (
	"log/slog"
	"os"
)

func Logger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelWarn, // keep the suite quiet; flip to Debug when chasing a failure
	}

	h := slog.NewJSONHandler(os.Stdout, opts)

	log := slog.New(h).With(
		slog.String("service", "offlineCache"),
		slog.String("env", "test"),
	)

	slog.SetDefault(log)

	return log
}
