package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

type LogCode string

const (
	SYSTEM LogCode = "SYSTEM"

	USER_AUTH  LogCode = "USER_AUTH"
	INVITATION LogCode = "INVITATION"

	TRIP_UPDATE   LogCode = "TRIP_UPDATE"
	TRIP_SHARE    LogCode = "TRIP_SHARE"
	MARKER_UPDATE LogCode = "MARKER_UPDATE"
	TOUR_UPDATE   LogCode = "TOUR_UPDATE"

	ROUTE_COMPUTE LogCode = "ROUTE_COMPUTE"
	MAP_IMAGE     LogCode = "MAP_IMAGE"
)

// Log aggregators expect fixed field names for time (_time) and message (_msg).
func convertKeysForAggregator(keys []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{Key: "_time", Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05"))}
	}
	if a.Key == slog.MessageKey {
		return slog.Attr{Key: "_msg", Value: a.Value}
	}
	return a
}

func JsonLogOptions(addSource bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: convertKeysForAggregator,
		AddSource:   addSource,
	}
}

// Sets the default logger to write json records to logFile and readable text to stderr.
func Init(logFile io.Writer, service string) {
	var jsonHandler slog.Handler = slog.NewJSONHandler(logFile, JsonLogOptions(true))
	jsonHandler = jsonHandler.WithAttrs([]slog.Attr{slog.String("service_type", service)})

	textHandler := slog.NewTextHandler(os.Stderr, nil)

	slog.SetDefault(slog.New(slogmulti.Fanout(jsonHandler, textHandler)))
}
