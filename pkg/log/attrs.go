package log

import (
	"log/slog"
	"time"
)

func FlowID[T ~string](id T) slog.Attr {
	return slog.String("flow_id", string(id))
}

func CollectionID[T ~string](id T) slog.Attr {
	return slog.String("collection_id", string(id))
}

func SessionID[T ~string](id T) slog.Attr {
	return slog.String("session_id", string(id))
}

func State[T ~string](state T) slog.Attr {
	return slog.String("state", string(state))
}

func URL(u string) slog.Attr {
	return slog.String("url", u)
}

func Attempt(attempt, max int) slog.Attr {
	return slog.Group("attempt",
		slog.Int("number", attempt),
		slog.Int("max", max))
}

func Delay(d time.Duration) slog.Attr {
	return slog.Duration("delay", d)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
