package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"

	"cardapi/internal/config"
	"cardapi/internal/logging"
)

// LoggerLocalKey holds the request-scoped logrus entry in Fiber's context locals.
const LoggerLocalKey = "logger"

// Logger is a middleware that writes one access log line per request.
// Fields: request_id, method, path, status, latency (milliseconds, float).
// 5xx responses log at error level and 4xx at warn.
func Logger(log logrus.FieldLogger) fiber.Handler {
	return accessLog(log, nil)
}

// LoggerWithWriter is Logger with its own JSON logger writing to w.
// Timestamps are rendered in loc.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return accessLog(logging.NewWithWriter(config.LogConfig{Level: "info", Format: "json"}, w), loc)
}

func accessLog(log logrus.FieldLogger, loc *time.Location) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		entry := log.WithField("request_id", rid)
		c.Locals(LoggerLocalKey, entry)

		err := c.Next()

		// The global error handler runs after the chain returns, so the
		// final status of a returned error is derived here.
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		line := entry.WithFields(logrus.Fields{
			"method":  utils.CopyString(c.Method()),
			"path":    utils.CopyString(c.Path()),
			"status":  status,
			"latency": float64(time.Since(start).Microseconds()) / 1000,
		})
		if loc != nil {
			line = line.WithTime(time.Now().In(loc))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			line.Error("request completed")
		case status >= fiber.StatusBadRequest:
			line.Warn("request completed")
		default:
			line.Info("request completed")
		}
		return err
	}
}

// LogEntry returns the request-scoped logger stored by Logger, or the
// standard logger tagged with the request ID when Logger is not installed.
func LogEntry(c *fiber.Ctx) logrus.FieldLogger {
	if e, ok := c.Locals(LoggerLocalKey).(logrus.FieldLogger); ok {
		return e
	}
	rid, _ := c.Locals(RequestIDLocalKey).(string)
	return logrus.StandardLogger().WithField("request_id", rid)
}
