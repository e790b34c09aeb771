package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared across packages.
const (
	KeyJobID      = "job_id"
	KeyJobStatus  = "job_status"
	KeyStage      = "stage"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyBackend    = "backend"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyWorker     = "worker"
	KeyLayer      = "layer"
	KeyBlock      = "block"
	KeyCount      = "count"
	KeyMethod     = "method"
	KeyRequestID  = "request_id"
	KeyRemoteAddr = "remote_addr"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeySchedule   = "schedule_name"
	KeyError      = "error"
)

func JobID(id string) slog.Attr        { return slog.String(KeyJobID, id) }
func JobStatus(s string) slog.Attr     { return slog.String(KeyJobStatus, s) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func Backend(name string) slog.Attr    { return slog.String(KeyBackend, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func Worker(id string) slog.Attr       { return slog.String(KeyWorker, id) }
func Layer(name string) slog.Attr      { return slog.String(KeyLayer, name) }
func Block(name string) slog.Attr      { return slog.String(KeyBlock, name) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func ScheduleName(n string) slog.Attr  { return slog.String(KeySchedule, n) }

// Duration reports d in fractional milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
