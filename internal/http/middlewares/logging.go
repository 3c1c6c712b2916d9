package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
	"github.com/dropDatabas3/horizonauth/internal/social"
)

// statusRecorder captura el status code y bytes escritos de la respuesta.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.status = http.StatusOK
		s.wroteHeader = true
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// WithLogging inyecta un logger scoped (request_id, method, path) en el
// contexto y registra el fin de cada request con nivel según el status.
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := logger.L().With(
				logger.RequestID(GetRequestID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.ClientIP(social.RequestContextFrom(r).ClientIP()),
			)
			ctx := logger.ToContext(r.Context(), reqLog)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(ctx))

			status := logger.Status(rec.status)
			bytes := logger.Int("bytes", rec.bytes)
			dur := logger.Duration(time.Since(start))
			switch {
			case rec.status >= 500:
				reqLog.Error("request failed", status, bytes, dur)
			case rec.status >= 400:
				reqLog.Warn("request completed with client error", status, bytes, dur)
			default:
				reqLog.Info("request completed", status, bytes, dur)
			}
		})
	}
}
