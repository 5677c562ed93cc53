// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadHeaderTimeout – abort slow-loris headers (5 s)
//   • ReadTimeout       – cap body upload time (30 s, multipart included)
//   • WriteTimeout      – cap total response time (30 s)
//   • IdleTimeout       – close keep-alives on idle clients (60 s)
//
// The dispatch filter itself has no timeouts; these bound every request
// from the outside.  Server errors go to the zap logger.
//

package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/gate/internal/logger"
)

// Timeouts applied by New.
const (
	ReadHeaderTimeout = 5 * time.Second
	ReadTimeout       = 30 * time.Second
	WriteTimeout      = 30 * time.Second
	IdleTimeout       = 60 * time.Second
)

// New constructs an *http.Server with sensible defaults.
func New(addr string, handler http.Handler, log *zap.SugaredLogger) *http.Server {
	errLog, err := zap.NewStdLogAt(logger.OrGlobal(log).Desugar(), zap.WarnLevel)
	if err != nil {
		errLog = zap.NewStdLog(logger.OrGlobal(log).Desugar())
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
		ErrorLog:          errLog,
	}
}
