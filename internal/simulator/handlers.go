package simulator

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/alpaca/internal/management"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+management.PathAPIVersions, func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, s.config.APIVersions)
	})
	mux.HandleFunc("GET "+management.PathDescription, func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, s.config.Description)
	})
	mux.HandleFunc("GET "+management.PathConfiguredDevices, func(w http.ResponseWriter, r *http.Request) {
		devices := s.config.Devices
		if devices == nil {
			devices = []management.ConfiguredDevice{}
		}
		s.respond(w, r, devices)
	})
	return mux
}

// respond writes value inside an Alpaca envelope, unless a fault is
// configured for the request path
func (s *Server) respond(w http.ResponseWriter, r *http.Request, value any) {
	s.mu.Lock()
	s.requests[r.URL.Path]++
	s.mu.Unlock()

	logRequest(s.logger, r)

	clientTxn, _ := strconv.ParseUint(r.URL.Query().Get("ClientTransactionID"), 10, 32)
	envelope := management.Response[any]{
		Value:               value,
		ClientTransactionID: uint32(clientTxn),
		ServerTransactionID: s.serverTransactionID.Add(1),
	}

	if fault, ok := s.config.Faults[r.URL.Path]; ok {
		if fault.Delay > 0 {
			select {
			case <-time.After(fault.Delay):
			case <-r.Context().Done():
				return
			}
		}
		switch {
		case fault.Status != 0:
			http.Error(w, http.StatusText(fault.Status), fault.Status)
			s.logger.Debug("Injected HTTP failure",
				zap.String("path", r.URL.Path),
				zap.Int("status_code", fault.Status),
			)
			return
		case fault.Body != "":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(fault.Body))
			return
		case fault.ErrorNumber != 0:
			envelope.Value = nil
			envelope.ErrorNumber = fault.ErrorNumber
			envelope.ErrorMessage = fault.ErrorMessage
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		s.logger.Warn("Failed to write management response",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

// logRequest logs the request line at info and its headers at debug
func logRequest(logger *zap.Logger, r *http.Request) {
	logger.Info("HTTP request received",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("client_id", r.URL.Query().Get("ClientID")),
	)

	if ce := logger.Check(zap.DebugLevel, "HTTP request headers"); ce != nil {
		headers := make(map[string]string, len(r.Header))
		for key, values := range r.Header {
			headers[key] = strings.Join(values, ", ")
		}
		ce.Write(
			zap.String("remote_addr", r.RemoteAddr),
			zap.Any("headers", headers),
		)
	}
}
