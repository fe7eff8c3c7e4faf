package http

import (
	"bytes"
	"net/http"
	"sync/atomic"
	"time"

	"carnote/internal/exchange"
	"carnote/internal/log"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := exchange.Export(r.Context(), s.repo, &buf); err != nil {
		s.writeError(w, r, err, log.ComponentExchange, log.OpExport)
		return
	}
	name := "carnote-" + s.today().String() + ".json"
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	tables, err := exchange.Import(r.Context(), s.repo, body)
	if err != nil {
		s.writeError(w, r, err, log.ComponentExchange, log.OpImport)
		return
	}
	atomic.AddInt64(&s.appMetrics.imports, 1)
	s.reportCache.Purge()

	names := tables.Names()
	log.FromContext(r.Context()).WithComponent(log.ComponentExchange).InfoContext(r.Context(), "Import completed",
		"tables", names,
		log.FieldDuration, time.Since(start).Milliseconds())
	NewJSONResponse().Data(map[string]any{"imported": names}).Write(w)
}
