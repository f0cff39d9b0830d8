package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/c0deZ3R0/quotesync/bulk"
	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/quote"
	"github.com/c0deZ3R0/quotesync/synckit"
)

type addRecordRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`

	// Publish also sends the record to the remote authority.
	Publish bool `json:"publish,omitempty"`
}

type addRecordResponse struct {
	Record    quote.Record  `json:"record"`
	Published *quote.Record `json:"published,omitempty"`
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, recordsOrEmpty(s.lib.ByCategory(r.URL.Query().Get("category"))))
}

func (s *Server) addRecord(w http.ResponseWriter, r *http.Request) {
	var req addRecordRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.lib.Add(r.Context(), req.Text, req.Category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := addRecordResponse{Record: rec}
	if req.Publish {
		sent, err := s.lib.Publish(r.Context(), rec)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp.Published = &sent
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) randomRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lib.Random(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) lastViewed(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := s.lib.LastViewed(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, string(syncErrors.KindNotFound), "no quote viewed in this session")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	cats := s.lib.Categories()
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, cats)
}

type syncResponse struct {
	Message string              `json:"message"`
	Result  *synckit.SyncResult `json:"result"`
}

func (s *Server) synchronize(w http.ResponseWriter, r *http.Request) {
	res, err := s.lib.Synchronize(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Message: res.Message(), Result: res})
}

func (s *Server) listConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts := s.lib.Conflicts()
	if conflicts == nil {
		conflicts = []synckit.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func (s *Server) choice(w http.ResponseWriter, r *http.Request) (synckit.Choice, bool) {
	c, err := synckit.ParseChoice(r.URL.Query().Get("choice"))
	if err != nil {
		s.fail(w, r, err)
		return 0, false
	}
	return c, true
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	c, ok := s.choice(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.lib.Resolve(r.Context(), id, c); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resolved": 1, "choice": c.String()})
}

func (s *Server) resolveAll(w http.ResponseWriter, r *http.Request) {
	c, ok := s.choice(w, r)
	if !ok {
		return
	}
	n, err := s.lib.ResolveAll(r.Context(), c)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resolved": n, "choice": c.String()})
}

type autoSyncState struct {
	Enabled  bool   `json:"enabled"`
	Running  bool   `json:"running"`
	Interval string `json:"interval,omitempty"`
}

type autoSyncRequest struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"`
}

func (s *Server) autoSyncState(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.lib.AutoSync(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st := autoSyncState{Enabled: enabled, Running: s.lib.Scheduler().Running()}
	if iv := s.lib.Scheduler().Interval(); iv > 0 {
		st.Interval = iv.String()
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) getAutoSync(w http.ResponseWriter, r *http.Request) {
	s.autoSyncState(w, r)
}

func (s *Server) putAutoSync(w http.ResponseWriter, r *http.Request) {
	var req autoSyncRequest
	if !s.decode(w, r, &req) {
		return
	}
	var interval time.Duration
	if req.Interval != "" {
		d, err := time.ParseDuration(req.Interval)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, string(syncErrors.KindInvalid), fmt.Sprintf("invalid interval %q", req.Interval))
			return
		}
		interval = d
	}
	if err := s.lib.SetAutoSync(r.Context(), req.Enabled, interval); err != nil {
		s.fail(w, r, err)
		return
	}
	s.autoSyncState(w, r)
}

func (s *Server) importRecords(w http.ResponseWriter, r *http.Request) {
	records, err := bulk.Decode(r.Body, s.clock())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := s.lib.Import(r.Context(), records)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) exportRecords(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="quotes.json"`)
	if err := bulk.Encode(w, s.lib.Export()); err != nil {
		s.logger.Error("Export failed", "error", err)
	}
}
