package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/internal/storage"
	"github.com/kotaehq/kotae/internal/twiml"
)

// orgFromRequest resolves the organization a webhook or API call targets.
func (s *Server) orgFromRequest(r *http.Request) string {
	if org := r.URL.Query().Get("org"); org != "" {
		return org
	}
	return s.cfg.Retrieval.DefaultOrg
}

func (s *Server) orgProfile(org string) *config.OrgProfile {
	profile, err := config.LoadOrgProfile(s.cfg.Storage.DataDir, org)
	if err != nil {
		s.logger.Warn("failed to load org profile, using defaults",
			zap.String("org", org), zap.Error(err))
		return config.DefaultOrgProfile(org)
	}
	return profile
}

func (s *Server) handleVoiceInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	org := s.orgFromRequest(r)
	profile := s.orgProfile(org)
	s.logger.Info("inbound call",
		zap.String("org", org),
		zap.String("call_sid", r.PostFormValue("CallSid")),
		zap.String("from", r.PostFormValue("From")))

	resp := (&twiml.Response{}).Add(
		twiml.Say{Voice: profile.Voice, Language: profile.Language, Text: profile.Greeting},
		twiml.Record{
			Action:    "/voice/recording?org=" + org,
			Method:    http.MethodPost,
			MaxLength: 30,
			Timeout:   5,
		},
	)
	s.respondTwiML(w, resp)
}

func (s *Server) handleVoiceRecording(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	ctx := r.Context()
	org := s.orgFromRequest(r)
	profile := s.orgProfile(org)
	recordingURL := r.PostFormValue("RecordingUrl")

	var transcript string
	if s.transcriber != nil && recordingURL != "" {
		transcript = s.transcriber.TranscribeURL(ctx, recordingURL)
	}

	var chunks []string
	if transcript != "" {
		chunks = s.retriever.Retrieve(ctx, org, transcript, s.cfg.Retrieval.TopK)
	}

	reply := profile.FallbackReply
	if s.responder != nil && transcript != "" {
		reply = s.responder.Respond(ctx, profile, transcript, chunks)
	}
	s.logger.Info("call answered",
		zap.String("org", org),
		zap.String("call_sid", r.PostFormValue("CallSid")),
		zap.Int("context_chunks", len(chunks)))

	if s.calls != nil {
		record := &models.CallRecord{
			CallSID:    r.PostFormValue("CallSid"),
			Caller:     r.PostFormValue("From"),
			Org:        org,
			Transcript: transcript,
			Reply:      reply,
		}
		if err := s.calls.CreateCall(ctx, record); err != nil {
			s.logger.Warn("failed to record call", zap.Error(err))
		}
	}

	resp := (&twiml.Response{}).Add(
		twiml.Say{Voice: profile.Voice, Language: profile.Language, Text: reply},
		twiml.Hangup{},
	)
	s.respondTwiML(w, resp)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Org == "" {
		req.Org = s.cfg.Retrieval.DefaultOrg
	}
	if req.K <= 0 {
		req.K = s.cfg.Retrieval.TopK
	}
	s.logger.Debug("retrieve request",
		zap.String("org", req.Org), zap.String("query", req.Query), zap.Int("k", req.K))

	results, err := s.retriever.RetrieveChunks(r.Context(), req.Org, req.Query, req.K)
	if err != nil {
		s.logger.Error("retrieval failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.RetrieveResponse{
		Org:     req.Org,
		Query:   req.Query,
		Count:   len(results),
		Results: results,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgs := map[string]int{}
	for _, org := range s.statusOrgs() {
		store, err := s.registry.Store(org)
		if err != nil {
			s.logger.Error("status: load store failed",
				zap.String("org", org), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		orgs[org] = store.Size()
	}

	resp := map[string]interface{}{
		"orgs": orgs,
		"config": map[string]interface{}{
			"embedding_backend":    s.cfg.Embedding.Backend,
			"embedding_dimensions": s.cfg.Embedding.Dimensions,
			"chunk_size":           s.cfg.Retrieval.ChunkSize,
			"chunk_overlap":        s.cfg.Retrieval.ChunkOverlap,
			"top_k":                s.cfg.Retrieval.TopK,
			"data_dir":             s.cfg.Storage.DataDir,
		},
	}

	if s.calls != nil {
		n, err := s.calls.CountCalls(ctx, "")
		if err != nil {
			s.logger.Error("status: count calls failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["calls"] = n
	}

	diskBytes, err := storage.DiskUsageBytes(s.cfg.Storage.DataDir, s.cfg.Storage.CallLogPath)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusOrgs lists the organizations worth reporting on: the default plus
// any under watch.
func (s *Server) statusOrgs() []string {
	seen := map[string]bool{}
	var orgs []string
	for _, org := range append([]string{s.cfg.Retrieval.DefaultOrg}, s.cfg.Watch.Orgs...) {
		if org == "" || seen[org] {
			continue
		}
		seen[org] = true
		orgs = append(orgs, org)
	}
	return orgs
}

func (s *Server) respondTwiML(w http.ResponseWriter, resp *twiml.Response) {
	body, err := resp.Render()
	if err != nil {
		s.logger.Error("failed to render voice response", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to render response")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
