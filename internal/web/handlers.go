package web

import "net/http"

type healthResponse struct {
	Status        string `json:"status"`
	ActiveUploads int    `json:"active_uploads"`
	UploadSlots   int    `json:"upload_slots"`
}

// handleHealth reports liveness and upload slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.service.Limiter().Status()
	writeJSON(w, r, healthResponse{
		Status:        "ok",
		ActiveUploads: st.Active,
		UploadSlots:   st.MaxConcurrent,
	})
}
