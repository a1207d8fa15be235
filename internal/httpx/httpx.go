package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the success response shape for resource reads.
type Envelope struct {
	Success    bool     `json:"success"`
	Count      int      `json:"count"`
	Data       any      `json:"data"`
	TrustScore *float64 `json:"trust_score,omitempty"`
}

// Denial is the response shape for every terminal rejection. Reason and
// TrustScore are present only when the policy decision carried them.
type Denial struct {
	Error      string   `json:"error"`
	Reason     string   `json:"reason,omitempty"`
	TrustScore *float64 `json:"trust_score,omitempty"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, Denial{Error: msg})
}
