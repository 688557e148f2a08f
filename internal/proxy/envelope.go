package proxy

import (
	"encoding/json"
	"net/http"
)

// Response header values shared by every envelope.
const (
	ContentTypeJSON = "application/json"
	AllowAnyOrigin  = "*"
)

// Envelope is the JSON response returned to clients. Success envelopes
// carry the upstream body verbatim and a cache directive; error envelopes
// carry {"error": message} and no cache directive.
type Envelope struct {
	Status       int
	Body         []byte
	CacheControl string
}

type errorBody struct {
	Error string `json:"error"`
}

// Success wraps an upstream JSON body.
func Success(body []byte, cacheControl string) *Envelope {
	return &Envelope{
		Status:       http.StatusOK,
		Body:         body,
		CacheControl: cacheControl,
	}
}

// Failure builds an error envelope.
func Failure(status int, message string) *Envelope {
	body, err := json.Marshal(errorBody{Error: message})
	if err != nil {
		body = []byte(`{"error":"internal error"}`)
	}
	return &Envelope{Status: status, Body: body}
}

// Write writes the envelope to w.
func (e *Envelope) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", ContentTypeJSON)
	h.Set("Access-Control-Allow-Origin", AllowAnyOrigin)
	if e.CacheControl != "" {
		h.Set("Cache-Control", e.CacheControl)
	} else {
		h.Del("Cache-Control")
	}
	w.WriteHeader(e.Status)
	_, _ = w.Write(e.Body)
}
