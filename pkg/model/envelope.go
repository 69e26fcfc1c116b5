package model

import "encoding/json"

// Envelope is the uniform response wrapper of the backend REST API.
type Envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}
