package models

import "time"

// CallRecord is a handled inbound call: what the caller asked and what was answered.
type CallRecord struct {
	ID         string    `json:"id" db:"id"`
	CallSID    string    `json:"call_sid" db:"call_sid"`
	Caller     string    `json:"caller" db:"caller"`
	Org        string    `json:"org" db:"org"`
	Transcript string    `json:"transcript" db:"transcript"`
	Reply      string    `json:"reply" db:"reply"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// RetrieveRequest is the input for the retrieval API.
type RetrieveRequest struct {
	Org   string `json:"org,omitempty"`
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// RetrieveResponse is the output of the retrieval API.
type RetrieveResponse struct {
	Org     string           `json:"org"`
	Query   string           `json:"query"`
	Count   int              `json:"count"`
	Results []RetrievedChunk `json:"results"`
}
