package models

// PayloadState is the outcome of a payload bind
type PayloadState string

const (
	// StateReady means the payload is stored and readable
	StateReady PayloadState = "READY"
)

// Status is returned after a payload bind
type Status struct {
	State PayloadState `json:"state"`
}
