package client

import "time"

// CreateObserverRequest represents a request to create an observer
type CreateObserverRequest struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// ObserverStatus represents the status of a single observer
type ObserverStatus struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	State string `json:"state"`
}

// DefineServiceRequest represents a request to define a watch service
type DefineServiceRequest struct {
	Path         string `json:"path"`
	Name         string `json:"name,omitempty"`
	RunOnStartup bool   `json:"run_on_startup,omitempty"`
}

// Service represents a defined watch service
type Service struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	RunOnStartup bool   `json:"run_on_startup"`
	Dir          string `json:"dir,omitempty"`
}

// PIDResponse represents the pid lookup response
type PIDResponse struct {
	Name string `json:"name"`
	PID  int32  `json:"pid"`
}

// ResourceSample represents one resource usage sample for a service
type ResourceSample struct {
	PID        int32     `json:"pid"`
	Name       string    `json:"name"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	MemoryVMS  uint64    `json:"memory_vms"`
	MemorySwap uint64    `json:"memory_swap,omitempty"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChangeDocument is the full change log: event type -> observer -> paths
type ChangeDocument map[string]map[string][]string

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
