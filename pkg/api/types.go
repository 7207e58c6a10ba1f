package api

import "github.com/platinummonkey/beacon/pkg/dispatch"

// IdentifyRequest is the body of POST /v1/identify.
//
// In every request body Clients, when present, restricts delivery to the
// named clients. An empty list delivers to none; an absent field delivers to
// every registered client.
type IdentifyRequest struct {
	UserID  string              `json:"user_id"`
	Traits  dispatch.Properties `json:"traits,omitempty"`
	Clients *[]string           `json:"clients,omitempty"`
}

// PageRequest is the body of POST /v1/page.
type PageRequest struct {
	Name       string              `json:"name"`
	Properties dispatch.Properties `json:"properties,omitempty"`
	Clients    *[]string           `json:"clients,omitempty"`
}

// EventRequest is the body of POST /v1/event.
type EventRequest struct {
	Name       string              `json:"name"`
	Properties dispatch.Properties `json:"properties,omitempty"`
	Clients    *[]string           `json:"clients,omitempty"`
}

// ErrorRequest is the body of POST /v1/error. ErrorInfo may be any JSON
// value; an array is delivered as one item per element.
type ErrorRequest struct {
	Message   string    `json:"message"`
	ErrorInfo any       `json:"error_info,omitempty"`
	Level     string    `json:"level,omitempty"`
	Clients   *[]string `json:"clients,omitempty"`
}

// ClientsResponse is returned by GET /v1/clients.
type ClientsResponse struct {
	Analytics []string `json:"analytics"`
	Error     []string `json:"error"`
}
