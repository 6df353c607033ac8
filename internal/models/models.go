// Package models holds the JSON shapes exchanged between the agent and the
// collector.
package models

import "time"

// Actions reported by the collector for a successful submission.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PCInfoRequest is the body of a submission.
type PCInfoRequest struct {
	UUID        string `json:"uuid"`
	MACAddress  string `json:"mac_address"`
	NetworkType string `json:"network_type"`
	UserName    string `json:"user_name"`
	IPAddress   string `json:"ip_address"`
	OS          string `json:"os"`
	OSVersion   string `json:"os_version"`
	ModelName   string `json:"model_name"`
}

// PCInfoResponse is returned on a 2xx submission.
type PCInfoResponse struct {
	Status string `json:"status"`
	Action string `json:"action"`
	ID     int64  `json:"id"`
}

// ErrorResponse is returned on any non-2xx response.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Machine is a stored inventory row as served by the listing endpoints.
type Machine struct {
	ID           int64     `json:"id"`
	UUID         string    `json:"uuid"`
	MACAddress   string    `json:"mac_address"`
	NetworkType  string    `json:"network_type"`
	UserName     string    `json:"user_name"`
	IPAddress    string    `json:"ip_address"`
	OS           string    `json:"os"`
	OSVersion    string    `json:"os_version"`
	ModelName    string    `json:"model_name"`
	AgentVersion string    `json:"agent_version,omitempty"`
	Outdated     bool      `json:"outdated"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Created builds the success body for a new row.
func Created(id int64) PCInfoResponse {
	return PCInfoResponse{Status: StatusSuccess, Action: ActionCreated, ID: id}
}

// Updated builds the success body for an overwritten row.
func Updated(id int64) PCInfoResponse {
	return PCInfoResponse{Status: StatusSuccess, Action: ActionUpdated, ID: id}
}
