// Package facts defines the fact record an agent reports and collects it
// from the local machine.
package facts

import (
	"fmt"
	"strings"

	"pcinventory/internal/models"
)

// Network types reported for the active adapter.
const (
	Ethernet = "Ethernet"
	WiFi     = "Wi-Fi"
)

// Record is one complete snapshot of a machine's identifying attributes.
type Record struct {
	UUID        string
	MACAddress  string
	NetworkType string
	UserName    string
	IPAddress   string
	OS          string
	OSVersion   string
	ModelName   string
}

// Network is the part of a Record that is re-collected on every attempt.
type Network struct {
	IPAddress   string
	MACAddress  string
	NetworkType string
}

// MissingFieldError names the first blank field of a Record.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// fields lists the record in wire order.
func (r Record) fields() []struct{ name, value string } {
	return []struct{ name, value string }{
		{"uuid", r.UUID},
		{"mac_address", r.MACAddress},
		{"network_type", r.NetworkType},
		{"user_name", r.UserName},
		{"ip_address", r.IPAddress},
		{"os", r.OS},
		{"os_version", r.OSVersion},
		{"model_name", r.ModelName},
	}
}

// Complete reports whether every field is non-blank.
func (r Record) Complete() bool {
	return r.Validate() == nil
}

// Validate returns a *MissingFieldError for the first field that is empty
// after trimming whitespace.
func (r Record) Validate() error {
	for _, f := range r.fields() {
		if strings.TrimSpace(f.value) == "" {
			return &MissingFieldError{Field: f.name}
		}
	}
	return nil
}

// WithNetwork returns a copy of r carrying n's address, MAC and type.
func (r Record) WithNetwork(n Network) Record {
	r.IPAddress = n.IPAddress
	r.MACAddress = n.MACAddress
	r.NetworkType = n.NetworkType
	return r
}

// Network extracts the network subset of r.
func (r Record) Network() Network {
	return Network{IPAddress: r.IPAddress, MACAddress: r.MACAddress, NetworkType: r.NetworkType}
}

// Request converts r to the submission body.
func (r Record) Request() models.PCInfoRequest {
	return models.PCInfoRequest{
		UUID:        r.UUID,
		MACAddress:  r.MACAddress,
		NetworkType: r.NetworkType,
		UserName:    r.UserName,
		IPAddress:   r.IPAddress,
		OS:          r.OS,
		OSVersion:   r.OSVersion,
		ModelName:   r.ModelName,
	}
}
