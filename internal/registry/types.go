package registry

import "strings"

// Device is a canonical device record.
//
// Identity is immutable from the pipeline's perspective; records are
// created and modified only by provisioning.
type Device struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Manufacturer    string         `json:"manufacturer,omitempty"`
	Model           string         `json:"model,omitempty"`
	Name            string         `json:"name,omitempty"`
	WillReportState bool           `json:"will_report_state"`
	Traits          []string       `json:"traits"`
	Attributes      map[string]any `json:"attributes,omitempty"`
}

// Remote is an IR transceiver record. One remote may serve many devices
// of the same type; its code table is namespaced by the device-type tag.
type Remote struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	MACAddr string `json:"mac_addr"`
}

// OwnerKind identifies which collection an alias belongs to.
type OwnerKind string

// Valid owner kinds.
const (
	OwnerGroup OwnerKind = "group"
	OwnerUser  OwnerKind = "user"
)

// Ref points at a canonical record either directly by ID or through a
// stored document path such as "devices/aircon-01". Exactly one side is
// set on a well-formed alias; an alias with neither is a consistency
// violation.
type Ref struct {
	ID   string
	Path string
}

// IsZero reports whether neither the direct ID nor the path is set.
func (r Ref) IsZero() bool {
	return r.ID == "" && r.Path == ""
}

// Resolve returns the record ID the reference points at. Direct IDs win;
// otherwise the last path segment of the document reference is used.
func (r Ref) Resolve() (string, error) {
	if r.ID != "" {
		return r.ID, nil
	}
	if r.Path == "" {
		return "", ErrInvalidRef
	}
	idx := strings.LastIndexByte(r.Path, '/')
	if idx < 0 || idx == len(r.Path)-1 {
		return "", ErrInvalidRef
	}
	return r.Path[idx+1:], nil
}

// Alias is a personal device alias: a per-user or per-group pointer into
// the canonical device/remote registry.
type Alias struct {
	ID      string
	Owner   OwnerKind
	OwnerID string
	Name    string
	Device  Ref
	Remote  Ref
}

// Resolution is the result of resolving an alias: the display name plus
// the canonical device and remote it points at.
type Resolution struct {
	Name   string
	Device *Device
	Remote *Remote
}

// OwnedDevice is one entry in a SYNC-style device listing: the alias ID
// the assistant addresses, its display name, and the canonical record.
type OwnedDevice struct {
	ID     string
	Name   string
	Device Device
}
