// Package identity resolves the label a participant's messages are attributed to.
package identity

import "strings"

// Unknown is used when no address can be determined.
const Unknown = "Unknown"

// Metadata is the transport information available when a participant
// connects or polls.
type Metadata struct {
	// Header returns the value of a request header, or "" when absent.
	Header   func(name string) string
	PeerAddr string
}

// Resolver maps request metadata onto a participant identity. Address-based
// resolution is the only implementation today; an authenticated-user
// resolver can replace it without touching the chat package.
type Resolver interface {
	ResolveIdentity(md Metadata) string
}

// AddressResolver labels participants with their client network address.
type AddressResolver struct{}

var addressHeaders = []string{"X-Forwarded-For", "X-Real-IP", "X-Client-IP"}

// ResolveIdentity returns the first non-empty of: the first entry of
// X-Forwarded-For, X-Real-IP, X-Client-IP, the peer address, or Unknown.
func (AddressResolver) ResolveIdentity(md Metadata) string {
	if md.Header != nil {
		for _, name := range addressHeaders {
			value := md.Header(name)
			if name == "X-Forwarded-For" {
				value, _, _ = strings.Cut(value, ",")
			}
			if value = strings.TrimSpace(value); value != "" {
				return strings.Clone(value)
			}
		}
	}
	if addr := strings.TrimSpace(md.PeerAddr); addr != "" {
		return strings.Clone(addr)
	}
	return Unknown
}
