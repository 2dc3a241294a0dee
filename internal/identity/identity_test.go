package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func headers(h map[string]string) func(string) string {
	return func(name string) string { return h[name] }
}

func TestAddressResolver_ResolutionOrder(t *testing.T) {
	tests := []struct {
		name     string
		md       Metadata
		expected string
	}{
		{
			name: "forwarded-for wins and takes first entry",
			md: Metadata{
				Header: headers(map[string]string{
					"X-Forwarded-For": "203.0.113.7, 10.0.0.1",
					"X-Real-IP":       "198.51.100.2",
				}),
				PeerAddr: "127.0.0.1",
			},
			expected: "203.0.113.7",
		},
		{
			name: "real ip before client ip",
			md: Metadata{
				Header: headers(map[string]string{
					"X-Real-IP":   "198.51.100.2",
					"X-Client-IP": "192.0.2.5",
				}),
				PeerAddr: "127.0.0.1",
			},
			expected: "198.51.100.2",
		},
		{
			name:     "client ip",
			md:       Metadata{Header: headers(map[string]string{"X-Client-IP": "192.0.2.5"}), PeerAddr: "127.0.0.1"},
			expected: "192.0.2.5",
		},
		{
			name:     "peer address",
			md:       Metadata{Header: headers(nil), PeerAddr: "127.0.0.1"},
			expected: "127.0.0.1",
		},
		{
			name:     "blank forwarded-for falls through",
			md:       Metadata{Header: headers(map[string]string{"X-Forwarded-For": " , 10.0.0.1"}), PeerAddr: "127.0.0.1"},
			expected: "127.0.0.1",
		},
		{
			name:     "nothing available",
			md:       Metadata{},
			expected: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddressResolver{}.ResolveIdentity(tt.md))
		})
	}
}
