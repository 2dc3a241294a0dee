package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundFrame_Text(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare string", `{"event":"send-message","data":"hello"}`, "hello", false},
		{"message field", `{"event":"send-message","data":{"message":"hi there"}}`, "hi there", false},
		{"text field", `{"event":"send-message","data":{"text":"legacy"}}`, "legacy", false},
		{"empty string", `{"event":"send-message","data":""}`, "", false},
		{"number", `{"event":"send-message","data":7}`, "", true},
		{"missing data", `{"event":"send-message"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var frame InboundFrame
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &frame))

			got, err := frame.Text()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
