package imtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name       string
		id, uname  string
		number     string
		region     string
		wantNumber string
		wantErr    bool
	}{
		{name: "national number", id: "u1", uname: "Ada", number: "(650) 253-0000", region: "US", wantNumber: "+16502530000"},
		{name: "already e164", id: "u1", uname: "Ada", number: "+44 20 7031 3000", region: "US", wantNumber: "+442070313000"},
		{name: "no number", id: "u1", uname: "Ada", region: "US"},
		{name: "garbage number", id: "u1", uname: "Ada", number: "abc", region: "US", wantErr: true},
		{name: "missing name", id: "u1", region: "US", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewIdentity(tt.id, tt.uname, tt.number, "", tt.region)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNumber, got.Number)
			assert.Equal(t, ThumbnailNone, got.Thumbnail)
		})
	}
}
