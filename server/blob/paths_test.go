package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathCandidates(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   string
	}{
		{"bare", "u1/1_abc.pdf", "u1/1_abc.pdf"},
		{"leading slash", "/u1/1_abc.pdf", "u1/1_abc.pdf"},
		{"public prefix", "public/1_abc.pdf", "1_abc.pdf"},
		{"encoded", "u1/my%20cert.pdf", "u1/my cert.pdf"},
		{"public url", "https://x.supabase.co/storage/v1/object/public/certvault-certificates/u1/a.pdf", "u1/a.pdf"},
		{"signed url", "https://x.supabase.co/storage/v1/object/sign/certvault-certificates/u1/a.pdf?token=abc", "u1/a.pdf"},
		{"query only", "u1/a.pdf?download=1", "u1/a.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PathCandidates(tt.stored, "certvault-certificates")
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestPathCandidatesOrderAndDedup(t *testing.T) {
	got := PathCandidates("u1/a.pdf", "b")
	assert.Equal(t, "u1/a.pdf", got[0])
	seen := map[string]bool{}
	for _, p := range got {
		assert.False(t, seen[p], p)
		seen[p] = true
	}
}
