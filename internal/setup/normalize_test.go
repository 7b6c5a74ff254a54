package setup

import (
	"testing"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "compact id unchanged",
			input: "abc123def4567890abc123def4567890",
			want:  "abc123def4567890abc123def4567890",
		},
		{
			name:  "dashed uuid stripped",
			input: "abc123de-f456-7890-abc1-23def4567890",
			want:  "abc123def4567890abc123def4567890",
		},
		{
			name:  "workspace url with slug",
			input: "https://www.notion.so/My-Page-abc123def4567890abc123def4567890",
			want:  "abc123def4567890abc123def4567890",
		},
		{
			name:  "workspace url with dashed id",
			input: "https://www.notion.so/workspace/abc123de-f456-7890-abc1-23def4567890?v=1",
			want:  "abc123def4567890abc123def4567890",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  abc123def4567890abc123def4567890  ",
			want:  "abc123def4567890abc123def4567890",
		},
		{
			name:  "uppercase hex accepted",
			input: "ABC123DEF4567890ABC123DEF4567890",
			want:  "ABC123DEF4567890ABC123DEF4567890",
		},
		{
			name:  "no identifier returned trimmed",
			input: "  not an id  ",
			want:  "not an id",
		},
		{
			name:  "too short hex run returned unchanged",
			input: "abc123def456",
			want:  "abc123def456",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "whitespace only",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeID(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIDDeterministic(t *testing.T) {
	input := "https://www.notion.so/My-Page-abc123def4567890abc123def4567890"
	first := NormalizeID(input)
	for i := 0; i < 5; i++ {
		if got := NormalizeID(input); got != first {
			t.Fatalf("NormalizeID not deterministic: %q then %q", first, got)
		}
	}
	// Normalizing a normalized id is a no-op.
	if got := NormalizeID(first); got != first {
		t.Errorf("NormalizeID(%q) = %q, want idempotent", first, got)
	}
}
