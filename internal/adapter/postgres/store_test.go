package postgres

import "testing"

func TestLikeReplacerEscapesMetacharacters(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"vfs:/plain/", `vfs:/plain/`},
		{"vfs:/my_dir/", `vfs:/my\_dir/`},
		{"vfs:/100%/", `vfs:/100\%/`},
		{`vfs:/back\slash/`, `vfs:/back\\slash/`},
		{`vfs:/a_b%c\/`, `vfs:/a\_b\%c\\/`},
	}
	for _, tt := range tests {
		if got := likeReplacer.Replace(tt.prefix); got != tt.want {
			t.Fatalf("Replace(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
