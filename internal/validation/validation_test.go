package validation

import "testing"

func TestIsValidTargetURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "https profile", url: "https://tiktok.com/@someone", want: true},
		{name: "http link", url: "http://instagram.com/p/abc", want: true},
		{name: "with spaces around", url: "  https://youtube.com/watch?v=x  ", want: true},
		{name: "empty", url: "", want: false},
		{name: "no scheme", url: "tiktok.com/@someone", want: false},
		{name: "ftp scheme", url: "ftp://example.com/file", want: false},
		{name: "scheme only", url: "https://", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTargetURL(tt.url); got != tt.want {
				t.Fatalf("IsValidTargetURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}
