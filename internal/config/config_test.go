package config

import "testing"

func TestMIMEAllowed(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		mime    string
		want    bool
	}{
		{"empty list allows anything", nil, "application/x-sh", true},
		{"exact match", []string{"application/pdf"}, "application/pdf", true},
		{"exact mismatch", []string{"application/pdf"}, "text/plain", false},
		{"family wildcard match", []string{"image/*"}, "image/png", true},
		{"family wildcard mismatch", []string{"image/*"}, "video/mp4", false},
		{"mixed list", []string{"image/*", "application/pdf"}, "application/pdf", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := UploadConfig{AllowedMIMETypes: tc.allowed}
			if got := cfg.MIMEAllowed(tc.mime); got != tc.want {
				t.Errorf("MIMEAllowed(%q) = %v, want %v", tc.mime, got, tc.want)
			}
		})
	}
}
