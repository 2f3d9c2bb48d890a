package drive

import (
	"errors"
	"testing"

	"github.com/olgkv/drivefetch/internal/domain"
)

func TestParseFileID(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{"file view with usp", "https://drive.google.com/file/d/1AbC_dEf-123/view?usp=sharing", "1AbC_dEf-123"},
		{"file view", "https://drive.google.com/file/d/1AbC_dEf-123/view", "1AbC_dEf-123"},
		{"open id", "https://drive.google.com/open?id=0BxYz987", "0BxYz987"},
		{"uc id", "https://drive.google.com/uc?id=XyZ-42&export=download", "XyZ-42"},
		{"no scheme", "drive.google.com/file/d/abc123/view", "abc123"},
		{"file without suffix", "https://drive.google.com/file/d/abc123", "abc123"},
		{"surrounding spaces", "  https://drive.google.com/open?id=abc123  ", "abc123"},
		{"docs host", "https://docs.google.com/uc?export=download&id=abc123", "abc123"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseFileID(tc.link)
			if err != nil {
				t.Fatalf("ParseFileID(%q) error: %v", tc.link, err)
			}
			if got != tc.want {
				t.Fatalf("ParseFileID(%q) = %q, want %q", tc.link, got, tc.want)
			}
		})
	}
}

func TestParseFileID_Unrecognized(t *testing.T) {
	links := []string{
		"",
		"   ",
		"not a link",
		"https://example.com/file/d/abc123/view",
		"https://drive.google.com/drive/folders/abc123",
		"https://drive.google.com/open?id=",
		"https://drive.google.com/open?id=bad$id",
		"https://drive.google.com/",
	}

	for _, link := range links {
		_, err := ParseFileID(link)
		if !errors.Is(err, domain.ErrUnrecognizedLink) {
			t.Fatalf("ParseFileID(%q) err = %v, want ErrUnrecognizedLink", link, err)
		}
		if kind := domain.KindOf(err); kind != domain.KindInvalidLink {
			t.Fatalf("ParseFileID(%q) kind = %s", link, kind)
		}
	}
}

func TestFilenameFromDisposition(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`attachment; filename="report.pdf"`, "report.pdf"},
		{`attachment; filename="report.pdf"; filename*=UTF-8''%D0%BE%D1%82%D1%87%D0%B5%D1%82.pdf`, "отчет.pdf"},
		{`attachment; filename=notes`, "notes"},
		{`attachment; filename=my file.txt`, "my file.txt"},
		{`attachment`, ""},
		{``, ""},
	}

	for _, tc := range tests {
		if got := FilenameFromDisposition(tc.header); got != tc.want {
			t.Errorf("FilenameFromDisposition(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`..\..\boot.ini`, "boot.ini"},
		{"a:b*c?.txt", "a_b_c_.txt"},
		{"..", ""},
		{" trailing. ", "trailing"},
	}

	for _, tc := range tests {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
