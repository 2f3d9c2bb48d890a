// Package drive talks to the Google Drive public download endpoint: it turns
// share links into file identifiers and resolves identifiers into a readable
// stream plus the metadata the host reports for it.
package drive

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/olgkv/drivefetch/internal/domain"
)

var (
	fileIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	filePathRe    = regexp.MustCompile(`/file/d/([A-Za-z0-9_-]+)(?:/|$)`)
)

// ParseFileID extracts the file identifier from a share link. Accepted shapes:
//
//	https://drive.google.com/file/d/{ID}/view?usp=sharing
//	https://drive.google.com/file/d/{ID}/view
//	https://drive.google.com/open?id={ID}
//	https://drive.google.com/uc?id={ID}&export=download
//
// The scheme may be omitted.
func ParseFileID(raw string) (string, error) {
	link := strings.TrimSpace(raw)
	if link == "" {
		return "", invalidLink(raw)
	}
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		link = "https://" + link
	}

	u, err := url.Parse(link)
	if err != nil || !isGoogleHost(u.Hostname()) {
		return "", invalidLink(raw)
	}

	if m := filePathRe.FindStringSubmatch(u.Path); m != nil {
		return m[1], nil
	}
	if id := u.Query().Get("id"); id != "" && fileIDPattern.MatchString(id) {
		return id, nil
	}
	return "", invalidLink(raw)
}

func isGoogleHost(host string) bool {
	host = strings.ToLower(host)
	return host == "google.com" || strings.HasSuffix(host, ".google.com")
}

func invalidLink(raw string) error {
	return domain.WrapError(domain.KindInvalidLink, strings.TrimSpace(raw), domain.ErrUnrecognizedLink)
}
