package drive

import (
	"mime"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

var illegalNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

// FilenameFromDisposition returns the file name announced by a
// Content-Disposition header, or "" when there is none.
func FilenameFromDisposition(cd string) string {
	if cd == "" {
		return ""
	}
	if name := extendedFilename(cd); name != "" {
		return name
	}
	if _, params, err := mime.ParseMediaType(cd); err == nil {
		if name := params["filename"]; name != "" {
			return decodeWord(name)
		}
	}
	return lenientFilename(cd)
}

// extendedFilename handles RFC 5987 filename*=UTF-8''name.
func extendedFilename(cd string) string {
	idx := strings.Index(strings.ToLower(cd), "filename*=")
	if idx == -1 {
		return ""
	}
	value := cd[idx+len("filename*="):]
	if end := strings.Index(value, ";"); end != -1 {
		value = value[:end]
	}
	value = strings.Trim(strings.TrimSpace(value), `"`)

	parts := strings.SplitN(value, "'", 3)
	if len(parts) != 3 {
		return ""
	}
	decoded, err := url.QueryUnescape(parts[2])
	if err != nil {
		return ""
	}
	return decoded
}

// lenientFilename picks filename= out of headers mime.ParseMediaType rejects,
// e.g. unquoted names with spaces.
func lenientFilename(cd string) string {
	idx := strings.Index(strings.ToLower(cd), "filename=")
	if idx == -1 {
		return ""
	}
	value := cd[idx+len("filename="):]
	if end := strings.Index(value, ";"); end != -1 {
		value = value[:end]
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	return decodeWord(value)
}

func decodeWord(name string) string {
	if strings.HasPrefix(name, "=?") {
		if decoded, err := new(mime.WordDecoder).DecodeHeader(name); err == nil {
			name = decoded
		}
	}
	if !utf8.ValidString(name) {
		name = strings.ToValidUTF8(name, "_")
	}
	return name
}

// SanitizeFilename reduces name to a single safe path element.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	name = illegalNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")
	if len(name) > 250 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:250-len(ext)] + ext
	}
	return name
}
