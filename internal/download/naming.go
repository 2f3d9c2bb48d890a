package download

import (
	"path/filepath"
	"strings"

	"github.com/olgkv/drivefetch/internal/domain"
)

// contentTypeExt maps media types to file extensions.
var contentTypeExt = map[string]string{
	"application/pdf":              ".pdf",
	"application/zip":              ".zip",
	"application/x-zip-compressed": ".zip",
	"application/x-rar-compressed": ".rar",
	"application/vnd.rar":          ".rar",
	"application/x-7z-compressed":  ".7z",
	"application/gzip":             ".gz",
	"application/x-gzip":           ".gz",
	"application/x-tar":            ".tar",
	"application/json":             ".json",
	"application/xml":              ".xml",
	"application/msword":           ".doc",
	"application/vnd.ms-excel":     ".xls",
	"application/vnd.ms-powerpoint": ".ppt",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/vnd.android.package-archive":                                   ".apk",
	"application/x-msdownload":                                                  ".exe",
	"application/epub+zip":                                                      ".epub",
	"text/plain":                                                                ".txt",
	"text/csv":                                                                  ".csv",
	"text/html":                                                                 ".html",
	"image/jpeg":                                                                ".jpg",
	"image/png":                                                                 ".png",
	"image/gif":                                                                 ".gif",
	"image/webp":                                                                ".webp",
	"image/svg+xml":                                                             ".svg",
	"audio/mpeg":                                                                ".mp3",
	"audio/wav":                                                                 ".wav",
	"audio/ogg":                                                                 ".ogg",
	"audio/flac":                                                                ".flac",
	"video/mp4":                                                                 ".mp4",
	"video/x-matroska":                                                          ".mkv",
	"video/webm":                                                                ".webm",
	"video/quicktime":                                                           ".mov",
	"video/x-msvideo":                                                           ".avi",
}

// ExtensionFor returns the extension registered for a media type, or "".
func ExtensionFor(contentType string) string {
	mt := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	return contentTypeExt[mt]
}

// OutputName picks the on-disk name: the host name when it already has an
// extension, otherwise the host name plus the content-type extension, otherwise
// the host name unchanged.
func OutputName(meta domain.FileMetadata) string {
	name := meta.DisplayName
	if name == "" {
		name = "file_" + meta.FileID
	}
	if filepath.Ext(name) != "" {
		return name
	}
	if ext := ExtensionFor(meta.ContentType); ext != "" {
		return name + ext
	}
	return name
}

// Destination places a file under dir/drive_<first 8 id chars>/. Files are
// not deduplicated: the same link twice, or two ids sharing a prefix and a
// name, map to the same path.
func Destination(dir string, meta domain.FileMetadata) string {
	prefix := meta.FileID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return filepath.Join(dir, "drive_"+prefix, OutputName(meta))
}
