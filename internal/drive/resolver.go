package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/olgkv/drivefetch/internal/domain"
	"github.com/olgkv/drivefetch/internal/ports"
)

const (
	DefaultBaseURL = "https://drive.google.com"

	// interstitial pages are small; anything bigger is not one.
	maxPageBytes = 2 << 20
)

type stage int

const (
	stageInitial stage = iota
	stageNeedsConfirmation
	stageConfirmed
)

func (s stage) String() string {
	switch s {
	case stageInitial:
		return "initial"
	case stageNeedsConfirmation:
		return "needs-confirmation"
	case stageConfirmed:
		return "confirmed"
	}
	return "unknown"
}

// outcome is the result of inspecting one response: either a stream, or a
// stageNeedsConfirmation page whose body has been consumed and whose
// follow-up request is confirmURL.
type outcome struct {
	next       stage
	stream     bool
	confirmURL string
}

// Resolution is an open file stream with its metadata. Callers must close Body.
type Resolution struct {
	Metadata domain.FileMetadata
	Body     io.ReadCloser
}

type Resolver struct {
	client    ports.HTTPClient
	baseURL   string
	userAgent string
	logger    *slog.Logger
}

func NewResolver(client ports.HTTPClient, baseURL, userAgent string, logger *slog.Logger) *Resolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		logger:    logger,
	}
}

func (r *Resolver) DownloadURL(fileID string) string {
	q := url.Values{}
	q.Set("id", fileID)
	q.Set("export", "download")
	return r.baseURL + "/uc?" + q.Encode()
}

// Resolve opens the download stream for fileID, passing through the
// confirmation interstitial when the host shows one.
func (r *Resolver) Resolve(ctx context.Context, fileID string) (*Resolution, error) {
	target := r.DownloadURL(fileID)
	st := stageInitial

	for {
		resp, err := r.fetch(ctx, target)
		if err != nil {
			return nil, err
		}

		out, err := inspect(resp, target)
		if err != nil {
			return nil, err
		}
		if out.stream {
			r.logger.Debug("stream resolved", "file_id", fileID, "stage", st.String())
			return newResolution(fileID, resp), nil
		}
		if st == stageConfirmed {
			return nil, domain.WrapError(domain.KindConfirmation, "interstitial returned after confirmation", domain.ErrNoConfirmToken)
		}

		r.logger.Debug("confirmation required", "file_id", fileID, "stage", out.next.String())
		target = out.confirmURL
		st = stageConfirmed
	}
}

func (r *Resolver) fetch(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, domain.WrapError(domain.KindNetwork, "build request", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.KindNetwork, "request failed", err)
	}
	return resp, nil
}

// inspect classifies a response as a direct stream or an interstitial page.
// Error and interstitial responses are closed here; stream responses stay open.
func inspect(resp *http.Response, target string) (outcome, error) {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		resp.Body.Close()
		return outcome{}, domain.WrapError(domain.KindNotFound, fmt.Sprintf("HTTP %d", resp.StatusCode), domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return outcome{}, domain.WrapError(domain.KindHTTP, "unexpected response", fmt.Errorf("status %d", resp.StatusCode))
	}

	if resp.Header.Get("Content-Disposition") != "" || mediaType(resp.Header.Get("Content-Type")) != "text/html" {
		return outcome{stream: true}, nil
	}

	defer resp.Body.Close()
	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return outcome{}, domain.WrapError(domain.KindNetwork, "read interstitial", err)
	}

	var requestURL *url.URL
	if resp.Request != nil {
		requestURL = resp.Request.URL
	} else if requestURL, err = url.Parse(target); err != nil {
		return outcome{}, domain.WrapError(domain.KindHTTP, "parse request URL", err)
	}

	next, err := confirmationURL(page, resp.Cookies(), requestURL)
	if err != nil {
		return outcome{}, err
	}
	return outcome{next: stageNeedsConfirmation, confirmURL: next}, nil
}

func newResolution(fileID string, resp *http.Response) *Resolution {
	name := SanitizeFilename(FilenameFromDisposition(resp.Header.Get("Content-Disposition")))
	if name == "" {
		name = "file_" + fileID
	}
	return &Resolution{
		Metadata: domain.FileMetadata{
			FileID:      fileID,
			DisplayName: name,
			ContentType: mediaType(resp.Header.Get("Content-Type")),
			ByteSize:    resp.ContentLength,
		},
		Body: resp.Body,
	}
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}
