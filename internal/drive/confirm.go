package drive

import (
	"bytes"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/olgkv/drivefetch/internal/domain"
)

const warningCookiePrefix = "download_warning"

var confirmParamRe = regexp.MustCompile(`confirm=([0-9A-Za-z_-]+)`)

// confirmationURL builds the follow-up request for a virus-scan interstitial.
// Sources are tried in order: the download_warning cookie, the download form
// with its hidden inputs, then any confirm= value embedded in the page.
func confirmationURL(page []byte, cookies []*http.Cookie, requestURL *url.URL) (string, error) {
	for _, c := range cookies {
		if strings.HasPrefix(c.Name, warningCookiePrefix) && c.Value != "" {
			return withConfirm(requestURL, c.Value), nil
		}
	}

	doc, err := html.Parse(bytes.NewReader(page))
	if err == nil {
		if target, ok := formTarget(doc, requestURL); ok {
			return target, nil
		}
	}

	if m := confirmParamRe.FindSubmatch(page); m != nil {
		return withConfirm(requestURL, string(m[1])), nil
	}
	return "", domain.WrapError(domain.KindConfirmation, "interstitial page", domain.ErrNoConfirmToken)
}

func withConfirm(u *url.URL, token string) string {
	next := *u
	q := next.Query()
	q.Set("confirm", token)
	next.RawQuery = q.Encode()
	return next.String()
}

// formTarget looks for the download form: id="download-form", or any form
// carrying a confirm input.
func formTarget(doc *html.Node, base *url.URL) (string, bool) {
	var found string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "form" {
			inputs := formInputs(n)
			if attr(n, "id") == "download-form" || inputs.Get("confirm") != "" {
				if inputs.Get("confirm") == "" {
					return false
				}
				action, err := base.Parse(attr(n, "action"))
				if err != nil {
					return false
				}
				q := action.Query()
				for k, vs := range inputs {
					for _, v := range vs {
						q.Set(k, v)
					}
				}
				action.RawQuery = q.Encode()
				found = action.String()
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return found, found != ""
}

func formInputs(form *html.Node) url.Values {
	values := url.Values{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			if name := attr(n, "name"); name != "" {
				values.Set(name, attr(n, "value"))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)
	return values
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
