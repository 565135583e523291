package ovo

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/Cyph1x/PowerContribution/pkg/provider"
)

// authPageConfig is the shape of the base64-encoded JSON blob the login page
// embeds in an inline script. Only the anti-CSRF tokens matter here.
type authPageConfig struct {
	ExtraParams struct {
		CSRF     string `json:"_csrf"`
		IntState string `json:"_intstate"`
	} `json:"extraParams"`
}

// extractAuthConfig locates the embedded configuration blob: every quoted
// string literal inside an inline script is tried as urlsafe base64, and the
// first one that decodes to JSON carrying both anti-CSRF tokens wins. The
// page format is not a contract, so failure is a ScrapeError rather than a
// parse crash.
func extractAuthConfig(page []byte) (csrf, intstate string, err error) {
	doc, parseErr := html.Parse(bytes.NewReader(page))
	if parseErr != nil {
		return "", "", &provider.ScrapeError{Provider: "ovo", Want: "parseable login page"}
	}

	for _, script := range scriptContents(doc) {
		for _, candidate := range strings.Split(script, `"`) {
			decoded, ok := decodeURLSafeBase64(candidate)
			if !ok {
				continue
			}
			var cfg authPageConfig
			if json.Unmarshal(decoded, &cfg) != nil {
				continue
			}
			if cfg.ExtraParams.CSRF != "" && cfg.ExtraParams.IntState != "" {
				return cfg.ExtraParams.CSRF, cfg.ExtraParams.IntState, nil
			}
		}
	}
	return "", "", &provider.ScrapeError{Provider: "ovo", Want: "embedded anti-CSRF configuration blob"}
}

// extractForm returns the action URL and all named input values of the
// first form on the page. The consent step replays these verbatim.
func extractForm(page []byte) (string, url.Values, error) {
	doc, parseErr := html.Parse(bytes.NewReader(page))
	if parseErr != nil {
		return "", nil, &provider.ScrapeError{Provider: "ovo", Want: "parseable consent page"}
	}

	form := findElement(doc, "form")
	if form == nil {
		return "", nil, &provider.ScrapeError{Provider: "ovo", Want: "consent form"}
	}

	action := attr(form, "action")
	if action == "" {
		return "", nil, &provider.ScrapeError{Provider: "ovo", Want: "consent form action"}
	}

	fields := url.Values{}
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			if name := attr(n, "name"); name != "" {
				fields.Set(name, attr(n, "value"))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(form)

	return action, fields, nil
}

func scriptContents(doc *html.Node) []string {
	var scripts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			var text strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					text.WriteString(c.Data)
				}
			}
			if text.Len() > 0 {
				scripts = append(scripts, text.String())
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return scripts
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// decodeURLSafeBase64 accepts both padded and unpadded urlsafe encodings.
func decodeURLSafeBase64(s string) ([]byte, bool) {
	if len(s) < 8 {
		return nil, false
	}
	if decoded, err := base64.URLEncoding.DecodeString(s); err == nil {
		return decoded, true
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return decoded, true
	}
	return nil, false
}
