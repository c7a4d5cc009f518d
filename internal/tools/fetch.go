package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"

	"github.com/kalambet/ragent/internal/capability"
)

const fetchUserAgent = "ragent/1.0 (+https://github.com/kalambet/ragent)"

// FetchTool performs HTTP GET requests. HTML pages are reduced to their
// visible text. Responses are cached by URL and requests are rate limited.
type FetchTool struct {
	client    *http.Client
	maxOutput int
	cache     *lru.Cache[string, string]
	limiter   *rate.Limiter
}

// NewFetchTool creates the fetch capability from opts.
func NewFetchTool(opts Options) (*FetchTool, error) {
	opts = opts.withDefaults()
	cache, err := lru.New[string, string](opts.FetchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating fetch cache: %w", err)
	}

	var limiter *rate.Limiter
	if opts.FetchRate > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.FetchRate)), opts.FetchRate)
	}
	return &FetchTool{
		client:    opts.HTTPClient,
		maxOutput: opts.MaxOutput,
		cache:     cache,
		limiter:   limiter,
	}, nil
}

func (t *FetchTool) Name() string   { return "safe_curl_tool" }
func (t *FetchTool) Callback() bool { return true }

func (t *FetchTool) Definition() json.RawMessage {
	return capability.Define(t.Name(),
		"Performs a safe HTTP GET request to the specified URL and returns the response body. HTML pages are returned as plain text. Use this tool to fetch data from web APIs or websites.",
		json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"The URL to fetch data from"}},"required":["url"]}`))
}

func (t *FetchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		URL string `json:"url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return invalidArgs(err), nil
	}
	if in.URL == "" {
		return "url is required", nil
	}

	u, err := url.Parse(in.URL)
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err), nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "only http and https URLs are supported", nil
	}
	if u.Host == "" {
		return "missing hostname in URL", nil
	}

	key := u.String()
	if cached, ok := t.cache.Get(key); ok {
		return cached, nil
	}
	if t.limiter != nil && !t.limiter.Allow() {
		return "fetch rate limit exceeded, try again later", nil
	}

	body, err := t.fetch(ctx, key)
	if err != nil {
		return fmt.Sprintf("failed to fetch URL: %v", err), nil
	}
	t.cache.Add(key, body)
	return body, nil
}

func (t *FetchTool) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/json,text/plain;q=0.9,*/*;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %s", resp.Status)
	}

	// HTML markup is much larger than its text, so read extra before extracting.
	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxOutput)*4))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
		text, err := htmlText(strings.NewReader(string(data)))
		if err != nil {
			return "", fmt.Errorf("parsing HTML: %w", err)
		}
		return truncate(text, t.maxOutput), nil
	}
	return truncate(string(data), t.maxOutput), nil
}

// htmlText returns the visible text of an HTML document, one block per line.
func htmlText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Head, atom.Svg, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteByte('\n')
			}
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String()), nil
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3,
		atom.H4, atom.H5, atom.H6, atom.Pre, atom.Blockquote, atom.Section,
		atom.Article, atom.Header, atom.Footer, atom.Table, atom.Ul, atom.Ol:
		return true
	}
	return false
}
