package library

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const defaultFetchTimeout = 60 * time.Second

// Fetcher renders a web page in headless Chrome and captures its readable
// text as a library document, so online papers and articles can enter the
// workspace without manual copying.
type Fetcher struct {
	library *Library
	timeout time.Duration
	logger  *slog.Logger
}

func NewFetcher(lib *Library, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{library: lib, timeout: timeout, logger: logger}
}

// Fetch navigates to pageURL, extracts title and body text and stores the
// result as a .txt paper. Returns the path of the new document.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("fetch: invalid url %q", pageURL)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, f.timeout)
	defer timeoutCancel()

	var title, text string
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Title(&title),
		chromedp.Evaluate(`
			(function() {
				var body = document.body;
				if (!body) return '';
				return body.innerText || body.textContent || '';
			})()
		`, &text),
	)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("fetch %s: page has no readable text", pageURL)
	}

	doc := fmt.Sprintf("Title: %s\nSource: %s\nRetrieved: %s\n\n%s\n",
		strings.TrimSpace(title), pageURL, time.Now().Format("2006-01-02"), text)

	path, err := f.library.Add(fetchFilename(title, parsed), []byte(doc))
	if err != nil {
		return "", err
	}
	f.logger.Info("page fetched", "url", pageURL, "file", path, "chars", len(text))
	return path, nil
}

// fetchFilename derives a document name from the page title, falling back
// to the URL host and path.
func fetchFilename(title string, u *url.URL) string {
	name := strings.TrimSpace(title)
	if name == "" {
		name = u.Host + strings.ReplaceAll(u.Path, "/", "_")
	}
	name = strings.ToLower(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_', r == '.':
			return '_'
		default:
			return -1
		}
	}, name)
	name = strings.Trim(name, "_")
	if len(name) > 80 {
		name = name[:80]
	}
	if name == "" {
		name = "page"
	}
	return name + ".txt"
}
