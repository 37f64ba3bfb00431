package shared

import (
	"bytes"
	"context"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const serviceNamePortalSession = "PortalSession"

// SessionConfig holds the settings for the shared portal session.
type SessionConfig struct {
	BaseURL         string        // Fixed portal endpoint, GET and POST alike
	Timeout         time.Duration // Per-request timeout
	PolitenessDelay time.Duration // Minimum delay between outbound requests
}

// PortalSession wraps the single resty client used for every portal request.
// The client carries the cookie jar and connection pool; it holds no
// per-search state, so concurrent detail fetches may share it freely.
type PortalSession struct {
	client  *resty.Client
	baseURL string
	limiter *PortalRateLimiter
}

// NewPortalSession creates a portal session with a fresh cookie jar and the
// browser-like header set the portal expects on every request.
func NewPortalSession(cfg SessionConfig) (*PortalSession, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, NewServiceError(ErrorCategoryConfiguration, "INVALID_BASE_URL",
			"invalid portal base URL: "+cfg.BaseURL, serviceNamePortalSession, "NewPortalSession", false, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, NewServiceError(ErrorCategoryConfiguration, "COOKIE_JAR_INIT",
			"failed to initialize cookie jar", serviceNamePortalSession, "NewPortalSession", false, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(timeout)
	client.SetHeaders(map[string]string{
		"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Accept":  "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Referer": cfg.BaseURL,
		"Origin":  parsed.Scheme + "://" + parsed.Host,
	})

	logrus.WithFields(logrus.Fields{
		"component": serviceNamePortalSession,
		"base_url":  cfg.BaseURL,
		"timeout":   timeout,
	}).Debug("Created portal session")

	return &PortalSession{
		client:  client,
		baseURL: cfg.BaseURL,
		limiter: NewPortalRateLimiter(cfg.PolitenessDelay),
	}, nil
}

// BaseURL returns the fixed portal endpoint this session talks to.
func (s *PortalSession) BaseURL() string {
	return s.baseURL
}

// RequestCount returns how many portal requests this session has issued.
func (s *PortalSession) RequestCount() int64 {
	return s.limiter.GetRequestCount()
}

// GetPage issues a GET against the portal endpoint and parses the response.
func (s *PortalSession) GetPage(ctx context.Context) (*goquery.Document, error) {
	s.limiter.EnforceRateLimit()

	resp, err := s.client.R().SetContext(ctx).Get(s.baseURL)
	return s.parseResponse(resp, err, "GetPage")
}

// PostForm submits the given form fields to the portal endpoint and parses
// the response.
func (s *PortalSession) PostForm(ctx context.Context, fields map[string]string) (*goquery.Document, error) {
	s.limiter.EnforceRateLimit()

	resp, err := s.client.R().SetContext(ctx).SetFormData(fields).Post(s.baseURL)
	return s.parseResponse(resp, err, "PostForm")
}

func (s *PortalSession) parseResponse(resp *resty.Response, err error, operation string) (*goquery.Document, error) {
	if err != nil {
		return nil, ClassifyTransportError(err, serviceNamePortalSession, operation)
	}
	if resp.IsError() {
		return nil, NewServiceError(ErrorCategoryProtocol, "PORTAL_BAD_STATUS",
			"portal returned HTTP "+resp.Status(), serviceNamePortalSession, operation, false, nil)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, NewServiceError(ErrorCategoryParsing, "HTML_PARSE_FAILED",
			"failed to parse portal response", serviceNamePortalSession, operation, false, err)
	}
	return doc, nil
}

var (
	sharedSessionMutex sync.Mutex
	sharedSession      *PortalSession
)

// SharedSession returns the process-wide portal session, creating it on
// first use. The session is reused for connection and cookie efficiency
// only; it carries no per-search state.
func SharedSession(cfg SessionConfig) (*PortalSession, error) {
	sharedSessionMutex.Lock()
	defer sharedSessionMutex.Unlock()

	if sharedSession == nil {
		session, err := NewPortalSession(cfg)
		if err != nil {
			return nil, err
		}
		sharedSession = session
	}
	return sharedSession, nil
}
