// Package verify confirms that a candidate's claimed website is live, not a
// domain-parking page, and not broken.
package verify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// maxBodyBytes bounds how much of a response body is inspected for parking
// indicators.
const maxBodyBytes = 256 * 1024

// knownParkingHosts are registrar/parking-lot hosts. A final redirect landing
// on one of these is conclusive on its own.
var knownParkingHosts = []string{
	"sedoparking.com",
	"sedo.com",
	"parkingcrew.net",
	"hugedomains.com",
	"dan.com",
	"afternic.com",
	"bodis.com",
	"parklogic.com",
	"above.com",
	"undeveloped.com",
}

// parkingIndicators are textual signals of a parked or abandoned domain.
// At least two independent indicators are required before concluding
// parking_page, so a legitimate "coming soon" launch page with a single
// matching phrase stays classified as active.
var parkingIndicators = []string{
	"domain is for sale",
	"this domain may be for sale",
	"buy this domain",
	"purchase this domain",
	"domain parking",
	"parked free",
	"under construction",
	"website coming soon",
	"make an offer on this domain",
	"renew this domain",
}

// Result is the verifier's classification plus supporting detail.
type Result struct {
	Status     model.WebsiteStatus `json:"status"`
	FinalURL   string              `json:"final_url,omitempty"`
	StatusCode int                 `json:"status_code,omitempty"`
	Indicators []string            `json:"indicators,omitempty"`
}

// Verifier performs bounded-timeout website verification.
type Verifier struct {
	http *http.Client
}

// New creates a Verifier with the given fetch timeout.
func New(timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Verifier{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
		},
	}
}

// NewWithClient creates a Verifier using the given http.Client.
func NewWithClient(hc *http.Client) *Verifier {
	return &Verifier{http: hc}
}

// Verify classifies the website at rawURL. An empty URL is no_website. Fetch
// failures are classified by cause (DNS/connection, timeout, TLS); a live
// response is then inspected for parking signals.
func (v *Verifier) Verify(ctx context.Context, rawURL string) Result {
	if strings.TrimSpace(rawURL) == "" {
		return Result{Status: model.WebsiteStatusNoWebsite}
	}

	target, err := normalizeURL(rawURL)
	if err != nil {
		zap.L().Debug("verify: unparseable website url",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return Result{Status: model.WebsiteStatusNotFound}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Status: model.WebsiteStatusNotFound}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ProspectBot/1.0)")

	resp, err := v.http.Do(req)
	if err != nil {
		return Result{Status: classifyFetchError(err)}
	}
	defer resp.Body.Close() //nolint:errcheck

	finalURL := resp.Request.URL.String()
	result := Result{
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
	}

	// 405 means the server is alive, it just dislikes the method.
	alive := resp.StatusCode < 400 || resp.StatusCode == http.StatusMethodNotAllowed
	if !alive {
		result.Status = model.WebsiteStatusNotFound
		return result
	}

	if hostParked(resp.Request.URL) {
		result.Status = model.WebsiteStatusParking
		result.Indicators = []string{"parking_host:" + resp.Request.URL.Hostname()}
		return result
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	matched := matchIndicators(string(body))
	if len(matched) >= 2 {
		result.Status = model.WebsiteStatusParking
		result.Indicators = matched
		return result
	}

	result.Status = model.WebsiteStatusActive
	return result
}

// classifyFetchError distinguishes timeouts, TLS failures, and DNS/connection
// failures from each other.
func classifyFetchError(err error) model.WebsiteStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.WebsiteStatusTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.WebsiteStatusTimeout
	}

	var certErr *tls.CertificateVerificationError
	var hostErr x509.HostnameError
	var unknownAuth x509.UnknownAuthorityError
	var expiredErr x509.CertificateInvalidError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) ||
		errors.As(err, &unknownAuth) || errors.As(err, &expiredErr) {
		return model.WebsiteStatusSSLError
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.WebsiteStatusNotFound
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:") || strings.Contains(msg, "certificate"):
		return model.WebsiteStatusSSLError
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "connection refused"):
		return model.WebsiteStatusNotFound
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return model.WebsiteStatusTimeout
	default:
		return model.WebsiteStatusNotFound
	}
}

// hostParked reports whether the final redirect target is a known parking host.
func hostParked(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	for _, parked := range knownParkingHosts {
		if host == parked || strings.HasSuffix(host, "."+parked) {
			return true
		}
	}
	return false
}

// matchIndicators returns the distinct parking phrases found in the body.
func matchIndicators(body string) []string {
	lower := strings.ToLower(body)
	var matched []string
	for _, phrase := range parkingIndicators {
		if strings.Contains(lower, phrase) {
			matched = append(matched, phrase)
		}
	}
	return matched
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
