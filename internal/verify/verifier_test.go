package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospect-cli/internal/model"
)

func TestVerify_EmptyURL(t *testing.T) {
	v := New(time.Second)
	res := v.Verify(context.Background(), "  ")
	assert.Equal(t, model.WebsiteStatusNoWebsite, res.Status)
}

func TestVerify_ActiveSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>Welcome to Roast House Coffee</body></html>"))
	}))
	defer srv.Close()

	v := New(2 * time.Second)
	res := v.Verify(context.Background(), srv.URL)
	assert.Equal(t, model.WebsiteStatusActive, res.Status)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestVerify_MethodNotAllowedIsActive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	v := New(2 * time.Second)
	res := v.Verify(context.Background(), srv.URL)
	assert.Equal(t, model.WebsiteStatusActive, res.Status)
}

func TestVerify_NotFoundStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	v := New(2 * time.Second)
	res := v.Verify(context.Background(), srv.URL)
	assert.Equal(t, model.WebsiteStatusNotFound, res.Status)
}

func TestVerify_ParkingTwoIndicators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>This domain is for sale! Buy this domain today.</html>"))
	}))
	defer srv.Close()

	v := New(2 * time.Second)
	res := v.Verify(context.Background(), srv.URL)
	assert.Equal(t, model.WebsiteStatusParking, res.Status)
	assert.Len(t, res.Indicators, 2)
}

func TestVerify_SingleIndicatorIsActive(t *testing.T) {
	// A legitimate launch page mentioning one phrase must not be parked.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>Our new site is under construction. Call us at 206-555-0101!</html>"))
	}))
	defer srv.Close()

	v := New(2 * time.Second)
	res := v.Verify(context.Background(), srv.URL)
	assert.Equal(t, model.WebsiteStatusActive, res.Status)
}

func TestVerify_DNSFailure(t *testing.T) {
	v := New(2 * time.Second)
	res := v.Verify(context.Background(), "https://definitely-not-a-real-host.invalid")
	assert.Equal(t, model.WebsiteStatusNotFound, res.Status)
}

func TestVerify_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	v := New(50 * time.Millisecond)
	res := v.Verify(context.Background(), srv.URL)
	assert.Equal(t, model.WebsiteStatusTimeout, res.Status)
}

func TestHostParked(t *testing.T) {
	parked, _ := url.Parse("https://www.sedoparking.com/example.com")
	assert.True(t, hostParked(parked))

	sub, _ := url.Parse("https://landing.hugedomains.com/x")
	assert.True(t, hostParked(sub))

	normal, _ := url.Parse("https://acme.example/")
	assert.False(t, hostParked(normal))
}

func TestClassifyFetchErrorStrings(t *testing.T) {
	assert.Equal(t, model.WebsiteStatusSSLError, classifyFetchError(errString("x509: certificate signed by unknown authority")))
	assert.Equal(t, model.WebsiteStatusNotFound, classifyFetchError(errString("dial tcp: connection refused")))
	assert.Equal(t, model.WebsiteStatusTimeout, classifyFetchError(errString("context deadline exceeded")))
}

type errString string

func (e errString) Error() string { return string(e) }
