package requestinfo

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avct/uasurfer"
)

const chromeMac = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.6367.91 Safari/537.36"

func TestParseUA_ChromeOnMac(t *testing.T) {
	ua := parseUA(chromeMac, "en-US,en;q=0.9")
	if ua.Browser != "Chrome" {
		t.Fatalf("Browser = %q", ua.Browser)
	}
	if ua.OS != "macOS" {
		t.Fatalf("OS = %q", ua.OS)
	}
	if ua.Device != "Desktop" {
		t.Fatalf("Device = %q", ua.Device)
	}
	if ua.IsBot {
		t.Fatalf("Chrome flagged as bot")
	}
	if ua.PrimaryLang != "en" {
		t.Fatalf("PrimaryLang = %q", ua.PrimaryLang)
	}
}

func TestClientIP_Precedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(r).String(); got != "10.0.0.1" {
		t.Fatalf("remote addr: %s", got)
	}
	r.Header.Set("X-Real-Ip", "10.0.0.2")
	if got := clientIP(r).String(); got != "10.0.0.2" {
		t.Fatalf("x-real-ip: %s", got)
	}
	r.Header.Set("X-Forwarded-For", "garbage, 10.0.0.3, 10.0.0.4")
	if got := clientIP(r).String(); got != "10.0.0.3" {
		t.Fatalf("x-forwarded-for: %s", got)
	}
}

func TestEnrich_StoresInfoAndCollectReusesIt(t *testing.T) {
	var first, second *RequestInfo
	h := Enrich(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = FromContext(r.Context())
		second = Collect(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("User-Agent", chromeMac)
	h.ServeHTTP(httptest.NewRecorder(), r)

	if first == nil || first != second {
		t.Fatalf("Collect did not reuse the Enrich value")
	}
	if first.Geo.CountryISO != "" {
		t.Fatalf("geo lookup ran without a database")
	}
}

func TestOpenGeo_EmptyPathIsNoop(t *testing.T) {
	if err := OpenGeo(""); err != nil {
		t.Fatalf("OpenGeo: %v", err)
	}
	if err := OpenGeo("/does/not/exist.mmdb"); err == nil {
		t.Fatalf("expected error for missing database")
	}
	if err := CloseGeo(); err != nil {
		t.Fatalf("CloseGeo: %v", err)
	}
}

func TestTrimVersion(t *testing.T) {
	if v := trimVersion(uasurfer.Version{Major: 124, Minor: 0, Patch: 0}); v != "124" {
		t.Fatalf("trimVersion = %q", v)
	}
	if v := trimVersion(uasurfer.Version{Major: 0, Minor: 0, Patch: 0}); v != "0" {
		t.Fatalf("trimVersion zero = %q", v)
	}
	if v := trimVersion(uasurfer.Version{Major: 10, Minor: 15, Patch: 7}); v != "10.15.7" {
		t.Fatalf("trimVersion = %q", v)
	}
}
