//
//  internal/requestinfo/requestinfo.go
//
//  Lightweight types and helpers that collect per-request metadata
//  (user-agent fingerprint, IP + geolocation, URL, and timestamp).
//  These structs are inert.  They contain no pointers to database
//  handles or large buffers, so they are safe to log or JSON-encode.
//
//  The dispatcher seeds every fresh action context with one of these,
//  either the value Enrich stored or one collected on the spot.
//
//  Dependencies
//  • github.com/avct/uasurfer          (UA parsing)
//  • github.com/oschwald/geoip2-golang (MaxMind lookup)
//

package requestinfo

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"
)

//
//  -----------------------------
//  Struct definitions
//  -----------------------------
//

// UA holds the parsed user-agent properties.
type UA struct {
	Raw         string `json:"raw"`
	Browser     string `json:"browser"`    // "Chrome", "Firefox", "Safari", etc.
	Version     string `json:"version"`    // "124.0.6367"
	OS          string `json:"os"`         // "macOS", "Windows", "Android", "iOS", etc.
	OSVersion   string `json:"os_version"` // "14.5", "11", "10.0"
	Device      string `json:"device"`     // "Desktop", "Phone", "Tablet", "TV", ...
	Platform    string `json:"platform"`   // "Mac", "Windows", "Linux", "iPad", ...
	IsBot       bool   `json:"is_bot"`
	PrimaryLang string `json:"primary_lang"` // first tag from Accept-Language
}

// Geo holds IP-based geolocation hints.  Best-effort; empty on no match.
type Geo struct {
	IP         net.IP `json:"ip"`
	CountryISO string `json:"country_iso"`
	City       string `json:"city"`
}

// RequestInfo is stored in the action context under "gate.requestInfo".
type RequestInfo struct {
	UA        UA        `json:"ua"`
	Geo       Geo       `json:"geo"`
	URL       *url.URL  `json:"-"` // pointer copy, read-only
	Timestamp time.Time `json:"timestamp"`
}

//
//  -----------------------------
//  Package-level state
//  -----------------------------
//

// geoReader is a MaxMind handle shared by every request.  Reads are safe
// for concurrent use.  Nil disables geo lookups.
var geoReader atomic.Pointer[geoip2.Reader]

// OpenGeo opens the GeoLite2-City database at path.  An empty path leaves
// lookups disabled.
func OpenGeo(path string) error {
	if path == "" {
		return nil
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return err
	}
	if old := geoReader.Swap(r); old != nil {
		_ = old.Close()
	}
	return nil
}

// CloseGeo releases the database opened by OpenGeo.
func CloseGeo() error {
	if r := geoReader.Swap(nil); r != nil {
		return r.Close()
	}
	return nil
}

//
//  -----------------------------
//  Public helpers
//  -----------------------------
//

type ctxKey struct{} // unexported, collision-proof

// FromContext returns the pointer previously stored by Enrich, or nil.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

// Collect builds a RequestInfo for r.  It reuses the Enrich value when the
// middleware ran.
func Collect(r *http.Request) *RequestInfo {
	if ri := FromContext(r.Context()); ri != nil {
		return ri
	}
	return &RequestInfo{
		UA:        parseUA(r.UserAgent(), r.Header.Get("Accept-Language")),
		Geo:       lookupGeo(clientIP(r)),
		URL:       r.URL,
		Timestamp: time.Now().UTC(),
	}
}

//
//  -----------------------------
//  Internal helpers
//  -----------------------------
//

// parseUA converts a raw header into our UA struct using uasurfer.
func parseUA(uaHeader, acceptLang string) UA {
	u := uasurfer.Parse(uaHeader)

	osName := strings.TrimPrefix(u.OS.Name.String(), "OS")
	if osName == "MacOSX" {
		osName = "macOS"
	}

	return UA{
		Raw:         uaHeader,
		Browser:     strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version:     trimVersion(u.Browser.Version),
		OS:          osName,
		OSVersion:   trimVersion(u.OS.Version),
		Device:      deviceTypeToString(u.DeviceType),
		Platform:    strings.TrimPrefix(u.OS.Platform.String(), "Platform"),
		IsBot:       u.IsBot(),
		PrimaryLang: primaryLang(acceptLang),
	}
}

// trimVersion builds "major.minor.patch" and removes trailing ".0".
func trimVersion(v uasurfer.Version) string {
	out := strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor) + "." + strconv.Itoa(v.Patch)
	for strings.HasSuffix(out, ".0") {
		out = strings.TrimSuffix(out, ".0")
	}
	if out == "" {
		return "0"
	}
	return out
}

// deviceTypeToString maps uasurfer.DeviceType to a user-friendly string.
func deviceTypeToString(dt uasurfer.DeviceType) string {
	switch dt {
	case uasurfer.DeviceComputer:
		return "Desktop"
	case uasurfer.DevicePhone:
		return "Phone"
	case uasurfer.DeviceTablet:
		return "Tablet"
	case uasurfer.DeviceConsole:
		return "Console"
	case uasurfer.DeviceWearable:
		return "Wearable"
	case uasurfer.DeviceTV:
		return "TV"
	default:
		return "Unknown"
	}
}

// primaryLang extracts the first language subtag before any ";q=" rule.
func primaryLang(al string) string {
	if al == "" {
		return ""
	}
	tag, _, _ := strings.Cut(al, ",")
	tag, _, _ = strings.Cut(strings.TrimSpace(tag), ";")
	if i := strings.IndexByte(tag, '-'); i != -1 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// lookupGeo returns best-effort Geo data using the shared reader.
func lookupGeo(ip net.IP) Geo {
	r := geoReader.Load()
	if r == nil || ip == nil {
		return Geo{IP: ip}
	}
	rec, err := r.City(ip)
	if err != nil {
		return Geo{IP: ip}
	}
	return Geo{
		IP:         ip,
		CountryISO: rec.Country.IsoCode,
		City:       rec.City.Names["en"],
	}
}
