package dispatcher

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/yanizio/gate/internal/scope"
)

// Request attribute keys set by Prepare and WrapRequest.
const (
	EncodingKey  = "gate.encoding"
	LocaleKey    = "gate.locale"
	MultipartKey = "gate.multipart"
)

// WrapError reports a request that could not be wrapped, usually a
// malformed multipart Content-Type.  It maps to 400.
type WrapError struct {
	ContentType string
	Err         error
}

func (e *WrapError) Error() string {
	return fmt.Sprintf("dispatcher: wrap request (%s): %v", e.ContentType, e.Err)
}

func (e *WrapError) Unwrap() error { return e.Err }

var errNoBoundary = errors.New("multipart content type without boundary")

// Prepare negotiates the request encoding and locale, records both as
// request attributes, and sets Content-Language on w.
func (d *Dispatcher) Prepare(w http.ResponseWriter, r *http.Request) {
	s := d.current()
	sc := scope.FromContext(r.Context())

	encoding := s.encoding
	if _, params, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil {
		if cs := params["charset"]; cs != "" {
			encoding = cs
		}
	}

	tag := language.Und
	tags, _, _ := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	switch {
	case s.matcher != nil:
		_, idx, _ := s.matcher.Match(tags...)
		tag = s.supported[idx]
	case len(tags) > 0:
		tag = tags[0]
	}

	if sc != nil {
		sc.SetAttribute(EncodingKey, encoding)
		sc.SetAttribute(LocaleKey, tag)
	}
	if tag != language.Und {
		w.Header().Set("Content-Language", tag.String())
	}
}

// Locale returns the tag Prepare negotiated for r, or language.Und.
func Locale(r *http.Request) language.Tag {
	if sc := scope.FromContext(r.Context()); sc != nil {
		if v, ok := sc.Attribute(LocaleKey); ok {
			if t, ok := v.(language.Tag); ok {
				return t
			}
		}
	}
	return language.Und
}

// Encoding returns the encoding Prepare chose for r, or "".
func Encoding(r *http.Request) string {
	if sc := scope.FromContext(r.Context()); sc != nil {
		if v, ok := sc.Attribute(EncodingKey); ok {
			s, _ := v.(string)
			return s
		}
	}
	return ""
}

/*──────────────────────────── multipart ───────────────────────────────────*/

// MultipartRequest parses the body of a multipart request on first use.
type MultipartRequest struct {
	r         *http.Request
	maxMemory int64

	once sync.Once
	err  error
}

// Form parses the body once and returns the result.
func (m *MultipartRequest) Form() (*multipart.Form, error) {
	m.once.Do(func() {
		m.err = m.r.ParseMultipartForm(m.maxMemory)
	})
	if m.err != nil {
		return nil, m.err
	}
	return m.r.MultipartForm, nil
}

// Release removes any temporary files the parse created.
func (m *MultipartRequest) Release() error {
	if m.r.MultipartForm == nil {
		return nil
	}
	return m.r.MultipartForm.RemoveAll()
}

// WrapRequest prepares r for multipart access.  Calling it again for the
// same request is a no-op.  Non-multipart requests pass unchanged.
func (d *Dispatcher) WrapRequest(r *http.Request) (*http.Request, error) {
	sc := scope.FromContext(r.Context())
	if sc != nil {
		if _, ok := sc.Attribute(MultipartKey); ok {
			return r, nil
		}
	}

	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "multipart/") {
		return r, nil
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return r, &WrapError{ContentType: ct, Err: err}
	}
	if params["boundary"] == "" {
		return r, &WrapError{ContentType: ct, Err: errNoBoundary}
	}

	mr := &MultipartRequest{r: r, maxMemory: d.current().maxMemory}
	if sc != nil {
		sc.SetAttribute(MultipartKey, mr)
	}
	return r, nil
}

// Multipart returns the wrapper WrapRequest stored for r, or nil.
func Multipart(r *http.Request) *MultipartRequest {
	sc := scope.FromContext(r.Context())
	if sc == nil {
		return nil
	}
	v, _ := sc.Attribute(MultipartKey)
	mr, _ := v.(*MultipartRequest)
	return mr
}

// ReleaseRequest frees per-request resources held on sc.  The filter calls
// it once the outermost cleanup runs.
func ReleaseRequest(sc *scope.Scope) error {
	v, ok := sc.Attribute(MultipartKey)
	if !ok {
		return nil
	}
	sc.RemoveAttribute(MultipartKey)
	if mr, _ := v.(*MultipartRequest); mr != nil {
		return mr.Release()
	}
	return nil
}
