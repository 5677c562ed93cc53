// internal/static/loader.go
//
// Static content loader.
//
// Context
// -------
// Requests whose path starts with the configured prefix (default
// "/static/") are served from a directory on disk.  The filter asks
// CanHandle first, then Serve.  A path under the prefix that does not
// resolve to a regular file answers 404; it never falls through to the
// action pipeline.
//
// Notes
// -----
//   • http.Dir rejects ".." segments, so the directory is a hard jail.
//   • Directory listings are never produced.
//   • Oxford commas, two spaces after periods.

package static

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/gate/internal/logger"
)

// Defaults used when the init parameters are unset.
const (
	DefaultPrefix = "/static/"
	DefaultDir    = "public"
)

// Loader serves files below one URL prefix.
type Loader struct {
	prefix string
	root   http.FileSystem
	log    *zap.SugaredLogger

	// CacheControl is sent with every file; empty sends nothing.
	CacheControl string
}

// NewLoader returns a loader serving dir under prefix.  An empty dir
// disables the loader.
func NewLoader(prefix, dir string, log *zap.SugaredLogger) *Loader {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	l := &Loader{prefix: prefix, log: logger.OrGlobal(log), CacheControl: "public, max-age=3600"}
	if dir != "" {
		l.root = http.Dir(dir)
	}
	return l
}

// Prefix returns the normalised URL prefix.
func (l *Loader) Prefix() string { return l.prefix }

// CanHandle reports whether path belongs to the static namespace.
func (l *Loader) CanHandle(p string) bool {
	return l.root != nil && strings.HasPrefix(p, l.prefix)
}

// Serve writes the resource named by p (a path CanHandle accepted).
func (l *Loader) Serve(w http.ResponseWriter, r *http.Request, p string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + strings.TrimPrefix(p, l.prefix))
	f, err := l.root.Open(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.log.Warnw("static open failed", "path", p, "err", err)
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}
	if l.CacheControl != "" {
		w.Header().Set("Cache-Control", l.CacheControl)
	}
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}
