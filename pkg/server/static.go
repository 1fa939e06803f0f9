package server

import (
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

const defaultAssetsPrefix = "/assets/"

// Cache-Control values for client assets.
const (
	cacheImmutable  = "public, max-age=31536000, immutable"
	cacheRevalidate = "public, max-age=3600, must-revalidate"
	cacheNone       = "no-store, no-cache, must-revalidate"
)

// assetPath maps a request path below prefix to a path inside the assets
// filesystem. It refuses anything that could leave the filesystem root:
// dot segments, backslashes, NUL bytes and doubled slashes.
func assetPath(prefix, urlPath string) (string, bool) {
	rel, ok := strings.CutPrefix(urlPath, prefix)
	if !ok || rel == "" {
		return "", false
	}
	if strings.IndexByte(rel, 0) != -1 || strings.Contains(rel, "\\") || strings.HasPrefix(rel, "/") {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}
	clean := path.Clean(rel)
	if !fs.ValidPath(clean) || clean == "." {
		return "", false
	}
	return clean, true
}

// serveAsset serves one client chunk from the configured assets.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	name, ok := assetPath(s.config.AssetsPrefix, r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	f, err := s.config.Assets.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	rs, ok := f.(io.ReadSeeker)
	if !ok {
		s.logger.Error("asset is not seekable", "name", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	switch {
	case s.config.AssetsNoCache:
		w.Header().Set("Cache-Control", cacheNone)
	case isFingerprinted(name):
		w.Header().Set("Cache-Control", cacheImmutable)
	default:
		w.Header().Set("Cache-Control", cacheRevalidate)
	}
	http.ServeContent(w, r, name, info.ModTime(), rs)
}

// isFingerprinted reports whether a file name carries a content hash, as
// bundlers emit: "chunk.a1b2c3d4.js" or "chunk-a1b2c3d4.js".
func isFingerprinted(name string) bool {
	base := path.Base(name)
	ext := path.Ext(base)
	if ext == "" {
		return false
	}
	stem := strings.TrimSuffix(base, ext)
	i := strings.LastIndexAny(stem, ".-")
	if i < 0 {
		return false
	}
	hash := stem[i+1:]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
