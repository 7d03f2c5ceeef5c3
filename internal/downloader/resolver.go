package downloader

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var invalidFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

const fallbackName = "downloaded.pdf"

// Resolver maps URLs to collision-free output paths inside a single
// directory. Reservation and filesystem probing happen in one critical
// section so two workers can never claim the same name.
type Resolver struct {
	mu       sync.Mutex
	outDir   string
	ext      string
	reserved map[string]struct{}
}

// NewResolver returns a resolver rooted at outDir, forcing ext (e.g.
// ".pdf") on names that carry no extension.
func NewResolver(outDir, ext string) *Resolver {
	return &Resolver{
		outDir:   outDir,
		ext:      ext,
		reserved: make(map[string]struct{}),
	}
}

// BaseName derives the sanitized candidate filename for a URL from its
// final path segment. Characters outside [A-Za-z0-9._-] collapse to "_".
func (r *Resolver) BaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallbackName
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return fallbackName
	}
	base = invalidFilenameChars.ReplaceAllString(strings.TrimSpace(base), "_")
	if base == "" {
		return fallbackName
	}
	if !strings.Contains(base, ".") {
		base += r.ext
	}
	return base
}

// Reserve claims a unique output path for the candidate name. If the name
// is already reserved in this run or present on disk, it probes stem-2,
// stem-3, ... until a free name is found. The returned path is final; the
// caller owns it for the remainder of the run.
func (r *Resolver) Reserve(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.free(name) {
		r.reserved[name] = struct{}{}
		return filepath.Join(r.outDir, name)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for idx := 2; ; idx++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, idx, ext)
		if r.free(candidate) {
			r.reserved[candidate] = struct{}{}
			return filepath.Join(r.outDir, candidate)
		}
	}
}

// Exists reports whether the base destination for the name is already on
// disk, without reserving anything. Used by the resume/skip path.
func (r *Resolver) Exists(name string) (string, bool) {
	dest := filepath.Join(r.outDir, name)
	if _, err := os.Stat(dest); err == nil {
		return dest, true
	}
	return dest, false
}

func (r *Resolver) free(name string) bool {
	if _, ok := r.reserved[name]; ok {
		return false
	}
	if _, err := os.Stat(filepath.Join(r.outDir, name)); err == nil {
		return false
	}
	return true
}
