// Package fssource retrieves assets from an fs.FS, such as an embed.FS holding
// a built application shell or os.DirFS over a dist directory.
package fssource

import (
	"context"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/unkn0wn-root/precache"
)

// Source maps "/" to "index.html" and "/docs/" to "docs/index.html".
// A query string does not take part in the file name.
type Source struct {
	fsys fs.FS
}

var _ precache.Source = Source{}

func New(fsys fs.FS) Source { return Source{fsys: fsys} }

func (s Source) Retrieve(ctx context.Context, p string) (precache.Asset, error) {
	if err := ctx.Err(); err != nil {
		return precache.Asset{}, err
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" || strings.HasSuffix(p, "/") {
		name = path.Join(name, "index.html")
	}

	body, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return precache.Asset{}, err
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	return precache.Asset{Body: body, ContentType: ct}, nil
}
