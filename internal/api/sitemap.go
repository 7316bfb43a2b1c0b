package api

import (
	"net/http"

	"github.com/JakeFAU/smartlink-preview/internal/sitemap"
)

func (s *Server) sitemapXML(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Sitemap.Cached(r.Context())
	if err != nil {
		s.writeFailure(w, r, "sitemap build failed", err)
		return
	}
	w.Header().Set("Cache-Control", sitemapCacheCtrl)
	if notModified(w, r, doc, sitemapCacheCtrl) {
		return
	}
	w.Header().Set("Content-Type", sitemap.ContentType)
	_, _ = w.Write(doc)
}

func (s *Server) robotsTXT(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", sitemapCacheCtrl)
	_, _ = w.Write(sitemap.Robots(s.cfg.Site.Origin))
}
