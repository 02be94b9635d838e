// file: internal/server/catalog_handlers.go
// version: 1.0.0
// guid: 3b6e9d12-7c4a-4f85-a1d0-58e2c9b7f4a3

package server

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/metadata"
)

type crumb struct {
	Name string
	URL  string
}

type listingPage struct {
	*catalog.Listing
	Crumbs []crumb
	Sorts  []catalog.SortMode
}

type playerPage struct {
	*catalog.PlayInfo
	Meta   metadata.Record
	Crumbs []crumb
}

type myListPage struct {
	Items []FavoriteItem
	IDs   string
}

// crumbs splits a relative directory into clickable breadcrumbs, root first.
func crumbs(rel string) []crumb {
	out := []crumb{{Name: "Home", URL: "/"}}
	if rel == "" {
		return out
	}
	var acc string
	for _, seg := range strings.Split(rel, "/") {
		acc = path.Join(acc, seg)
		out = append(out, crumb{Name: seg, URL: "/view/" + catalog.EscapePath(acc)})
	}
	return out
}

func (s *Server) viewDirectory(c *gin.Context) {
	rel := catalog.CleanRel(c.Param("subpath"))
	mode := catalog.ParseSortMode(c.Query("sort"))

	listing, err := s.library.List(rel, mode, c.Query("q"))
	if err != nil {
		RespondWithServiceError(c, "directory", rel, err)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, listing)
		return
	}
	c.HTML(http.StatusOK, "listing.html", listingPage{
		Listing: listing,
		Crumbs:  crumbs(listing.Path),
		Sorts:   []catalog.SortMode{catalog.SortByName, catalog.SortByDate, catalog.SortBySize},
	})
}

func (s *Server) playFile(c *gin.Context) {
	rel := catalog.CleanRel(c.Param("filepath"))
	info, err := s.library.Play(rel, requestBaseURL(c))
	if err != nil {
		RespondWithServiceError(c, "file", rel, err)
		return
	}

	dirAbs, err := s.library.Resolve(info.Dir)
	if err != nil {
		RespondWithServiceError(c, "file", rel, err)
		return
	}
	rec, err := s.meta.Resolve(c.Request.Context(), info.Name, dirAbs, false)
	if err != nil {
		RespondWithServiceError(c, "file", rel, err)
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"file": info, "metadata": rec})
		return
	}
	c.HTML(http.StatusOK, "player.html", playerPage{PlayInfo: info, Meta: rec, Crumbs: crumbs(info.Dir)})
}

func (s *Server) downloadFile(c *gin.Context) {
	rel := catalog.CleanRel(c.Param("filepath"))
	abs, info, err := s.library.Stat(rel)
	if err != nil {
		RespondWithServiceError(c, "file", rel, err)
		return
	}
	if info.IsDir() {
		RespondWithNotFound(c, "file", rel)
		return
	}

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".vtt":
		c.Header("Content-Type", "text/vtt; charset=utf-8")
	case ".srt":
		c.Header("Content-Type", "text/plain; charset=utf-8")
	}
	// http.ServeFile handles Range requests for seeking players
	c.File(abs)
}

func (s *Server) myList(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	entries := s.favorites.Lookup(ids)
	items := make([]FavoriteItem, 0, len(entries))
	for _, e := range entries {
		var rec metadata.Record
		dirAbs, err := s.library.Resolve(path.Dir(e.Path))
		if err == nil {
			rec, _ = s.meta.Resolve(c.Request.Context(), e.Name, dirAbs, e.IsDir)
		}
		items = append(items, newFavoriteItem(e, rec))
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"count": len(items), "items": items})
		return
	}
	c.HTML(http.StatusOK, "mylist.html", myListPage{Items: items, IDs: strings.Join(ids, ",")})
}

// requestBaseURL is the scheme and host the visitor used to reach us, so
// VLC links work from other devices on the network.
func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
