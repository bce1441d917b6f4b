package coordinator

import (
	"strings"

	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/entitystore"
)

// Endpoint classification is a fixed set of substring rules. Image and upload
// paths win over the /api/ rule so a media endpoint under /api/ still lands
// in the images partition.

var imagePathMarkers = []string{"/media", "/upload", "/images/", "/img/"}

var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".avif": {}, ".bmp": {},
}

var staticExts = map[string]struct{}{
	".js": {}, ".css": {}, ".html": {}, ".htm": {}, ".ico": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".svg": {}, ".map": {},
}

// TierFor maps an endpoint onto its cache partition.
func TierFor(endpoint string) string {
	path := pathOnly(endpoint)
	switch {
	case isImagePath(path):
		return config.TierImages
	case strings.Contains(path, "/api/"):
		return config.TierAPI
	case hasExt(path, staticExts):
		return config.TierStatic
	default:
		return config.TierData
	}
}

// entityRef describes how an endpoint maps onto the entity store: the
// collection it lists and, for detail endpoints, the record id.
type entityRef struct {
	collection string
	id         string
}

// entityRefFor recognizes entity-listing endpoints by path segment. The user
// profile always resolves to the single well-known record.
func entityRefFor(endpoint string) (entityRef, bool) {
	segs := strings.Split(strings.Trim(pathOnly(endpoint), "/"), "/")
	for i, seg := range segs {
		switch seg {
		case "products":
			return refAt(entitystore.Products, segs, i), true
		case "stores":
			return refAt(entitystore.Stores, segs, i), true
		case "user":
			return entityRef{collection: entitystore.UserData, id: entitystore.ProfileID}, true
		}
	}
	return entityRef{}, false
}

func refAt(collection string, segs []string, i int) entityRef {
	if i+1 < len(segs) && segs[i+1] != "" {
		return entityRef{collection: collection, id: segs[i+1]}
	}
	return entityRef{collection: collection}
}

func isImagePath(path string) bool {
	for _, marker := range imagePathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return hasExt(path, imageExts)
}

func hasExt(path string, exts map[string]struct{}) bool {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 || dot < strings.LastIndexByte(path, '/') {
		return false
	}
	_, found := exts[strings.ToLower(path[dot:])]
	return found
}

// pathOnly strips scheme, host and query so the substring rules see only the
// request path.
func pathOnly(endpoint string) string {
	s := endpoint
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		if j := strings.IndexByte(s, '/'); j >= 0 {
			s = s[j:]
		} else {
			return "/"
		}
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	return s
}
