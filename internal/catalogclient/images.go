package catalogclient

import "strings"

// placeholderImage is served when a book has no cover reference.
const placeholderImage = "/placeholder.png"

// mediaPrefix is where the backend stores bare image file names.
const mediaPrefix = "/media/book_images/"

// ResolveImageURL turns an image reference from the catalog backend into an
// absolute URL. Absolute URLs pass through unchanged, rooted paths are joined
// to the backend host, bare file names get the media prefix, and an empty
// reference yields the placeholder.
func ResolveImageURL(baseURL, ref string) string {
	if ref == "" {
		return placeholderImage
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	host := strings.TrimSuffix(baseURL, "/")
	if strings.HasPrefix(ref, "/") {
		return host + ref
	}
	return host + mediaPrefix + ref
}
