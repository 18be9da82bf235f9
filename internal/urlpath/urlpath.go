// Package urlpath renders container and object names into URL paths.
package urlpath

import (
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// Quote percent-encodes every byte of s except unreserved characters and '/'.
//
// url.PathEscape can't be used here: it escapes '/' and leaves sub-delimiters
// such as '&' and '+' alone, while the service expects the opposite.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldKeep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

// Join builds "/<account>/<container>[/<key>]" with container and key quoted independently.
// account is expected to be an already escaped path such as "/v1/MossoCloudFS_1234".
func Join(account, container, key string) string {
	p := strings.TrimSuffix(account, "/") + "/" + Quote(container)
	if key != "" {
		p += "/" + Quote(key)
	}
	return p
}

// Raw is the unescaped counterpart of Join, as used for signing.
func Raw(account, container, key string) string {
	p := strings.TrimSuffix(account, "/") + "/" + container
	if key != "" {
		p += "/" + key
	}
	return p
}

func shouldKeep(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~', c == '/':
		return true
	}
	return false
}
