// Package tempurl signs time-limited object URLs that need no credentials.
package tempurl

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
)

// Query parameter names understood by the service.
const (
	SignatureParam = "temp_url_sig"
	ExpiresParam   = "temp_url_expires"
)

// Signer signs with the account's temp URL key.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer using the account's temp URL key.
func NewSigner(secret string) Signer {
	return Signer{key: []byte(secret)}
}

// Sign returns the lowercase hex HMAC-SHA1 of "<METHOD>\n<expires>\n<path>".
// path must be the unescaped request path, e.g. "/v1/AUTH_x/container/my file.txt".
func (s Signer) Sign(method string, expires int64, path string) string {
	mac := hmac.New(sha1.New, s.key)
	mac.Write([]byte(method + "\n" + strconv.FormatInt(expires, 10) + "\n" + path))
	return hex.EncodeToString(mac.Sum(nil))
}

// URL builds the final temp URL. The signature covers rawPath while the URL carries escapedPath.
func (s Signer) URL(method, endpoint, rawPath, escapedPath string, expires int64) (string, error) {
	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodPut {
		return "", apierror.InvalidArgument("temp URL method must be GET or PUT, got %q", method)
	}

	return fmt.Sprintf("%s%s?%s=%s&%s=%d",
		strings.TrimSuffix(endpoint, "/"), escapedPath,
		SignatureParam, s.Sign(method, expires, rawPath),
		ExpiresParam, expires,
	), nil
}
