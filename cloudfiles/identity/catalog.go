package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
)

// Service names of the Cloud Files catalog entries.
const (
	ObjectStoreService = "cloudFiles"
	CDNService         = "cloudFilesCDN"
)

// Token is an issued auth token together with the service catalog it came with.
type Token struct {
	ID       string    `json:"id"`
	Expires  time.Time `json:"expires"`
	TenantID string    `json:"tenant_id,omitempty"`
	Catalog  []Service `json:"catalog"`
}

// Valid reports whether the token can still be used at now, keeping margin before the expiry.
func (t Token) Valid(now time.Time, margin time.Duration) bool {
	return t.ID != "" && now.Add(margin).Before(t.Expires)
}

// Service is one service catalog entry.
type Service struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Endpoints []Endpoint `json:"endpoints"`
}

// Endpoint is a regional endpoint of a service.
type Endpoint struct {
	Region      string `json:"region"`
	TenantID    string `json:"tenantId,omitempty"`
	PublicURL   string `json:"publicURL"`
	InternalURL string `json:"internalURL,omitempty"`
}

// Endpoint finds the endpoint of service in region. Regions compare case-insensitively;
// an empty region matches a service with a single endpoint.
func (t Token) Endpoint(service, region string) (Endpoint, error) {
	for _, s := range t.Catalog {
		if s.Name != service {
			continue
		}
		if region == "" && len(s.Endpoints) == 1 {
			return s.Endpoints[0], nil
		}
		for _, e := range s.Endpoints {
			if strings.EqualFold(e.Region, region) {
				return e, nil
			}
		}
		return Endpoint{}, fmt.Errorf("%w: service %s has no endpoint in region %q", apierror.ErrNotFound, service, region)
	}
	return Endpoint{}, fmt.Errorf("%w: service %s not in catalog", apierror.ErrNotFound, service)
}
