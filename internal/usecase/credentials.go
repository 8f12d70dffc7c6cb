package usecase

import (
	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/pkg/utils"
)

// Credentials holds a site's basic auth. It is only handed out for URLs on
// the site's own host so third-party links never see it.
type Credentials struct {
	host string
	auth *entity.BasicAuth
}

// NewCredentials scopes auth to the host of site. It returns nil when there
// is nothing to send.
func NewCredentials(site string, auth *entity.BasicAuth) *Credentials {
	host := utils.Host(site)
	if auth == nil || auth.Username == "" || host == "" {
		return nil
	}
	return &Credentials{host: host, auth: auth}
}

// For returns the credentials to send with a request for rawURL, or nil.
func (c *Credentials) For(rawURL string) *entity.BasicAuth {
	if c == nil || utils.Host(rawURL) != c.host {
		return nil
	}
	return c.auth
}
