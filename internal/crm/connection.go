// ABOUTME: Parses Dataverse-style connection strings ("AuthType=...;Url=...;ClientId=...").
// ABOUTME: Keys are case-insensitive; values may contain '='.

package crm

import (
	"fmt"
	"net/url"
	"strings"
)

// Supported authentication types.
const (
	AuthClientSecret = "ClientSecret"
	AuthToken        = "Token"
)

const defaultAuthorityHost = "https://login.microsoftonline.com"

// ConnectionString holds the parsed parts of a connection string.
type ConnectionString struct {
	AuthType     string
	URL          string
	ClientID     string
	ClientSecret string
	TenantID     string
	Authority    string
	Token        string
}

// ParseConnectionString parses a semicolon-separated Key=Value connection string.
func ParseConnectionString(s string) (ConnectionString, error) {
	var cs ConnectionString
	if strings.TrimSpace(s) == "" {
		return cs, fmt.Errorf("connection string is empty")
	}

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return cs, fmt.Errorf("connection string: malformed segment %q", part)
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "authtype":
			cs.AuthType = value
		case "url", "serviceuri", "service uri":
			cs.URL = strings.TrimRight(value, "/")
		case "clientid", "appid":
			cs.ClientID = value
		case "clientsecret", "secret":
			cs.ClientSecret = value
		case "tenantid", "tenant":
			cs.TenantID = value
		case "authority":
			cs.Authority = strings.TrimRight(value, "/")
		case "token", "accesstoken":
			cs.Token = value
		}
	}

	if cs.URL == "" {
		return cs, fmt.Errorf("connection string: Url is required")
	}
	u, err := url.Parse(cs.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return cs, fmt.Errorf("connection string: invalid Url %q", cs.URL)
	}

	if cs.AuthType == "" {
		if cs.Token != "" {
			cs.AuthType = AuthToken
		} else {
			cs.AuthType = AuthClientSecret
		}
	}

	switch {
	case strings.EqualFold(cs.AuthType, AuthClientSecret):
		cs.AuthType = AuthClientSecret
		if cs.ClientID == "" || cs.ClientSecret == "" {
			return cs, fmt.Errorf("connection string: ClientSecret auth requires ClientId and ClientSecret")
		}
	case strings.EqualFold(cs.AuthType, AuthToken):
		cs.AuthType = AuthToken
		if cs.Token == "" {
			return cs, fmt.Errorf("connection string: Token auth requires Token")
		}
	default:
		return cs, fmt.Errorf("connection string: unsupported AuthType %q", cs.AuthType)
	}

	return cs, nil
}

// NeedsAuthority reports whether the OAuth2 authority must be discovered from
// the organization because the connection string names no tenant.
func (cs ConnectionString) NeedsAuthority() bool {
	return cs.AuthType == AuthClientSecret && cs.TenantID == "" && cs.Authority == ""
}

// TokenURL returns the OAuth2 token endpoint for ClientSecret auth.
func (cs ConnectionString) TokenURL() string {
	authority := cs.Authority
	if authority == "" {
		authority = defaultAuthorityHost + "/" + cs.TenantID
	}
	return authority + "/oauth2/v2.0/token"
}

// Redacted returns the connection string with secrets masked, for diagnostics.
func (cs ConnectionString) Redacted() string {
	parts := []string{"AuthType=" + cs.AuthType, "Url=" + cs.URL}
	if cs.ClientID != "" {
		parts = append(parts, "ClientId="+cs.ClientID)
	}
	if cs.TenantID != "" {
		parts = append(parts, "TenantId="+cs.TenantID)
	}
	if cs.Authority != "" {
		parts = append(parts, "Authority="+cs.Authority)
	}
	if cs.ClientSecret != "" {
		parts = append(parts, "ClientSecret=***")
	}
	if cs.Token != "" {
		parts = append(parts, "Token=***")
	}
	return strings.Join(parts, ";")
}

// AuthorityFromChallenge extracts the authority (scheme, host and tenant) from a
// WWW-Authenticate Bearer challenge such as
// `Bearer authorization_uri=https://login.microsoftonline.com/<tenant>/oauth2/authorize, resource_id=...`.
func AuthorityFromChallenge(header string) (string, error) {
	scheme, params, _ := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("authority discovery: no Bearer challenge in %q", header)
	}

	var uri string
	for _, param := range strings.Split(params, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "authorization_uri") {
			uri = strings.Trim(strings.TrimSpace(value), `"`)
			break
		}
	}
	if uri == "" {
		return "", fmt.Errorf("authority discovery: challenge has no authorization_uri")
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("authority discovery: invalid authorization_uri %q", uri)
	}
	tenant, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if tenant == "" {
		return "", fmt.Errorf("authority discovery: authorization_uri %q names no tenant", uri)
	}
	return u.Scheme + "://" + u.Host + "/" + tenant, nil
}
