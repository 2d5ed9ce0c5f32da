package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"storefront"`
	ClientSecret string `env:"CLIENT_SECRET" envDefault:"storefront"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`

	// UserIDClaim and EmailClaim are JMESPath expressions evaluated against
	// verified ID-token claims, for providers with non-standard claim layouts.
	UserIDClaim string `env:"USER_ID_CLAIM" envDefault:"sub"`
	EmailClaim  string `env:"EMAIL_CLAIM"   envDefault:"email"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID   string `env:"USER_ID"  envDefault:"dev-user"`
	Email    string `env:"EMAIL"    envDefault:"dev@example.com"`
	Password string `env:"PASSWORD" envDefault:""` // empty accepts any non-empty password
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}
