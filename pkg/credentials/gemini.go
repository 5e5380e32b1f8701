// Package credentials converts Gemini CLI OAuth credentials into the token
// storage format read by CLIProxyAPI. Both tools use the same OAuth client,
// so the refresh token carries over unchanged.
package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// UniverseDomain is the Google API domain the Gemini CLI client targets.
const UniverseDomain = "googleapis.com"

const expiryLayout = "2006-01-02T15:04:05.000Z"

// TokenURI is the Google OAuth token endpoint used to refresh the token.
var TokenURI = google.Endpoint.TokenURL

// Scopes granted to the Gemini CLI client.
var Scopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// GeminiCreds is the subset of ~/.gemini/oauth_creds.json we read.
type GeminiCreds struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiryDate   int64  `json:"expiry_date"` // unix milliseconds
}

// Token returns the credentials as an oauth2 token.
func (c GeminiCreds) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       time.UnixMilli(c.ExpiryDate),
	}
}

// OAuthToken is the token block of a CLIProxyAPI auth file.
type OAuthToken struct {
	AccessToken    string   `json:"access_token"`
	TokenType      string   `json:"token_type"`
	RefreshToken   string   `json:"refresh_token"`
	Expiry         string   `json:"expiry"`
	TokenURI       string   `json:"token_uri"`
	ClientID       string   `json:"client_id"`
	ClientSecret   string   `json:"client_secret"`
	Scopes         []string `json:"scopes"`
	UniverseDomain string   `json:"universe_domain"`
}

// TokenStorage is a CLIProxyAPI Gemini auth file.
type TokenStorage struct {
	Token     OAuthToken `json:"token"`
	ProjectID string     `json:"project_id"`
	Email     string     `json:"email"`
	Auto      bool       `json:"auto"`
	Checked   bool       `json:"checked"`
	Type      string     `json:"type"`
}

// ImportOptions controls ImportGemini.
type ImportOptions struct {
	Source       string // Gemini CLI oauth_creds.json
	AuthDir      string // CLIProxyAPI auth directory
	ClientID     string
	ClientSecret string
}

// ImportResult reports where the credentials were written.
type ImportResult struct {
	Email  string
	Source string
	Target string
	// Expired is set when the access token is no longer valid; the proxy
	// refreshes it with the refresh token on first use.
	Expired bool
}

// ErrSourceNotFound is returned when the Gemini CLI has not logged in.
var ErrSourceNotFound = errors.New("gemini credentials not found")

// DefaultSource returns ~/.gemini/oauth_creds.json.
func DefaultSource() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gemini", "oauth_creds.json")
}

// DefaultAuthDir returns ~/.cli-proxy-api.
func DefaultAuthDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cli-proxy-api")
}

// EmailFromIDToken reads the email claim without verifying the signature;
// the token came from a local file written by the OAuth flow.
func EmailFromIDToken(idToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", errors.Wrap(err, "failed to decode id_token")
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", errors.New("id_token has no email claim")
	}
	return email, nil
}

// FormatExpiry converts a unix millisecond timestamp to the RFC 3339 form
// CLIProxyAPI expects, truncated to whole seconds. Zero maps to the unix
// epoch.
func FormatExpiry(ms int64) string {
	return time.UnixMilli(ms).UTC().Truncate(time.Second).Format(expiryLayout)
}

// Convert builds the CLIProxyAPI storage for Gemini CLI credentials.
func Convert(src GeminiCreds, clientID, clientSecret string) (*TokenStorage, error) {
	email, err := EmailFromIDToken(src.IDToken)
	if err != nil {
		return nil, err
	}

	token := src.Token()
	return &TokenStorage{
		Token: OAuthToken{
			AccessToken:    token.AccessToken,
			TokenType:      token.TokenType,
			RefreshToken:   token.RefreshToken,
			Expiry:         FormatExpiry(src.ExpiryDate),
			TokenURI:       TokenURI,
			ClientID:       clientID,
			ClientSecret:   clientSecret,
			Scopes:         append([]string(nil), Scopes...),
			UniverseDomain: UniverseDomain,
		},
		Email: email,
		Type:  "gemini",
	}, nil
}

// ImportGemini converts the Gemini CLI credentials at opts.Source and writes
// them to <AuthDir>/<email>-.json with owner-only permissions. The empty
// project id in the file name lets the proxy detect the project on load.
func ImportGemini(opts ImportOptions) (*ImportResult, error) {
	if opts.Source == "" {
		opts.Source = DefaultSource()
	}
	if opts.AuthDir == "" {
		opts.AuthDir = DefaultAuthDir()
	}

	data, err := os.ReadFile(opts.Source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrSourceNotFound, "%s", opts.Source)
		}
		return nil, errors.Wrap(err, "failed to read gemini credentials")
	}

	var src GeminiCreds
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, errors.Wrap(err, "failed to parse gemini credentials")
	}

	storage, err := Convert(src, opts.ClientID, opts.ClientSecret)
	if err != nil {
		return nil, err
	}

	out, err := json.MarshalIndent(storage, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode token storage")
	}

	if err := os.MkdirAll(opts.AuthDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create auth directory")
	}
	target := filepath.Join(opts.AuthDir, storage.Email+"-.json")
	if err := os.WriteFile(target, out, 0o600); err != nil {
		return nil, errors.Wrap(err, "failed to write token storage")
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(target, 0o600); err != nil {
		return nil, errors.Wrap(err, "failed to restrict token storage permissions")
	}

	return &ImportResult{
		Email:   storage.Email,
		Source:  opts.Source,
		Target:  target,
		Expired: !src.Token().Valid(),
	}, nil
}
