// Package api implements the remote contract of the hrdesk backend.
// It is a thin boundary: it attaches the credential to outgoing requests,
// maps rejection statuses to error kinds, and decodes response bodies.
// No session state lives here.
//
//go:generate go run go.uber.org/mock/mockgen -source=gateway.go -destination=../mocks/mock_gateway.go -package=mocks
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hrdesk/domain"
	"hrdesk/errors"
)

// Identity groups the endpoints that issue or validate credentials.
type Identity interface {
	SignIn(ctx context.Context, emailOrUsername, password string) (domain.Credential, error)
	SignUp(ctx context.Context, profile SignUpProfile) error
	VerifyEmail(ctx context.Context, token string) error
	AcceptInvitation(ctx context.Context, token, password, fullName string) (domain.Credential, error)
	Me(ctx context.Context, cred domain.Credential) (domain.User, error)
}

// Directory exposes tenant lookups owned by the current credential.
type Directory interface {
	MyOrganization(ctx context.Context, cred domain.Credential) (domain.Organization, error)
}

// Chat posts one conversation turn and returns the raw answer.
type Chat interface {
	Ask(ctx context.Context, cred domain.Credential, req ChatRequest) (ChatAnswer, error)
}

// SignUpProfile is the JSON body of the account-creation endpoint.
type SignUpProfile struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// ChatRequest is one turn of the conversation. Upload is optional: a
// follow-up question against already-ingested documents sends no file.
// HistoryJSON carries the serialized transcript for conversational context.
type ChatRequest struct {
	Query       string
	Upload      *Upload
	HistoryJSON string
}

// ChatAnswer mirrors the /chat response. Answer is empty on an
// upload-only turn; Message then carries the ingestion acknowledgment.
type ChatAnswer struct {
	Answer  string `json:"answer"`
	Query   string `json:"query"`
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Gateway is the HTTP implementation of Identity, Directory and Chat.
type Gateway struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewGateway(baseURL string, timeout time.Duration, log *slog.Logger) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Health probes the backend before any authenticated call.
func (g *Gateway) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// SignIn exchanges credentials for a bearer token. The endpoint is
// form-encoded; rejection maps to ErrInvalidCredentials so callers never
// see raw transport details.
func (g *Gateway) SignIn(ctx context.Context, emailOrUsername, password string) (domain.Credential, error) {
	form := url.Values{}
	form.Set("username", emailOrUsername)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/auth/signin", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", errors.ErrInvalidCredentials
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("signin endpoint returned %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode signin response: %w", err)
	}
	return domain.Credential(tok.AccessToken), nil
}

// SignUp creates an account. The backend answers with a token, but an
// unverified account must not gain access: the token is deliberately
// discarded and no session is established.
func (g *Gateway) SignUp(ctx context.Context, profile SignUpProfile) error {
	body, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/auth/signup", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return errors.ErrAccountExists
	case resp.StatusCode >= 300:
		return fmt.Errorf("signup endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (g *Gateway) VerifyEmail(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/auth/verify/"+url.PathEscape(token), nil)
	if err != nil {
		return err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.ErrVerificationFailed
	}
	return nil
}

func (g *Gateway) AcceptInvitation(ctx context.Context, token, password, fullName string) (domain.Credential, error) {
	body, err := json.Marshal(map[string]string{
		"password":  password,
		"full_name": fullName,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/invitations/accept/"+url.PathEscape(token), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", errors.ErrInvitationInvalid
	}
	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode invitation response: %w", err)
	}
	return domain.Credential(tok.AccessToken), nil
}

// Me validates the credential against the identity endpoint and returns
// the fresh user snapshot. A 401 means the credential was rejected.
func (g *Gateway) Me(ctx context.Context, cred domain.Credential) (domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/auth/me", nil)
	if err != nil {
		return domain.User{}, err
	}
	setBearer(req, cred)

	resp, err := g.http.Do(req)
	if err != nil {
		return domain.User{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.User{}, errors.ErrSessionExpired
	case resp.StatusCode >= 300:
		return domain.User{}, fmt.Errorf("identity endpoint returned %d", resp.StatusCode)
	}

	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

func (g *Gateway) MyOrganization(ctx context.Context, cred domain.Credential) (domain.Organization, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/organizations/me", nil)
	if err != nil {
		return domain.Organization{}, err
	}
	setBearer(req, cred)

	resp, err := g.http.Do(req)
	if err != nil {
		return domain.Organization{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.Organization{}, errors.ErrSessionExpired
	case resp.StatusCode >= 300:
		return domain.Organization{}, fmt.Errorf("organization endpoint returned %d", resp.StatusCode)
	}

	var org domain.Organization
	if err := json.NewDecoder(resp.Body).Decode(&org); err != nil {
		return domain.Organization{}, fmt.Errorf("decode organization: %w", err)
	}
	return org, nil
}

func setBearer(req *http.Request, cred domain.Credential) {
	req.Header.Set("Authorization", "Bearer "+string(cred))
}
