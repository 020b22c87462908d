package openlist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Login authenticates with the plaintext password (spec section 4.5:
// "login(username, password) → token") and caches the resulting bearer
// token for subsequent requests.
func (c *Client) Login(ctx context.Context) error {
	password, err := c.creds.Password()
	if err != nil {
		return fmt.Errorf("openlist: login: %w", err)
	}

	return c.login(ctx, "/api/auth/login", password)
}

// LoginHashed authenticates using a sha256 hash of the password rather
// than plaintext (spec section 4.5: "loginHashed(user, sha256Pwd) →
// token"), for OpenList deployments that accept only the hashed form.
func (c *Client) LoginHashed(ctx context.Context) error {
	password, err := c.creds.Password()
	if err != nil {
		return fmt.Errorf("openlist: login hashed: %w", err)
	}

	sum := sha256.Sum256([]byte(password))

	return c.login(ctx, "/api/auth/login/hash", hex.EncodeToString(sum[:]))
}

func (c *Client) login(ctx context.Context, path, password string) error {
	req := loginRequest{Username: c.creds.Username(), Password: password}

	status, raw, err := c.rawRequest(ctx, "POST", path, jsonBody(req), false)
	if err != nil {
		return fmt.Errorf("openlist: %w", err)
	}

	if status != 200 {
		return &apiError{op: "login", path: path, code: status, message: string(raw), auth: true}
	}

	var resp loginResponse
	if err := jsonDecode(raw, &resp); err != nil {
		return fmt.Errorf("openlist: decoding login response: %w", err)
	}

	if resp.Code != 0 && resp.Code != 200 {
		return &apiError{op: "login", path: path, code: resp.Code, message: resp.Message, auth: true}
	}

	if resp.Data.Token == "" {
		return &apiError{op: "login", path: path, code: status, message: "empty token in login response", auth: true}
	}

	c.mu.Lock()
	c.token = resp.Data.Token
	c.mu.Unlock()

	return nil
}

// reAuthenticate is called on a 401 mid-request. It always re-runs the
// plaintext Login, whichever login flavor produced the current token; the
// client does not record which flavor was used.
func (c *Client) reAuthenticate(ctx context.Context) error {
	return c.Login(ctx)
}
