package integration

import (
	"encoding/json"
	"net/http"
	"testing"
)

type loginData struct {
	Message    string `json:"message"`
	UserDetail struct {
		UserID uint   `json:"user_id"`
		Email  string `json:"email"`
		Name   string `json:"name"`
	} `json:"user_detail"`
	Token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"token"`
}

func TestPasswordLoginRefreshVerifyLogoutFlow(t *testing.T) {
	stack := newTestStack(t, stackOptions{})
	stack.seedUser(t, "flow@example.com", "Valid#Pass1234")

	// Login with the wrong password first.
	resp, env := doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/login/",
		map[string]string{"email": "flow@example.com", "password": "wrong"}, nil)
	if resp.StatusCode != http.StatusBadRequest || env.Success {
		t.Fatalf("wrong password: expected 400, got %d", resp.StatusCode)
	}

	resp, env = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/login/",
		map[string]string{"email": "flow@example.com", "password": "Valid#Pass1234"}, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login failed: status=%d body=%s", resp.StatusCode, env.Data)
	}
	var login loginData
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.UserDetail.Email != "flow@example.com" || login.Token.RefreshToken == "" {
		t.Fatalf("unexpected login payload: %+v", login)
	}

	// Verify the access token.
	resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/token/verify/",
		map[string]string{"token": login.Token.AccessToken}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", resp.StatusCode)
	}

	// Refresh without rotation: a fresh access token, no new refresh token.
	resp, env = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/token/refresh/",
		map[string]string{"refresh": login.Token.RefreshToken}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}
	var refreshed map[string]string
	if err := json.Unmarshal(env.Data, &refreshed); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if refreshed["access"] == "" {
		t.Fatal("expected a fresh access token")
	}
	if _, ok := refreshed["refresh"]; ok {
		t.Fatal("rotation disabled: no refresh field expected")
	}

	// Logout answers 205 and blacklists the refresh token.
	resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/logout/",
		map[string]string{"refresh_token": login.Token.RefreshToken}, nil)
	if resp.StatusCode != http.StatusResetContent {
		t.Fatalf("logout: expected 205, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/token/refresh/",
		map[string]string{"refresh": login.Token.RefreshToken}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", resp.StatusCode)
	}

	// A second logout of the same token is a 400.
	resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/logout/",
		map[string]string{"refresh_token": login.Token.RefreshToken}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("double logout: expected 400, got %d", resp.StatusCode)
	}

	// The access token rides out its expiry even after logout.
	resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/token/verify/",
		map[string]string{"token": login.Token.AccessToken}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify after logout: expected 200, got %d", resp.StatusCode)
	}
}

func TestOTPLoginFlow(t *testing.T) {
	stack := newTestStack(t, stackOptions{})
	user := stack.seedUser(t, "otp-flow@example.com", "Valid#Pass1234")

	// Unknown email answers 404 on the OTP surface.
	resp, _ := doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/otp/send/",
		map[string]string{"email": "nobody@example.com"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown email: expected 404, got %d", resp.StatusCode)
	}

	resp, env := doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/otp/send/",
		map[string]string{"email": "otp-flow@example.com"}, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("otp send: expected 200, got %d", resp.StatusCode)
	}
	var sendData map[string]any
	if err := json.Unmarshal(env.Data, &sendData); err != nil {
		t.Fatalf("decode send: %v", err)
	}
	if _, leaked := sendData["code"]; leaked {
		t.Fatal("the code must never appear in the response")
	}

	code := stack.latestCodeFor(t, user.ID)

	// Wrong code first.
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/otp/login/",
		map[string]string{"email": "otp-flow@example.com", "otp": wrong}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong code: expected 400, got %d", resp.StatusCode)
	}

	resp, env = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/otp/login/",
		map[string]string{"email": "otp-flow@example.com", "otp": code}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("otp login: expected 200, got %d", resp.StatusCode)
	}
	var login loginData
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.UserDetail.UserID != user.ID || login.Token.AccessToken == "" {
		t.Fatalf("unexpected otp login payload: %+v", login)
	}

	// The code is single use.
	resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/otp/login/",
		map[string]string{"email": "otp-flow@example.com", "otp": code}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("replayed code: expected 400, got %d", resp.StatusCode)
	}
}

func TestRefreshRotationFlow(t *testing.T) {
	stack := newTestStack(t, stackOptions{rotateRefresh: true})
	stack.seedUser(t, "rotate@example.com", "Valid#Pass1234")

	resp, env := doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/login/",
		map[string]string{"email": "rotate@example.com", "password": "Valid#Pass1234"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var login loginData
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	resp, env = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/token/refresh/",
		map[string]string{"refresh": login.Token.RefreshToken}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}
	var refreshed map[string]string
	if err := json.Unmarshal(env.Data, &refreshed); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if refreshed["refresh"] == "" || refreshed["refresh"] == login.Token.RefreshToken {
		t.Fatal("rotation enabled: expected a distinct replacement refresh token")
	}

	// The superseded token is dead, the replacement works.
	resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/token/refresh/",
		map[string]string{"refresh": login.Token.RefreshToken}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old token: expected 401, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/token/refresh/",
		map[string]string{"refresh": refreshed["refresh"]}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replacement token: expected 200, got %d", resp.StatusCode)
	}
}

func TestLogoutAllFlow(t *testing.T) {
	stack := newTestStack(t, stackOptions{})
	stack.seedUser(t, "all@example.com", "Valid#Pass1234")

	var logins []loginData
	for i := 0; i < 2; i++ {
		resp, env := doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/login/",
			map[string]string{"email": "all@example.com", "password": "Valid#Pass1234"}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %d: expected 200, got %d", i, resp.StatusCode)
		}
		var login loginData
		if err := json.Unmarshal(env.Data, &login); err != nil {
			t.Fatalf("decode login %d: %v", i, err)
		}
		logins = append(logins, login)
	}

	// The endpoint requires an authenticated caller.
	resp, _ := doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/logout_all/", map[string]string{}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated logout_all: expected 401, got %d", resp.StatusCode)
	}

	resp, env := doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/logout_all/", map[string]string{},
		map[string]string{"Authorization": "Bearer " + logins[0].Token.AccessToken})
	if resp.StatusCode != http.StatusResetContent {
		t.Fatalf("logout_all: expected 205, got %d", resp.StatusCode)
	}
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode logout_all: %v", err)
	}
	if revoked, _ := data["revoked"].(float64); revoked != 2 {
		t.Fatalf("expected 2 sessions revoked, got %v", data["revoked"])
	}

	for i, login := range logins {
		resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/token/refresh/",
			map[string]string{"refresh": login.Token.RefreshToken}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("session %d: expected 401 after logout_all, got %d", i, resp.StatusCode)
		}
	}

	// With nothing left to revoke, the endpoint answers 400.
	resp, _ = doJSON(t, stack.Client, http.MethodPost, stack.BaseURL+"/auth/logout_all/", map[string]string{},
		map[string]string{"Authorization": "Bearer " + logins[0].Token.AccessToken})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty logout_all: expected 400, got %d", resp.StatusCode)
	}
}
