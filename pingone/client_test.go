package pingone

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		AuthBaseUrl:         server.URL,
		ApiBaseUrl:          server.URL,
		EnvironmentId:       "env-1",
		ClientId:            "client-1",
		ClientSecret:        "secret-1",
		WalletApplicationId: "wallet-1",
		CredentialTypeId:    "credtype-1",
	})
}

func TestGetAccessToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/env-1/as/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client-1", r.PostForm.Get("client_id"))
		require.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
		require.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	token, err := client.GetAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc", token.AccessToken)
	require.Equal(t, 3600, token.ExpiresIn)
}

func TestGetAccessTokenMissingToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token_type": "Bearer"})
	})

	_, err := client.GetAccessToken(context.Background())
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetAccessTokenTransportFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	})

	_, err := client.GetAccessToken(context.Background())
	require.ErrorIs(t, err, ErrTransport)
}

func TestCreatePresentationSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/environments/env-1/presentationSessions", r.URL.Path)
		require.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var request map[string]any
		require.NoError(t, json.Unmarshal(body, &request))
		require.Equal(t, "OPENID4VP", request["protocol"])
		require.Equal(t, DefaultPresentationMessage, request["message"])
		wallet := request["digitalWalletApplication"].(map[string]any)
		require.Equal(t, "wallet-1", wallet["id"])
		requested := request["requestedCredentials"].([]any)
		require.Len(t, requested, 1)
		first := requested[0].(map[string]any)
		require.Equal(t, "NatWest Current Account", first["type"])
		require.Len(t, first["keys"].([]any), len(presentationCredentialKeys))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "sess-1",
			"status":      "INITIAL",
			"expiresAt":   "2025-03-01T10:00:00Z",
			"environment": map[string]string{"id": "env-1"},
			"_links": map[string]any{
				"qr": map[string]string{"href": "https://qr.example/sess-1"},
			},
		})
	})

	session, err := client.CreatePresentationSession(context.Background(), "tok-abc", "")
	require.NoError(t, err)
	require.Equal(t, "sess-1", session.Id)
	require.Equal(t, "env-1", session.Environment.Id)
	require.Equal(t, "https://qr.example/sess-1", session.Links.Qr.Href)
}

func TestCreatePresentationSessionMissingQr(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "sess-1",
			"status":      "INITIAL",
			"expiresAt":   "2025-03-01T10:00:00Z",
			"environment": map[string]string{"id": "env-1"},
		})
	})

	_, err := client.CreatePresentationSession(context.Background(), "tok-abc", "")
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorContains(t, err, "QR code URL")
}

func TestGetStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/environments/env-1/presentationSessions/sess-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "sess-1", "status": "WAITING"})
	})

	status, err := client.GetStatus(context.Background(), "tok-abc", "env-1", "sess-1")
	require.NoError(t, err)
	require.Equal(t, "WAITING", string(status.Status))
}

func TestGetStatusMissingFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "sess-1"})
	})

	_, err := client.GetStatus(context.Background(), "tok-abc", "env-1", "sess-1")
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetCredentialDataAcceptsKnownShapes(t *testing.T) {
	shapes := []map[string]any{
		{"sessionData": map[string]any{"credentialsDataList": []any{}}},
		{"status": "VERIFICATION_SUCCESSFUL"},
		{"credentials": []any{map[string]any{"data": []any{}}}},
		{"credentialsDataList": []any{map[string]any{"data": []any{}}}},
		{"data": []any{map[string]string{"key": "DOB", "value": "1990-04-12"}}},
	}

	for _, shape := range shapes {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/environments/env-1/presentationSessions/sess-1/credentialData", r.URL.Path)
			_ = json.NewEncoder(w).Encode(shape)
		})
		_, err := client.GetCredentialData(context.Background(), "tok-abc", "env-1", "sess-1")
		require.NoError(t, err, "shape %v should be accepted", shape)
	}
}

func TestGetCredentialDataRejectsUnknownShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"unexpected": true})
	})

	_, err := client.GetCredentialData(context.Background(), "tok-abc", "env-1", "sess-1")
	require.ErrorIs(t, err, ErrValidation)
}

func TestIssueCredential(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/environments/env-1/users/user-42/credentials", r.URL.Path)

		var request map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		credType := request["credentialType"].(map[string]any)
		require.Equal(t, "credtype-1", credType["id"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "cred-1"})
	})

	require.NoError(t, client.IssueCredential(context.Background(), "tok-abc", "user-42"))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)

	got, ok := TokenExpiry(signed)
	require.True(t, ok)
	require.True(t, got.Equal(exp))
}

func TestTokenExpiryNotAJwt(t *testing.T) {
	_, ok := TokenExpiry("opaque-token")
	require.False(t, ok)
}
