package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/credit"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/pingone"
)

var testConfig = ServerConfig{
	Host:           "localhost",
	Port:           8081,
	UseTls:         false,
	TlsCertPath:    "",
	TlsPrivKeyPath: "",
}

func startTestServer(t *testing.T, storage FlowStorage, gateway pingone.Gateway) *Server {
	t.Helper()

	testState := &ServerState{
		flowStorage: storage,
		flows:       NewFlowRegistry(),
		gateway:     gateway,
		decider:     credit.NewStubDecider(),
	}

	srv, err := NewServer(testState, testConfig)
	require.NoError(t, err)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("server error: %v", err)
		}
	}()

	waitUntilHealthy(t, "http://localhost:8081/api/health")
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Logf("error shutting down server: %v", err)
		}
	})
	return srv
}

func waitUntilHealthy(t *testing.T, url string) {
	t.Helper()
	const maxAttempts = 50
	for i := 0; i < maxAttempts; i++ {
		if resp, err := http.Get(url); err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not start in time")
}

func postJSON[T any](t *testing.T, url string, payload any) (*http.Response, []byte, *T) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	}
	resp, err := http.Post(url, "application/json", body)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded *T
	var v T
	_ = json.Unmarshal(respBody, &v)
	decoded = &v

	return resp, respBody, decoded
}

func getJSON[T any](t *testing.T, url string) (*http.Response, []byte, *T) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var v T
	_ = json.Unmarshal(respBody, &v)

	return resp, respBody, &v
}

func mustStatus(t *testing.T, resp *http.Response, want int, body []byte) {
	t.Helper()
	require.Equalf(t, want, resp.StatusCode, "body: %s", body)
}

// createFlow bootstraps one application flow over the API.
func createFlow(t *testing.T) string {
	t.Helper()
	resp, body, fr := postJSON[FlowResponse](t, "http://localhost:8081/api/flows", nil)
	mustStatus(t, resp, http.StatusOK, body)
	require.NotEmpty(t, fr.FlowId)
	require.Equal(t, "initial", string(fr.State.Step))
	return fr.FlowId
}

func flowURL(flowId, action string) string {
	return fmt.Sprintf("http://localhost:8081/api/flows/%s/%s", flowId, action)
}

// test doubles

var errAuthDown = errors.New("identity provider auth endpoint unreachable")

// fakeGateway scripts the identity provider. GetStatus walks the statuses
// slice and repeats the last entry once exhausted.
type fakeGateway struct {
	mu sync.Mutex

	tokenErr   error
	sessionErr error
	statusErr  error
	issueErr   error

	statuses       []models.RawStatus
	credentialData *models.CredentialDataResponse

	statusCalls int
	issueCalls  int
}

func (g *fakeGateway) GetAccessToken(_ context.Context) (*models.TokenResponse, error) {
	if g.tokenErr != nil {
		return nil, g.tokenErr
	}
	return &models.TokenResponse{AccessToken: "test-token", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func (g *fakeGateway) CreatePresentationSession(_ context.Context, _, _ string) (*models.PresentationResponse, error) {
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	return &models.PresentationResponse{
		Id:          "test-session",
		Status:      models.RawStatusInitial,
		ExpiresAt:   time.Now().Add(10 * time.Minute).UTC().Format(time.RFC3339),
		Environment: &models.EnvironmentRef{Id: "test-env"},
		Links: &models.PresentationLinks{
			Qr: &models.Href{Href: "https://qr.example/test-session"},
		},
	}, nil
}

func (g *fakeGateway) GetStatus(_ context.Context, _, _, sessionId string) (*models.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	idx := g.statusCalls
	g.statusCalls++
	if idx >= len(g.statuses) {
		idx = len(g.statuses) - 1
	}
	return &models.StatusResponse{Id: sessionId, Status: g.statuses[idx]}, nil
}

func (g *fakeGateway) GetCredentialData(_ context.Context, _, _, _ string) (*models.CredentialDataResponse, error) {
	if g.credentialData == nil {
		return nil, errors.New("no credential data scripted")
	}
	return g.credentialData, nil
}

func (g *fakeGateway) IssueCredential(_ context.Context, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issueCalls++
	return g.issueErr
}

// adultCredentialData is a full wallet release for an applicant born well
// before the age threshold.
func adultCredentialData() *models.CredentialDataResponse {
	return &models.CredentialDataResponse{
		Status: models.RawStatusSuccessful,
		SessionData: &models.SessionData{
			CredentialsDataList: []models.CredentialData{{
				Type: "NatWest Current Account",
				Data: []models.CredentialItem{
					{Key: "First Name", Value: "Amelia"},
					{Key: "Last Name", Value: "Harrington"},
					{Key: "DOB", Value: "1990-04-12"},
					{Key: "Street", Value: "12 Castle Road"},
					{Key: "City", Value: "Edinburgh"},
					{Key: "Postcode", Value: "EH1 2NG"},
					{Key: "Country", Value: "UK"},
					{Key: "UserID", Value: "user-42"},
					{Key: "Account Number", Value: "12345678"},
					{Key: "Sort Code", Value: "60-00-01"},
				},
			}},
		},
	}
}
