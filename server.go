package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/credit"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/flow"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/pingone"
)

const ErrorInternal = "error:internal"
const ERR_MARSHAL = "failed to marshal response message"
const ERR_FLOW_NOT_FOUND = "flow not found"
const ERR_FLOW_CREATION = "failed to create application flow"
const ERR_FLOW_REMOVAL = "failed to remove flow from storage"
const ERR_FLOW_RETRIEVAL = "failed to get flow from storage"
const ERR_BEGIN_FAILED = "failed to begin application flow"
const ERR_MANUAL_SUBMIT = "failed to submit application form"

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
}

type ServerState struct {
	flowStorage FlowStorage
	flows       *FlowRegistry
	gateway     pingone.Gateway
	decider     credit.Decider
}

type SpaHandler struct {
	staticPath string
	indexPath  string
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("Starting server with TLS", "host", s.config.Host, "port", s.config.Port, "cert", s.config.TlsCertPath, "key", s.config.TlsPrivKeyPath)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	} else {
		slog.Info("Starting server without TLS", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServe()
	}
}

func (s *Server) Stop() error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

// ServeHTTP inspects the URL path to locate a file within the static dir
// on the SPA handler. If a file is found, it will be served. If not, the
// file located at the index path on the SPA handler will be served. This
// is suitable behavior for serving an SPA (single page application).
// https://github.com/gorilla/mux?tab=readme-ov-file#serving-single-page-applications
func (h SpaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Debug("SPA handler serving request", "path", r.URL.Path)
	// Join internally call path.Clean to prevent directory traversal
	path := filepath.Join(h.staticPath, r.URL.Path)
	// check whether a file exists or is a directory at the given path
	fi, err := os.Stat(path)
	if os.IsNotExist(err) || fi.IsDir() {
		// file does not exist or path is a directory, serve index.html
		slog.Debug("Serving index.html for path", "path", r.URL.Path)
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	if err != nil {
		// if we got an error (that wasn't that the file doesn't exist) stating the
		// file, return a 500 internal server error and stop
		slog.Error("Error stating file", "path", path, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// otherwise, use http.FileServer to serve the static file
	slog.Debug("Serving static file", "path", path)
	http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Health check request received")
		err := json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		if err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
	})

	router.HandleFunc("/api/flows", func(w http.ResponseWriter, r *http.Request) {
		handleCreateFlow(state, w, r)
	})
	router.HandleFunc("/api/flows/{id}/begin", func(w http.ResponseWriter, r *http.Request) {
		handleBeginFlow(state, w, r)
	})
	router.HandleFunc("/api/flows/{id}/manual-submit", func(w http.ResponseWriter, r *http.Request) {
		handleSubmitManualForm(state, w, r)
	})
	router.HandleFunc("/api/flows/{id}/state", func(w http.ResponseWriter, r *http.Request) {
		handleFlowState(state, w, r)
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/flows/{id}/retry", func(w http.ResponseWriter, r *http.Request) {
		handleRetryFlow(state, w, r)
	})
	router.HandleFunc("/api/flows/{id}/close", func(w http.ResponseWriter, r *http.Request) {
		handleCloseFlow(state, w, r)
	})

	slog.Debug("Registered all API routes")

	spa := SpaHandler{staticPath: "../frontend/build", indexPath: "index.html"}
	router.PathPrefix("/").Handler(spa)

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler: router,
		Addr:    addr,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

type FlowResponse struct {
	FlowId string        `json:"flow_id"`
	State  flow.Snapshot `json:"state"`
}

type BeginFlowRequest struct {
	CustomerStatus flow.CustomerStatus `json:"customer_status"`
	CardType       models.CardType     `json:"card_type"`
}

func handleCreateFlow(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to create application flow")

	flowId := GenerateFlowId()
	if flowId == "" {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_FLOW_CREATION, fmt.Errorf("failed to generate flow ID"))
		return
	}

	wizard := flow.NewWizard(state.gateway, state.decider)
	state.flows.Add(flowId, wizard)
	persistSnapshot(state, flowId, wizard)

	response := FlowResponse{FlowId: flowId, State: wizard.Snapshot()}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Application flow created", "flow_id", flowId)
}

func handleBeginFlow(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	flowId, wizard, err := lookupFlow(state, r)
	if err != nil {
		respondWithErr(w, http.StatusNotFound, ERR_FLOW_NOT_FOUND, ERR_FLOW_NOT_FOUND, err)
		return
	}

	var request BeginFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "failed to decode begin request", err)
		return
	}

	slog.Info("Received request to begin flow", "flow_id", flowId, "customer_status", request.CustomerStatus, "card_type", request.CardType)

	if err := wizard.Begin(r.Context(), request.CustomerStatus, request.CardType); err != nil {
		persistSnapshot(state, flowId, wizard)
		// Gateway failures already moved the wizard to the failed step;
		// everything else is a bad request.
		if wizard.Step() == flow.StepFailed {
			respondWithErr(w, http.StatusBadGateway, "verification unavailable", ERR_BEGIN_FAILED, err)
		} else {
			respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_BEGIN_FAILED, err)
		}
		return
	}

	persistSnapshot(state, flowId, wizard)
	if err := writeJSON(w, http.StatusOK, FlowResponse{FlowId: flowId, State: wizard.Snapshot()}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Flow begun successfully", "flow_id", flowId, "step", wizard.Step())
}

func handleSubmitManualForm(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	flowId, wizard, err := lookupFlow(state, r)
	if err != nil {
		respondWithErr(w, http.StatusNotFound, ERR_FLOW_NOT_FOUND, ERR_FLOW_NOT_FOUND, err)
		return
	}

	var form flow.ManualForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "failed to decode manual form", err)
		return
	}

	slog.Info("Received manual form submission", "flow_id", flowId)

	if err := wizard.SubmitManualForm(form); err != nil {
		persistSnapshot(state, flowId, wizard)
		slog.Warn(ERR_MANUAL_SUBMIT, "flow_id", flowId, "error", err)
		// The snapshot carries the user-visible message.
		if err := writeJSON(w, http.StatusBadRequest, FlowResponse{FlowId: flowId, State: wizard.Snapshot()}); err != nil {
			respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		}
		return
	}

	persistSnapshot(state, flowId, wizard)
	if err := writeJSON(w, http.StatusOK, FlowResponse{FlowId: flowId, State: wizard.Snapshot()}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Manual form processed", "flow_id", flowId, "step", wizard.Step())
}

func handleFlowState(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	flowId := mux.Vars(r)["id"]
	wizard, err := state.flows.Get(flowId)
	if err == nil {
		persistSnapshot(state, flowId, wizard)
		if err := writeJSON(w, http.StatusOK, FlowResponse{FlowId: flowId, State: wizard.Snapshot()}); err != nil {
			respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		}
		return
	}

	// No live wizard in this process; fall back to the persisted snapshot.
	serialized, err := state.flowStorage.RetrieveFlow(flowId)
	if err != nil {
		respondWithErr(w, http.StatusNotFound, ERR_FLOW_NOT_FOUND, ERR_FLOW_RETRIEVAL, err)
		return
	}
	var snapshot flow.Snapshot
	if err := json.Unmarshal([]byte(serialized), &snapshot); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to decode stored flow snapshot", err)
		return
	}
	if err := writeJSON(w, http.StatusOK, FlowResponse{FlowId: flowId, State: snapshot}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

func handleRetryFlow(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	flowId, wizard, err := lookupFlow(state, r)
	if err != nil {
		respondWithErr(w, http.StatusNotFound, ERR_FLOW_NOT_FOUND, ERR_FLOW_NOT_FOUND, err)
		return
	}

	slog.Info("Received request to retry flow", "flow_id", flowId)

	wizard.Retry()
	persistSnapshot(state, flowId, wizard)

	if err := writeJSON(w, http.StatusOK, FlowResponse{FlowId: flowId, State: wizard.Snapshot()}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Flow reset successfully", "flow_id", flowId)
}

func handleCloseFlow(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	flowId, wizard, err := lookupFlow(state, r)
	if err != nil {
		respondWithErr(w, http.StatusNotFound, ERR_FLOW_NOT_FOUND, ERR_FLOW_NOT_FOUND, err)
		return
	}

	slog.Info("Received request to close flow", "flow_id", flowId)

	// Retry stops any active polling before the wizard is dropped.
	wizard.Retry()
	if err := state.flows.Remove(flowId); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_FLOW_REMOVAL, err)
		return
	}
	if err := state.flowStorage.RemoveFlow(flowId); err != nil {
		slog.Warn(ERR_FLOW_REMOVAL, "flow_id", flowId, "error", err)
	}

	if err := writeJSON(w, http.StatusOK, map[string]bool{"ok": true}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Flow closed", "flow_id", flowId)
}

// -----------------------------------------------------------------------------------

func lookupFlow(state *ServerState, r *http.Request) (string, *flow.Wizard, error) {
	flowId := mux.Vars(r)["id"]
	wizard, err := state.flows.Get(flowId)
	if err != nil {
		slog.Warn("Failed to find live flow", "flow_id", flowId, "error", err)
		return flowId, nil, err
	}
	return flowId, wizard, nil
}

// persistSnapshot stores the current wizard state, best effort.
func persistSnapshot(state *ServerState, flowId string, wizard *flow.Wizard) {
	snapshot := wizard.Snapshot()
	serialized, err := json.Marshal(snapshot)
	if err != nil {
		slog.Warn("Failed to serialize flow snapshot", "flow_id", flowId, "error", err)
		return
	}
	if err := state.flowStorage.StoreFlow(flowId, string(serialized)); err != nil {
		slog.Warn("Failed to persist flow snapshot", "flow_id", flowId, "error", err)
	}
}

func GenerateFlowId() string {
	flowId := make([]byte, 16)
	if _, err := rand.Read(flowId); err != nil {
		slog.Error("failed to generate flow ID", "error", err)
		return ""
	}
	hexId := fmt.Sprintf("%x", flowId)
	slog.Debug("Flow ID generated successfully", "flow_id", hexId)
	return hexId
}

func respondWithErr(w http.ResponseWriter, code int, responseBody string, logMsg string, e error) {
	slog.Error(logMsg, "error", e, "status_code", code, "response_body", responseBody)
	w.WriteHeader(code)
	if _, err := w.Write([]byte(responseBody)); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

// helpers ------------

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}

}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		slog.Debug("Non-POST request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithErr(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	slog.Debug("Writing JSON response", "status_code", status)
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		slog.Error("failed to write body to http response", "error", err)
	} else {
		slog.Debug("JSON response written successfully", "status_code", status, "payload_size", len(payload))
	}
	return nil
}
