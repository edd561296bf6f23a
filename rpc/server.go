package rpc

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"gopkg.in/macaroon.v2"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/metrics"
)

// writeMethods is the set of §4.K methods that mutate the Wallet DB.
// Macaroon auth, when enabled, only challenges these; read methods stay
// open so a watch-only dashboard can run without a root key.
var writeMethods = map[string]bool{
	"create_account":                  true,
	"import_account":                  true,
	"import_view_only_account":        true,
	"update_account_name":             true,
	"remove_account":                  true,
	"assign_address_for_account":      true,
	"submit_transaction":              true,
	"build_and_submit_transaction":    true,
	"build_gift_code":                 true,
	"submit_gift_code":                true,
	"claim_gift_code":                 true,
	"remove_gift_code":                true,
	"sync_txos":                       true,
}

// Server exposes a Dispatcher over HTTP: a single JSON envelope endpoint,
// an optional macaroon bearer gate on write methods, a websocket feed for
// sync-height notifications, and a Prometheus metrics handler
// (§4.K).
type Server struct {
	Dispatcher *Dispatcher
	Metrics    *metrics.Registry
	RootKey    []byte // nil disables macaroon auth entirely

	upgrader websocket.Upgrader
	router   *mux.Router

	subsMu sync.Mutex
	subs   map[*websocket.Conn]struct{}
}

// NewServer builds a Server and wires its routes. Pass a nil rootKey to
// run without auth (appropriate for a loopback-only or view-only
// deployment, §6).
func NewServer(d *Dispatcher, reg *metrics.Registry, rootKey []byte) *Server {
	s := &Server{
		Dispatcher: d,
		Metrics:    reg,
		RootKey:    rootKey,
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		subs:       make(map[*websocket.Conn]struct{}),
	}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/v2", s.handleRequest).Methods(http.MethodPost)
	s.router.HandleFunc("/v2/subscribe", s.handleSubscribe)
	if reg != nil {
		s.router.Handle("/metrics", reg.Handler())
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// LoadOrCreateRootKey reads a 32-byte macaroon root key from path, creating
// one with fresh randomness if the file does not yet exist (§6
// "macaroon-root-key-path").
func LoadOrCreateRootKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	return key, nil
}

// IssueMacaroon mints a bearer macaroon bound to RootKey, identified by
// id. Callers send its hex-encoded binary form as the value of the
// "Macaroon" header on every write-method request.
func (s *Server) IssueMacaroon(id string) (*macaroon.Macaroon, error) {
	m, err := macaroon.New(s.RootKey, []byte(id), "walletd", macaroon.LatestVersion)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnsupportedRequest, err)
	}
	return m, nil
}

func (s *Server) authorize(r *http.Request) bool {
	if s.RootKey == nil {
		return true
	}
	hdr := r.Header.Get("Macaroon")
	if hdr == "" {
		return false
	}
	raw, err := hex.DecodeString(hdr)
	if err != nil {
		return false
	}
	var m macaroon.Macaroon
	if err := m.UnmarshalBinary(raw); err != nil {
		return false
	}
	if err := m.Verify(s.RootKey, func(caveat string) error { return nil }, nil); err != nil {
		return false
	}
	return true
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, response{Version: protocolVersion, Error: errorPayloadFor(errs.Wrap(errs.KindTransactionValidation, err))})
		return
	}

	if writeMethods[req.Method] && !s.authorize(r) {
		resp := response{Version: protocolVersion, ID: req.ID, Method: req.Method, Error: &errorPayload{
			Code:    codeUnauthorized,
			Message: "Unauthorized",
			Data:    errorData{ServerError: "Unauthorized", Details: "missing or invalid macaroon"},
		}}
		w.WriteHeader(http.StatusUnauthorized)
		s.writeResponse(w, resp)
		return
	}

	result, err := s.Dispatcher.Dispatch(r.Context(), req.Method, req.Params)
	resp := response{Version: protocolVersion, ID: req.ID, Method: req.Method}
	outcome := "ok"
	if err != nil {
		resp.Error = errorPayloadFor(err)
		outcome = "error"
		log.Warnf("rpc: %s failed: %v", req.Method, err)
	} else {
		resp.Result = result
	}
	if s.Metrics != nil {
		s.Metrics.ObserveRequest(req.Method, outcome, time.Since(start).Seconds())
	}
	s.writeResponse(w, resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Errorf("rpc: failed encoding response: %v", err)
	}
}

// handleSubscribe upgrades to a websocket and polls the Block Store every
// pollInterval, pushing a sync-height notification on the first poll and
// afterwards only when the local block count changes, the enrichment §4.K
// documents beyond spec.md's strict request/response surface.
const pollInterval = 2 * time.Second

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("rpc: websocket upgrade failed: %v", err)
		return
	}
	s.subsMu.Lock()
	s.subs[conn] = struct{}{}
	s.subsMu.Unlock()

	go s.pushLoop(conn)
}

type syncNotification struct {
	LocalBlockIndex uint64 `json:"local_block_index"`
}

func (s *Server) pushLoop(conn *websocket.Conn) {
	defer func() {
		s.subsMu.Lock()
		delete(s.subs, conn)
		s.subsMu.Unlock()
		conn.Close()
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	var lastIndex uint64
	first := true
	for range ticker.C {
		index, err := s.Dispatcher.Ledger.NumBlocks()
		if err != nil {
			return
		}
		if first || index != lastIndex {
			if err := conn.WriteJSON(syncNotification{LocalBlockIndex: index}); err != nil {
				return
			}
			lastIndex = index
			first = false
		}
	}
}

// Close terminates every open subscriber connection (daemon shutdown).
func (s *Server) Close() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for conn := range s.subs {
		conn.Close()
	}
}
