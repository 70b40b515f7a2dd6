// Package frontend is the thin message/transport glue spec.md §1 and §6
// place out of core scope: it never touches the DAG's invariants, only
// serializes Coordinator calls to and from a user interface. It is
// modeled on original_source/src/tbp.rs's FrontendMessage/BotMessage
// pair (here: suggest/new_piece/play requests, answered with
// suggestion/ready/error responses) transported over a websocket instead of the original's
// stdio, the way niceyeti-tabular's tabular/server/fastview.client
// streams idempotent updates to a web client.
package frontend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/tetrisdag/internal/board"
	"github.com/tetrisdag/internal/workerpool"
)

// FrontendMessage is a request from the user interface, mirroring
// original_source's tbp::FrontendMessage variants relevant to this
// core's surface (queue updates, placement, suggestion request).
type FrontendMessage struct {
	Type      string          `json:"type"`
	Piece     string          `json:"piece,omitempty"`
	Placement *board.Placement `json:"placement,omitempty"`
}

// BotMessage is a response to the user interface, mirroring
// original_source's tbp::BotMessage variants this core can produce.
type BotMessage struct {
	Type      string              `json:"type"`
	Moves     []board.Placement   `json:"moves,omitempty"`
	Info      *workerpool.MoveInfo `json:"info,omitempty"`
	Error     string              `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{}

// Server wraps a *workerpool.Coordinator with a websocket endpoint that
// speaks FrontendMessage/BotMessage, plus debug HTTP routes registered
// on a gorilla/mux router (niceyeti-tabular's server package pattern).
type Server struct {
	coord  *workerpool.Coordinator
	router *mux.Router
}

// NewServer builds a Server around coord, registering /healthz, /suggest,
// and the /ws websocket upgrade endpoint.
func NewServer(coord *workerpool.Coordinator) *Server {
	s := &Server{coord: coord, router: mux.NewRouter()}
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/suggest", s.handleSuggestHTTP).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebsocket)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleSuggestHTTP is a debug route returning the current best
// placements as JSON without requiring a websocket round trip.
func (s *Server) handleSuggestHTTP(w http.ResponseWriter, r *http.Request) {
	moves, info := s.coord.Suggest()
	writeJSON(w, BotMessage{Type: "suggestion", Moves: moves, Info: &info})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.Encode(v)
}

// handleWebsocket upgrades the connection and runs the request/response
// loop: every FrontendMessage the peer sends produces one BotMessage,
// matching the original's one-request-one-response stdio protocol.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		var msg FrontendMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		reply := s.handle(msg)
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

const readTimeout = 10 * time.Minute

func (s *Server) handle(msg FrontendMessage) BotMessage {
	switch msg.Type {
	case "suggest":
		moves, info := s.coord.Suggest()
		return BotMessage{Type: "suggestion", Moves: moves, Info: &info}
	case "new_piece":
		p, err := parsePiece(msg.Piece)
		if err != nil {
			return BotMessage{Type: "error", Error: err.Error()}
		}
		s.coord.NewPiece(p)
		return BotMessage{Type: "ready"}
	case "play":
		if msg.Placement == nil {
			return BotMessage{Type: "error", Error: "play message missing placement"}
		}
		if err := s.coord.Advance(*msg.Placement); err != nil {
			return BotMessage{Type: "error", Error: errors.Wrap(err, "frontend: advance").Error()}
		}
		return BotMessage{Type: "ready"}
	default:
		return BotMessage{Type: "error", Error: "frontend: unrecognized message type " + msg.Type}
	}
}

func parsePiece(s string) (board.Piece, error) {
	for _, p := range board.AllPieces {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, errors.Errorf("frontend: unrecognized piece %q", s)
}
