// Package handlers serves the websocket stream and the REST room API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/bot"
	"github.com/YvesLemasson/curve-io-sub000/game"
	"github.com/YvesLemasson/curve-io-sub000/protocol"
	"github.com/YvesLemasson/curve-io-sub000/room"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
)

const leaveTimeout = 2 * time.Second

// ResultLister reads back recorded match results.
type ResultLister interface {
	Recent(limit int) ([]game.GameResult, error)
}

type Server struct {
	manager   *room.Manager
	results   ResultLister
	codec     protocol.Codec
	inputRate float64
}

// NewServer serves rooms from manager. codec is used by connections that do
// not ask for one; results may be nil.
func NewServer(manager *room.Manager, results ResultLister, codec protocol.Codec, inputRate float64) *Server {
	if codec == nil {
		codec = protocol.JSON
	}
	return &Server{manager: manager, results: results, codec: codec, inputRate: inputRate}
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/ws", s.ServeWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/results", s.handleResults)
	r.Route("/rooms", func(r chi.Router) {
		r.Get("/", s.handleListRooms)
		r.Get("/{id}", s.handleGetRoom)
		r.Post("/{id}/start", s.handleStartRoom)
		r.Post("/{id}/bots", s.handleAddBot)
	})
}

// ServeWebSocket upgrades the request and seats the connection in a room.
// Query parameters: name, color, codec (json|msgpack) and room to join a
// specific room instead of any open one.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	codec := s.codec
	if name := q.Get("codec"); name != "" {
		c, err := protocol.CodecByName(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		codec = c
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Error upgrading to WebSocket:", err)
		return
	}
	client := NewClient(conn, uuid.New().String(), codec, s.inputRate)
	client.emitEvent(Event{Type: EventTypeLogin, Client: client})
	go client.WritePump()

	var (
		rm  *room.Room
		mem *room.Member
	)
	if id := q.Get("room"); id != "" {
		rm, mem, err = s.manager.JoinRoom(r.Context(), id, q.Get("name"), q.Get("color"), client, codec)
	} else {
		rm, mem, err = s.manager.Join(r.Context(), q.Get("name"), q.Get("color"), client, codec)
	}
	if err != nil {
		log.Printf("Client %s could not join: %v", client.ID, err)
		s.sendError(client, err)
		time.AfterFunc(writeWait/10, func() { client.Close() })
		return
	}

	sess := &session{server: s, client: client, room: rm, member: mem}
	client.ReadPump(sess.handle)

	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if err := s.manager.Leave(ctx, rm.ID, mem.ID); err != nil && !errors.Is(err, room.ErrRoomNotFound) && !errors.Is(err, room.ErrNotMember) {
		log.Printf("Error removing %s from room %s: %v", mem.ID, rm.ID, err)
	}
}

// session routes one member's messages into its room.
type session struct {
	server *Server
	client *Client
	room   *room.Room
	member *room.Member
}

func (s *session) handle(message []byte) {
	codec := s.client.Codec
	env, err := protocol.DecodeEnvelope(codec, message)
	if err != nil {
		log.Printf("Error decoding message from client %s: %v", s.client.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()

	switch env.T {
	case protocol.MsgInput:
		if !s.client.AllowInput() {
			return
		}
		in, err := protocol.DecodePayload[protocol.Input](codec, env)
		if err != nil {
			log.Printf("Error decoding input from client %s: %v", s.client.ID, err)
			return
		}
		s.room.Input(s.member.ID, in)
	case protocol.MsgStart:
		err = s.server.manager.Start(ctx, s.room.ID)
	case protocol.MsgAdvance:
		var ok bool
		ok, err = s.room.Advance(ctx)
		if err == nil && !ok {
			err = game.ErrRoundInProgress
		}
	case protocol.MsgColor:
		var req protocol.ColorRequest
		if req, err = protocol.DecodePayload[protocol.ColorRequest](codec, env); err == nil {
			err = s.room.SetColor(ctx, s.member.ID, req.Color)
		}
	case protocol.MsgAddBot:
		var req protocol.AddBotRequest
		if req, err = protocol.DecodePayload[protocol.AddBotRequest](codec, env); err == nil {
			var d bot.Difficulty
			if d, err = bot.ParseDifficulty(req.Difficulty); err == nil {
				_, err = s.room.AddBot(ctx, d)
			}
		}
	default:
		log.Printf("Unknown message type from client %s: %s", s.client.ID, env.T)
		err = errUnknownMessage
	}
	if err != nil {
		s.server.sendError(s.client, err)
	}
}

var errUnknownMessage = errors.New("unknown message type")

func (s *Server) sendError(c *Client, err error) {
	b, encErr := protocol.Encode(c.Codec, protocol.MsgError, protocol.Error{Code: errorCode(err), Message: err.Error()})
	if encErr != nil {
		log.Printf("Error encoding error message for client %s: %v", c.ID, encErr)
		return
	}
	_ = c.Send(b)
}

// errorCode maps domain errors to stable codes for clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, game.ErrAlreadyStarted), errors.Is(err, room.ErrRoomActive):
		return "already_started"
	case errors.Is(err, game.ErrColorTaken):
		return "color_taken"
	case errors.Is(err, game.ErrRoundInProgress):
		return "round_in_progress"
	case errors.Is(err, room.ErrRoomFull):
		return "room_full"
	case errors.Is(err, room.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, room.ErrNotMember), errors.Is(err, game.ErrUnknownPlayer):
		return "not_a_member"
	default:
		return "bad_request"
	}
}

func httpStatus(err error) int {
	switch errorCode(err) {
	case "room_not_found":
		return http.StatusNotFound
	case "bad_request":
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rooms": len(s.manager.List())})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm.Info())
}

func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Start(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	rm, err := s.manager.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm.Info())
}

func (s *Server) handleAddBot(w http.ResponseWriter, r *http.Request) {
	d, err := bot.ParseDifficulty(r.URL.Query().Get("difficulty"))
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := s.manager.AddBot(r.Context(), chi.URLParam(r, "id"), d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "difficulty": string(d)})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeJSON(w, http.StatusOK, []game.GameResult{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	res, err := s.results.Recent(limit)
	if err != nil {
		log.Printf("Error reading results: %v", err)
		http.Error(w, "results unavailable", http.StatusInternalServerError)
		return
	}
	if res == nil {
		res = []game.GameResult{}
	}
	writeJSON(w, http.StatusOK, res)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), protocol.Error{Code: errorCode(err), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
