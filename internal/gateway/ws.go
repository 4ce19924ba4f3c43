// Package gateway bridges a websocket call into an agent session: binary
// frames carry caller PCM16 mono 16kHz audio in, text frames carry the
// assistant's speech text out.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/frontdesk/frontdesk/internal/agent"
)

// writeWait bounds a single outbound frame so a stalled peer cannot park
// the session goroutine on a blocked write.
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Demo deployment; restrict in production.
		return true
	},
}

type Handler struct {
	Transcriber agent.Transcriber
	Resolver    agent.AnswerResolver
	Escalation  agent.Escalator
}

func NewHandler(t agent.Transcriber, r agent.AnswerResolver, e agent.Escalator) *Handler {
	return &Handler{Transcriber: t, Resolver: r, Escalation: e}
}

type outMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// wsSpeaker serializes text frames onto the connection.
type wsSpeaker struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	writeWait time.Duration
}

func (s *wsSpeaker) Speak(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	if err := s.conn.WriteJSON(outMessage{Type: "say", Text: text}); err != nil {
		log.Printf("ws write error: %v", err)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	callerID := "room-" + uuid.NewString()[:8]
	log.Printf("[%s] call connected", callerID)

	speaker := &wsSpeaker{conn: conn, writeWait: writeWait}
	sess := agent.NewSession(callerID, h.Transcriber, h.Resolver, h.Escalation, speaker)
	stop := sess.Start(r.Context())
	defer stop()

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			log.Printf("[%s] call disconnected: %v", callerID, rerr)
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			sess.FeedPCM(data)
		case websocket.TextMessage:
			var m struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(data, &m) != nil {
				continue
			}
			if strings.ToLower(m.Type) == "bye" {
				log.Printf("[%s] caller hung up", callerID)
				return
			}
		}
	}
}
