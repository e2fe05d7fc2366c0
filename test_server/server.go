// Standalone development server speaking the realtime wire protocol.
// It keeps per-connection subscription sets, answers pings, announces
// presence, and exposes POST /broadcast to inject application frames.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type    string                 `json:"type"`
	Channel string                 `json:"channel,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Seq     int64                  `json:"seq,omitempty"`
}

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	subs    map[string]bool
	subsMu  sync.Mutex
}

func (s *session) send(f *frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("write error: %v", err)
	}
}

func (s *session) subscribed(channel string) bool {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	return s.subs[channel]
}

type hub struct {
	mu       sync.Mutex
	sessions map[*session]bool
}

func (h *hub) add(s *session) {
	h.mu.Lock()
	h.sessions[s] = true
	h.mu.Unlock()
}

func (h *hub) remove(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

func (h *hub) broadcast(f *frame) int {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	n := 0

	for _, s := range sessions {
		if f.Channel != "" && !s.subscribed(f.Channel) {
			continue
		}

		s.send(f)
		n++
	}

	return n
}

func main() {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	h := &hub{sessions: make(map[*session]bool)}

	http.HandleFunc("/socket", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade failed: %v", err)
			return
		}

		s := &session{conn: conn, subs: make(map[string]bool)}
		h.add(s)

		userID := r.URL.Query().Get("user_id")
		if userID != "" {
			h.broadcast(&frame{Type: "user_online", Payload: map[string]interface{}{"user_id": userID}})
		}

		defer func() {
			h.remove(s)
			conn.Close()

			if userID != "" {
				h.broadcast(&frame{Type: "user_offline", Payload: map[string]interface{}{"user_id": userID}})
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Printf("client gone: %v", err)
				return
			}

			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				log.Printf("bad frame: %v", err)
				continue
			}

			switch f.Type {
			case "subscribe":
				s.subsMu.Lock()
				s.subs[f.Channel] = true
				s.subsMu.Unlock()
				log.Printf("subscribe %s", f.Channel)
			case "unsubscribe":
				s.subsMu.Lock()
				delete(s.subs, f.Channel)
				s.subsMu.Unlock()
				log.Printf("unsubscribe %s", f.Channel)
			case "ping":
				s.send(&frame{Type: "pong"})
			default:
				log.Printf("ignoring frame type %q", f.Type)
			}
		}
	})

	http.HandleFunc("/broadcast", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}

		var f frame
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		n := h.broadcast(&f)
		log.Printf("broadcast %s on %q to %d sessions", f.Type, f.Channel, n)

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(map[string]int{"delivered": n}); err != nil {
			log.Printf("encode error: %v", err)
		}
	})

	log.Println("Realtime dev server starting on :4000")
	log.Println("  WS   /socket?user_id=<id>")
	log.Println("  POST /broadcast {type, channel, payload, seq}")

	if err := http.ListenAndServe(":4000", nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
