package main

import (
	"fmt"
	"log"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"drawdash_backend/internal/service"
)

// Manual smoke test: connects two players to a local server, starts a game,
// has the drawer pick the first offered word and the other player guess it.

type wire struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(conn *websocket.Conn, typ string, payload any) {
	data, _ := json.Marshal(map[string]any{"type": typ, "payload": payload})
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("write %s: %v", typ, err)
	}
}

func pump(name string, conn *websocket.Conn, words chan<- string) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("%s: read: %v", name, err)
			return
		}
		var msg wire
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		log.Printf("%s <- %s %s", name, msg.Type, string(msg.Payload))

		if msg.Type == "select_word" {
			var p struct {
				Words []string `json:"words"`
			}
			if json.Unmarshal(msg.Payload, &p) == nil && len(p.Words) > 0 {
				send(conn, "select_word", map[string]string{"word": p.Words[0]})
				words <- p.Words[0]
			}
		}
	}
}

func main() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	service.InitJWT(jwtSecret)
	tokenA, err := service.IssueJWT("smoke-a", time.Hour)
	if err != nil {
		log.Fatalf("token A: %v", err)
	}
	tokenB, err := service.IssueJWT("smoke-b", time.Hour)
	if err != nil {
		log.Fatalf("token B: %v", err)
	}

	room := fmt.Sprintf("smoke-%d", time.Now().Unix())
	dialer := websocket.DefaultDialer

	connA, _, err := dialer.Dial(fmt.Sprintf("ws://127.0.0.1:%s/ws?token=%s&room=%s", port, tokenA, room), nil)
	if err != nil {
		log.Fatalf("dial A: %v", err)
	}
	defer connA.Close()

	connB, _, err := dialer.Dial(fmt.Sprintf("ws://127.0.0.1:%s/ws?token=%s&room=%s", port, tokenB, room), nil)
	if err != nil {
		log.Fatalf("dial B: %v", err)
	}
	defer connB.Close()

	words := make(chan string, 2)
	go pump("A", connA, words)
	go pump("B", connB, words)

	time.Sleep(500 * time.Millisecond)
	send(connA, "start_game", nil)

	select {
	case word := <-words:
		// Both guess; the drawer's copy is swallowed by the engine.
		time.Sleep(500 * time.Millisecond)
		send(connA, "new_message", map[string]string{"message": word})
		send(connB, "new_message", map[string]string{"message": word})
	case <-time.After(15 * time.Second):
		log.Fatal("no word offer within 15s")
	}

	time.Sleep(10 * time.Second)
	log.Println("smoke run finished")
}
