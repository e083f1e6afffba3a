package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	PairCount = 100 // requester/provider pairs. Start small; scale up once the DB keeps up.
	MsgCount  = 20  // messages per side
)

type AuthResponse struct {
	Token string `json:"access_token"`
	ID    int    `json:"id"`
	Class string `json:"class"`
}

func main() {
	log.Printf("🔥 STARTING STRESS TEST: %d pairs, %d messages each side...", PairCount, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("✅ LOAD TEST COMPLETE")
}

func runPair(pairID int) {
	pass := "password123"
	requester := authenticate("requester", fmt.Sprintf("req_%d", pairID), pass)
	provider := authenticate("provider", fmt.Sprintf("prov_%d", pairID), pass)
	if requester == nil || provider == nil {
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamChat(&wsWg, requester, provider)
	go spamChat(&wsWg, provider, requester)
	wsWg.Wait()

	// Both sides should see exactly one conversation entry.
	checkConversations(requester)
	checkConversations(provider)
}

// authenticate registers (ignoring "already exists") and logs in.
func authenticate(class, name, password string) *AuthResponse {
	email := name + "@loadtest.local"
	postJSON("/register", map[string]string{
		"class": class, "name": name, "email": email, "password": password,
	})

	resp, err := postJSON("/login", map[string]string{
		"class": class, "email": email, "password": password,
	})
	if err != nil {
		log.Printf("❌ Login failed [%s %s]: %v", class, name, err)
		return nil
	}
	defer resp.Body.Close()

	var data AuthResponse
	json.NewDecoder(resp.Body).Decode(&data)
	if data.Token == "" {
		log.Printf("❌ No token for %s %s", class, name)
		return nil
	}
	return &data
}

func spamChat(wg *sync.WaitGroup, from, to *AuthResponse) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", WSURL, from.Token), nil)
	if err != nil {
		log.Printf("❌ WS connect fail [%s:%d]: %v", from.Class, from.ID, err)
		return
	}
	defer conn.Close()

	// Drain server pushes so the send buffer never backs up.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < MsgCount; i++ {
		frame := map[string]interface{}{
			"type":     "send",
			"receiver": map[string]interface{}{"class": to.Class, "id": to.ID},
			"content":  fmt.Sprintf("LoadTest msg %d from %s:%d", i, from.Class, from.ID),
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("❌ Send fail [%s:%d]: %v", from.Class, from.ID, err)
			break
		}
		// Small sleep to prevent an instant localhost bottleneck.
		time.Sleep(10 * time.Millisecond)
	}
}

func checkConversations(who *AuthResponse) {
	req, _ := http.NewRequest("GET", BaseURL+"/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+who.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("❌ Conversations fetch fail [%s:%d]: %v", who.Class, who.ID, err)
		return
	}
	defer resp.Body.Close()

	var list []json.RawMessage
	json.NewDecoder(resp.Body).Decode(&list)
	if len(list) != 1 {
		log.Printf("⚠️ %s:%d expected 1 conversation, got %d", who.Class, who.ID, len(list))
	}
}

func postJSON(endpoint string, data interface{}) (*http.Response, error) {
	jsonData, _ := json.Marshal(data)
	return http.Post(BaseURL+endpoint, "application/json", bytes.NewBuffer(jsonData))
}
