package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pro-chat/internal/identity"
	myMiddleware "pro-chat/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (dev mode)
	},
}

type Handler struct {
	hub        *Hub
	router     *Router
	aggregator *Aggregator
	guard      *Guard
	store      Store
}

func NewHandler(hub *Hub, router *Router, aggregator *Aggregator, guard *Guard, store Store) *Handler {
	return &Handler{
		hub:        hub,
		router:     router,
		aggregator: aggregator,
		guard:      guard,
		store:      store,
	}
}

// ServeWs upgrades an authenticated request to the live channel.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	who, ok := myMiddleware.IdentityFrom(r.Context())
	name, ok2 := myMiddleware.NameFrom(r.Context())
	if !ok || !ok2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		ChannelID: uuid.NewString(),
		Identity:  who,
		Name:      name,
		hub:       h.hub,
		conn:      conn,
		Send:      make(chan []byte, 256),
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// partnerFromURL reads the {partnerClass}/{partnerID} pair shared by the
// conversation-scoped routes.
func partnerFromURL(r *http.Request) (identity.Participant, error) {
	class, err := identity.ParseClass(chi.URLParam(r, "partnerClass"))
	if err != nil {
		return identity.Participant{}, err
	}
	id, err := strconv.Atoi(chi.URLParam(r, "partnerID"))
	if err != nil || id <= 0 {
		return identity.Participant{}, errors.New("invalid partner id")
	}
	return identity.Participant{Class: class, ID: id}, nil
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (owner, partner identity.Participant, ok bool) {
	owner, found := myMiddleware.IdentityFrom(r.Context())
	if !found {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return owner, partner, false
	}

	partner, err := partnerFromURL(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return owner, partner, false
	}

	if err := h.guard.Authorize(r.Context(), owner, partner); err != nil {
		if errors.Is(err, ErrPartnerNotFound) {
			http.Error(w, "conversation partner not found", http.StatusNotFound)
		} else {
			log.Printf("authorize %s/%s: %v", owner, partner, err)
			http.Error(w, "temporarily unavailable, please retry", http.StatusBadGateway)
		}
		return owner, partner, false
	}
	return owner, partner, true
}

// GetConversations returns the caller's conversation list, newest first.
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	owner, ok := myMiddleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	summaries, err := h.aggregator.Conversations(r.Context(), owner)
	if err != nil {
		log.Printf("list conversations for %s: %v", owner, err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusBadGateway)
		return
	}
	if summaries == nil {
		summaries = []ConversationSummary{}
	}

	json.NewEncoder(w).Encode(summaries)
}

// GetMessages returns one page of the conversation with a partner.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	owner, partner, ok := h.authorize(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	messages, err := h.store.MessagesBetween(r.Context(), owner, partner, limit, offset)
	if err != nil {
		log.Printf("messages %s/%s: %v", owner, partner, err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusBadGateway)
		return
	}
	if messages == nil {
		messages = []Message{}
	}

	json.NewEncoder(w).Encode(messages)
}

// MarkRead flips every unread message from the partner and reports the
// caller's fresh unread total to its live channel.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	owner, partner, ok := h.authorize(w, r)
	if !ok {
		return
	}

	flipped, err := h.store.MarkRead(r.Context(), owner, partner)
	if err != nil {
		log.Printf("mark read %s/%s: %v", owner, partner, err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusBadGateway)
		return
	}

	if count, err := h.store.UnreadCount(r.Context(), owner); err == nil {
		h.router.events.NotifyUnreadCount(owner, count)
	}

	json.NewEncoder(w).Encode(map[string]int64{"read": flipped})
}

// GetUnreadCount returns the caller's total unread badge.
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	owner, ok := myMiddleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.store.UnreadCount(r.Context(), owner)
	if err != nil {
		log.Printf("unread count for %s: %v", owner, err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusBadGateway)
		return
	}

	json.NewEncoder(w).Encode(map[string]int{"count": count})
}

// SendMessage is the store-and-forward fallback for callers without a live
// channel. Same semantics as a socket send.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	owner, ok := myMiddleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var out Outbound
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// The request's identity is authoritative, whatever the body says.
	out.Sender = owner

	persisted, delivered, err := h.router.Send(r.Context(), out)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownRecipient):
			http.Error(w, "recipient does not exist", http.StatusBadRequest)
		default:
			log.Printf("send %s -> %s: %v", owner, out.Receiver, err)
			http.Error(w, "message not sent — please retry", http.StatusBadGateway)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   persisted,
		"delivered": delivered,
	})
}

// DeleteConversation removes the full bidirectional slice with a partner.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	owner, partner, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteConversation(r.Context(), owner, partner); err != nil {
		log.Printf("delete conversation %s/%s: %v", owner, partner, err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusBadGateway)
		return
	}

	h.router.events.NotifyRefresh(partner)
	w.WriteHeader(http.StatusNoContent)
}
