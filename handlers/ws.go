package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"github.com/LovationAdmin/astrodart-api/middleware"
	"github.com/LovationAdmin/astrodart-api/utils"
)

const sessionUserKey = "user_id"

type WSHandler struct {
	M *melody.Melody
}

// wsEvent is the message pushed to a user's sessions after a job writes
// their document.
type wsEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	At      string      `json:"at"`
}

func NewWSHandler() *WSHandler {
	m := melody.New()
	m.Config.MaxMessageSize = 1024 * 1024

	// Keep-alive for hosts that drop idle connections
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		userID, _ := s.Get(sessionUserKey)
		log.Printf("✅ Client connected: %v", utils.MaskEmail(asString(userID)))
	})

	m.HandleDisconnect(func(s *melody.Session) {
		userID, _ := s.Get(sessionUserKey)
		log.Printf("🔌 Client disconnected: %v", utils.MaskEmail(asString(userID)))
	})

	m.HandleError(func(s *melody.Session, err error) {
		log.Printf("❌ WebSocket Error: %v", err)
	})

	return &WSHandler{M: m}
}

// HandleWS upgrades an authenticated request and tags the session with the
// caller's email.
func (h *WSHandler) HandleWS(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	keys := map[string]interface{}{sessionUserKey: userID}
	if err := h.M.HandleRequestWithKeys(c.Writer, c.Request, keys); err != nil {
		log.Printf("❌ Failed to upgrade websocket: %v", err)
	}
}

// NotifyUser sends event to every open session of userID.
func (h *WSHandler) NotifyUser(userID string, event string, payload interface{}) {
	msg, err := json.Marshal(wsEvent{
		Type:    event,
		Payload: payload,
		At:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("⚠️ Could not encode %s event: %v", event, err)
		return
	}

	err = h.M.BroadcastFilter(msg, func(q *melody.Session) bool {
		id, exists := q.Get(sessionUserKey)
		return exists && id == userID
	})
	if err != nil {
		log.Printf("⚠️ Error notifying %s: %v", utils.MaskEmail(userID), err)
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
