package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/headtracker/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// statusCache keeps the latest Status and fans it out to websocket clients.
type statusCache struct {
	mu   sync.RWMutex
	last Status
	have bool
	subs map[chan Status]struct{}
}

func newStatusCache() *statusCache {
	return &statusCache{subs: make(map[chan Status]struct{})}
}

func (c *statusCache) set(st Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = st
	c.have = true
	for ch := range c.subs {
		select {
		case ch <- st:
		default:
			// slow client, it gets the next one
		}
	}
}

func (c *statusCache) get() (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.have
}

func (c *statusCache) subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 8)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
}

// wsReply is sent back on the orientation websocket after a control message.
type wsReply struct {
	Type    string `json:"type"` // control, error
	Action  string `json:"action,omitempty"`
	Message string `json:"message,omitempty"`
}

// webServer serves the cached status and forwards control actions.
type webServer struct {
	cache       *statusCache
	sendControl func(action string) error
}

func newWebMux(cache *statusCache, sendControl func(action string) error, staticDir string) *http.ServeMux {
	s := &webServer{cache: cache, sendControl: sendControl}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orientation", s.handleOrientation)
	mux.HandleFunc("POST /api/control/{action}", s.handleControl)
	mux.HandleFunc("/ws/orientation", s.handleOrientationWS)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func (s *webServer) handleOrientation(w http.ResponseWriter, r *http.Request) {
	st, ok := s.cache.get()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (s *webServer) handleControl(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	if !validAction(action) {
		http.Error(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
		return
	}
	if err := s.sendControl(action); err != nil {
		log.Printf("web: control %s: %v", action, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	log.Printf("web: control %s forwarded", action)
	w.WriteHeader(http.StatusAccepted)
}

// handleOrientationWS pushes every status to the client and accepts
// {"action": "recenter"|"reset"} messages in the other direction.
func (s *webServer) handleOrientationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := s.cache.subscribe()
	defer cancel()

	// Only this goroutine writes to conn; the reader hands replies over.
	replies := make(chan wsReply, 4)
	done := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		defer close(done)
		for {
			var msg ControlMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("web: websocket read error: %v", err)
				}
				return
			}

			reply := wsReply{Type: "control", Action: msg.Action}
			if !validAction(msg.Action) {
				reply = wsReply{Type: "error", Action: msg.Action, Message: "unknown action"}
			} else if err := s.sendControl(msg.Action); err != nil {
				reply = wsReply{Type: "error", Action: msg.Action, Message: err.Error()}
			}
			select {
			case replies <- reply:
			case <-quit:
				return
			}
		}
	}()

	if st, ok := s.cache.get(); ok {
		if err := conn.WriteJSON(st); err != nil {
			return
		}
	}

	for {
		var err error
		select {
		case <-done:
			return
		case st := <-updates:
			err = conn.WriteJSON(st)
		case reply := <-replies:
			err = conn.WriteJSON(reply)
		}
		if err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}
}

// RunWeb serves the latest orientation over HTTP and websocket, fed by the
// tracker's MQTT messages.
func RunWeb() error {
	cfg := config.Get()
	cache := newStatusCache()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicOrientation, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("web: MQTT payload unmarshal error: %v", err)
			return
		}
		cache.set(st)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicOrientation)

	sendControl := func(action string) error {
		return publishJSON(client, cfg.TopicControl, false, ControlMessage{Action: action})
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: listening on %s", addr)
	return http.ListenAndServe(addr, newWebMux(cache, sendControl, "web"))
}
