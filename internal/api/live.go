package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pingwatch/internal/models"
)

const liveWriteTimeout = 5 * time.Second

var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type liveSnapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Items       []models.Result `json:"items"`
}

// LiveResults streams the full result set over a websocket: once on connect,
// then every push interval until the client goes away.
func (h *Handlers) LiveResults(pushInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := liveUpgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Debug("websocket upgrade failed", slog.Any("err", err))
			return
		}
		h.serveLiveConnection(r, conn, pushInterval)
	}
}

func (h *Handlers) serveLiveConnection(r *http.Request, conn *websocket.Conn, pushInterval time.Duration) {
	defer conn.Close()

	if err := h.writeLiveSnapshot(r, conn); err != nil {
		return
	}

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	// The reader only exists to notice the client closing the connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if err := h.writeLiveSnapshot(r, conn); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handlers) writeLiveSnapshot(r *http.Request, conn *websocket.Conn) error {
	results, err := h.monitor.Results(r.Context())
	if err != nil {
		h.logger.Error("error reading results for live feed", slog.Any("err", err))
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return conn.WriteJSON(liveSnapshot{GeneratedAt: time.Now().UTC(), Items: results})
}
