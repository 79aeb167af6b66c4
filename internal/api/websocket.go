package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"backtest-core/internal/events"
	"backtest-core/internal/monitor"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket streams backtest events. ?run_id= narrows the stream to one run
// and ?topic= (repeatable) to some topics.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("ws upgrade error", "error", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	topics := events.AllEvents
	if q := c.QueryArray("topic"); len(q) > 0 {
		topics = make([]events.Event, 0, len(q))
		for _, t := range q {
			topics = append(topics, events.Event(t))
		}
	}
	runID := c.Query("run_id")

	stream, unsub := s.Bus.SubscribeAll(topics, 256)
	defer unsub()

	monitor.WebSocketClients.Inc()
	defer monitor.WebSocketClients.Dec()

	// Reader loop only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case env, ok := <-stream:
			if !ok {
				return
			}
			if runID != "" && env.RunID != runID {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(env); err != nil {
				s.log.Debug("ws write error", "error", err)
				return
			}
		}
	}
}
