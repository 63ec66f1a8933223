package handler

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/linkforty/linkforty/internal/eventbus"
	"go.uber.org/zap"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// LiveHandler streams click events to a debug client over a websocket.
// The upgrade is hand-rolled on top of fasthttp's native Hijack support,
// since no websocket middleware is wired into this Fiber app.
type LiveHandler struct {
	bus    *eventbus.Bus
	logger *zap.Logger
}

// NewLiveHandler creates a live-stream handler bound to bus.
func NewLiveHandler(bus *eventbus.Bus, logger *zap.Logger) *LiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveHandler{bus: bus, logger: logger}
}

// Register wires the debug live-stream route onto the provided router.
func (h *LiveHandler) Register(router fiber.Router) {
	router.Get("/api/debug/live", h.Stream)
}

// Stream upgrades the connection and pushes click records matching the
// requested owner_id/link_id filter as JSON text frames until the client
// disconnects.
func (h *LiveHandler) Stream(c *fiber.Ctx) error {
	if !strings.EqualFold(c.Get("Upgrade"), "websocket") {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "expected websocket upgrade"})
	}
	key := c.Get("Sec-WebSocket-Key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing Sec-WebSocket-Key"})
	}

	var filter eventbus.Filter
	if owner := c.Query("owner_id"); owner != "" {
		filter.OwnerID = &owner
	}
	if link := c.Query("link_id"); link != "" {
		filter.LinkID = &link
	}

	c.Set("Upgrade", "websocket")
	c.Set("Connection", "Upgrade")
	c.Set("Sec-WebSocket-Accept", acceptKey(key))
	c.Status(fiber.StatusSwitchingProtocols)

	c.Context().HijackSetNoResponse(true)
	c.Context().Hijack(func(conn net.Conn) {
		h.serve(conn, filter)
	})
	return nil
}

func acceptKey(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func (h *LiveHandler) serve(conn net.Conn, filter eventbus.Filter) {
	defer conn.Close()

	var writeMu sync.Mutex
	closed := make(chan struct{})
	var closeOnce sync.Once

	cancel := h.bus.Subscribe(filter, func(rec eventbus.ClickRecord) {
		payload, err := json.Marshal(rec)
		if err != nil {
			h.logger.Error("live stream: marshal click record", zap.Error(err))
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		select {
		case <-closed:
			return
		default:
		}
		if err := writeTextFrame(conn, payload); err != nil {
			h.logger.Debug("live stream: write failed, closing", zap.Error(err))
			closeOnce.Do(func() { close(closed) })
		}
	})
	defer cancel()

	// The stream is server-push only; incoming bytes (pings, close
	// frames) are not parsed, only used to detect disconnect.
	reader := bufio.NewReader(conn)
	for {
		if _, err := reader.ReadByte(); err != nil {
			closeOnce.Do(func() { close(closed) })
			return
		}
	}
}

// writeTextFrame writes an unmasked RFC 6455 text frame — server-to-client
// frames are never masked.
func writeTextFrame(conn net.Conn, payload []byte) error {
	var header []byte
	length := len(payload)

	switch {
	case length <= 125:
		header = []byte{0x81, byte(length)}
	case length <= 65535:
		header = make([]byte, 4)
		header[0] = 0x81
		header[1] = 126
		binary.BigEndian.PutUint16(header[2:], uint16(length))
	default:
		header = make([]byte, 10)
		header[0] = 0x81
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:], uint64(length))
	}

	if _, err := conn.Write(header); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}
