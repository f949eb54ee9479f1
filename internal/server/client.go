package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// send pings to peer with this period, must be less than pongWait
	pingInterval = pongWait * 9 / 10
	// maximum message size allowed from peer; generous because chat
	// messages may carry inline data-url attachments
	maxMessageSize = 1 << 20

	sendQueueSize = 64
)

const (
	minStudyMinutes = 1
	maxStudyMinutes = 60
	minBreakMinutes = 1
	maxBreakMinutes = 30
)

// Client is one websocket connection bound to a single room for its
// lifetime. The read pump parses frames and hands them to the room
// goroutine; the write pump serializes everything queued for the peer.
type Client struct {
	id     string
	sender string
	roomId string
	conn   *websocket.Conn
	cs     *SessionServer
	send   chan *ServerMessage

	roomLock sync.Mutex
	room     *Room

	closeOnce sync.Once
	log       *log.Logger
}

func NewClient(conn *websocket.Conn, cs *SessionServer, roomId, sender string, logger *log.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		sender: sender,
		roomId: roomId,
		conn:   conn,
		cs:     cs,
		send:   make(chan *ServerMessage, sendQueueSize),
		log:    logger,
	}
}

func (c *Client) setRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	c.room = r
}

func (c *Client) getRoom() *Room {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	return c.room
}

// queueMessage enqueues a message for the write pump without blocking.
// A client too slow to drain its queue loses messages rather than
// stalling the room goroutine.
func (c *Client) queueMessage(msg *ServerMessage) {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send queue full for client %s, dropping message", c.id)
	}
}

func (c *Client) Read() {
	defer c.cleanup()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Printf("failed to set read deadline: %s", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Printf("unexpected close error: %s", err)
			}
			return
		}

		msg.client = c
		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *ClientMessage) {
	if msg.Timer != nil && msg.Timer.Op == OpDurations {
		if msg.Timer.StudyDuration < minStudyMinutes || msg.Timer.StudyDuration > maxStudyMinutes ||
			msg.Timer.BreakDuration < minBreakMinutes || msg.Timer.BreakDuration > maxBreakMinutes {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}
	}

	r := c.getRoom()
	if r == nil {
		c.queueMessage(ErrServiceUnavailable(msg.Id))
		return
	}

	select {
	case r.clientMsgChan <- msg:
	default:
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Printf("failed to set write deadline: %s", err)
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Printf("failed to write message: %s", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Printf("failed to set write deadline: %s", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) cleanup() {
	if r := c.getRoom(); r != nil {
		select {
		case r.leaveChan <- c:
		default:
			c.log.Printf("leave channel full for room %q", r.id)
		}
	}

	c.cs.deRegisterChan <- c
	c.close()
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil {
			c.log.Printf("error closing connection for client %s: %s", c.id, err)
		}
	})
}
