package control

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/firasghr/GoGameGateway/metrics"
)

// sendAttempts is how many times a frame that does not fit in the
// outbound buffer is retried before it is dropped.
const sendAttempts = 20

// FrameWriter is the subset of *websocket.Conn the outbound queue needs.
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn wraps a control-plane WebSocket connection with a bounded
// outbound queue. All writes go through a single writer goroutine;
// outBytes tracks the bytes queued but not yet written, which is the
// quantity the backpressure threshold is measured against.
type Conn struct {
	ws       FrameWriter
	outCh    chan []byte
	outBytes atomic.Int64

	maxBuffer int64
	clock     clockwork.Clock
	metrics   *metrics.Metrics
	log       zerolog.Logger

	closedCh  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewConn starts the writer goroutine for ws. maxBuffer is the outbound
// byte threshold above which sends are retried and eventually dropped.
func NewConn(ws FrameWriter, maxBuffer int64, clock clockwork.Clock,
	m *metrics.Metrics, log zerolog.Logger) *Conn {
	c := &Conn{
		ws:        ws,
		outCh:     make(chan []byte, 64),
		maxBuffer: maxBuffer,
		clock:     clock,
		metrics:   m,
		log:       log,
		closedCh:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.writeLoop()
	return c
}

// Send queues frame for delivery. When the queued bytes would exceed the
// buffer threshold it backs off and retries, waiting min(50+50·n, 500)ms
// before the n-th retry; after 20 retries the frame is dropped with a
// warning and Send reports false. A drop never closes the connection.
func (c *Conn) Send(frame []byte) bool {
	n := int64(len(frame))
	for attempt := 0; ; attempt++ {
		select {
		case <-c.closedCh:
			return false
		default:
		}
		if c.outBytes.Load()+n <= c.maxBuffer {
			c.outBytes.Add(n)
			select {
			case c.outCh <- frame:
				return true
			case <-c.closedCh:
				c.outBytes.Add(-n)
				return false
			}
		}
		if attempt >= sendAttempts {
			c.metrics.IncrementDroppedFrames()
			c.log.Warn().Int("bytes", len(frame)).
				Msg("outbound frame dropped: send buffer full")
			return false
		}
		delay := time.Duration(min(50+50*attempt, 500)) * time.Millisecond
		select {
		case <-c.clock.After(delay):
		case <-c.closedCh:
			return false
		}
	}
}

// Close tears down the queue and the underlying connection and waits for
// the writer goroutine to exit. Idempotent.
func (c *Conn) Close() {
	c.shutdown()
	c.wg.Wait()
}

// shutdown closes the queue and the socket without waiting for the
// writer. The writer calls it itself after a failed write, so pending
// and future Sends fail fast instead of parking on a dead queue.
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closedCh)
		c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closedCh:
			return
		case frame := <-c.outCh:
			err := c.ws.WriteMessage(websocket.TextMessage, frame)
			c.outBytes.Add(-int64(len(frame)))
			if err != nil {
				c.log.Debug().Err(err).Msg("control write failed")
				c.shutdown()
				return
			}
		}
	}
}
