package chat

import (
	"sync"
	"time"
)

// Conn is a realtime connection the broadcaster can write frames to.
type Conn interface {
	WriteFrame(data []byte) error
	Close() error
}

const (
	// DefaultBufferSize is the per-connection live frame budget.
	DefaultBufferSize = 16
	// MinBufferSize is the smallest accepted live frame budget.
	MinBufferSize = 4

	// greetingFrames are queued on connect on top of the live budget.
	greetingFrames = 2
	// enqueueGrace is how long a full buffer may take to drain before the
	// connection counts as slow.
	enqueueGrace = 50 * time.Millisecond
)

// clientWriter owns all writes to one connection so a slow or broken
// participant never blocks the broadcaster loop for long.
type clientWriter struct {
	conn        Conn
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newClientWriter(conn Conn, bufferSize int, onFailure func(err error, done <-chan struct{})) *clientWriter {
	cw := &clientWriter{
		conn:        conn,
		sendChannel: make(chan []byte, bufferSize+greetingFrames),
		doneChannel: make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.run(onFailure)
	return cw
}

func (cw *clientWriter) run(onFailure func(err error, done <-chan struct{})) {
	defer cw.wg.Done()

	for {
		select {
		case frame := <-cw.sendChannel:
			if err := cw.conn.WriteFrame(frame); err != nil {
				onFailure(err, cw.doneChannel)
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// enqueue reports false when the send buffer stays full for grace.
func (cw *clientWriter) enqueue(frame []byte, grace time.Duration) bool {
	select {
	case cw.sendChannel <- frame:
		return true
	default:
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case cw.sendChannel <- frame:
		return true
	case <-timer.C:
		return false
	case <-cw.doneChannel:
		return false
	}
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.conn.Close()
	})
	cw.wg.Wait()
}
