// Package server coordinates client registration, history replay, message
// broadcast, and connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type publication struct {
	sender *Client
	msg    Message
	result chan publishResult
}

type publishResult struct {
	report BroadcastReport
	err    error
}

// Hub owns the active connection set and the message log. Both are touched
// only by the Run goroutine; every other goroutine goes through the request
// channels below.
type Hub struct {
	clients    map[*Client]struct{}
	history    *messageLog
	register   chan *Client
	unregister chan *Client
	publish    chan publication
	stats      chan chan Stats
	snapshot   chan chan []Message

	sendBuffer int
	startedAt  time.Time
	logger     *slog.Logger

	// launch starts the pumps for a newly registered client.
	launch func(c *Client, replay []Message)

	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	started   atomic.Bool
	done      chan struct{}
	closeDone sync.Once
}

// NewHub creates a Hub whose clients get outbound queues of sendBuffer
// messages. The returned Hub does nothing until Run is called.
func NewHub(sendBuffer int, logger *slog.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		history:    newMessageLog(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan publication),
		stats:      make(chan chan Stats),
		snapshot:   make(chan chan []Message),
		sendBuffer: sendBuffer,
		startedAt:  time.Now(),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.launch = h.startPumps
	return h
}

// Register replays the history to c and adds it to the active set. Snapshot
// and insertion happen in one hub step, so c sees every logged message
// exactly once.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister removes c from the active set. It is safe to call more than
// once and after shutdown.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish appends msg to the log and broadcasts it to every active client,
// sender included.
func (h *Hub) Publish(msg Message) (BroadcastReport, error) {
	return h.publishFrom(nil, msg)
}

// publishFrom is Publish on behalf of sender. A sender that is no longer in
// the active set gets ErrClientClosed and nothing is logged.
func (h *Hub) publishFrom(sender *Client, msg Message) (BroadcastReport, error) {
	req := publication{sender: sender, msg: msg, result: make(chan publishResult, 1)}
	select {
	case h.publish <- req:
	case <-h.done:
		return BroadcastReport{}, ErrHubClosed
	}
	res := <-req.result
	return res.report, res.err
}

// Stats returns the current connection and log counts. After shutdown only
// the uptime is meaningful.
func (h *Hub) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
		return <-reply
	case <-h.done:
		return h.makeStats(0, 0)
	}
}

// History returns a copy of the message log.
func (h *Hub) History() []Message {
	reply := make(chan []Message, 1)
	select {
	case h.snapshot <- reply:
		entries := <-reply
		out := make([]Message, len(entries))
		copy(out, entries)
		return out
	case <-h.done:
		return nil
	}
}

// Run starts the hub's event loop. It must run in its own goroutine and
// returns after Shutdown.
func (h *Hub) Run() {
	h.started.Store(true)
	defer h.closeDone.Do(func() { close(h.done) })

	if h.ctx.Err() != nil {
		return
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case pub := <-h.publish:
			if pub.sender != nil {
				if _, ok := h.clients[pub.sender]; !ok {
					pub.result <- publishResult{err: ErrClientClosed}
					continue
				}
			}
			pub.result <- publishResult{report: h.handlePublish(pub.msg)}

		case reply := <-h.stats:
			reply <- h.makeStats(len(h.clients), h.history.len())

		case reply := <-h.snapshot:
			reply <- h.history.snapshot()
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		h.logger.Warn("received nil client registration; skipping")
		return
	}
	if _, exists := h.clients[client]; exists {
		return
	}

	replay := h.history.snapshot()
	h.clients[client] = struct{}{}
	h.logger.Info("client registered",
		"client", client.id,
		"addr", client.addr,
		"replay", len(replay),
		"clients", len(h.clients))

	h.launch(client, replay)
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	h.removeClient(client)
	h.logger.Info("client unregistered",
		"client", client.id,
		"addr", client.addr,
		"clients", len(h.clients))
}

// removeClient drops client from the set and closes its queue. Only the hub
// goroutine closes queues.
func (h *Hub) removeClient(client *Client) {
	delete(h.clients, client)
	close(client.send)
}

// closeConn closes the client's socket so its reader stops.
func (h *Hub) closeConn(client *Client) {
	if client.conn == nil {
		return
	}
	if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
		h.logger.Error("error closing client connection", "client", client.id, "addr", client.addr, "err", err)
	}
}

func (h *Hub) handlePublish(msg Message) BroadcastReport {
	logged := h.history.append(msg)
	report := h.broadcast(logged)

	h.logger.Debug("broadcast message",
		"seq", report.Seq,
		"bytes", len(logged.Data),
		"recipients", report.Recipients,
		"delivered", report.Delivered)
	for _, failure := range report.Failures {
		h.logger.Warn("broadcast delivery failed",
			"seq", report.Seq,
			"client", failure.ClientID,
			"addr", failure.Addr,
			"err", failure.Err)
	}
	return report
}

// broadcast enqueues msg on every active client's queue without blocking.
// A client whose queue is full is evicted; the others are unaffected.
func (h *Hub) broadcast(msg Message) BroadcastReport {
	report := BroadcastReport{Seq: msg.Seq, Recipients: len(h.clients)}

	var evicted []*Client
	for client := range h.clients {
		select {
		case client.send <- msg:
			report.Delivered++
		default:
			report.Failures = append(report.Failures, Delivery{
				ClientID: client.id,
				Addr:     client.addr,
				Err:      ErrSendBufferFull,
			})
			evicted = append(evicted, client)
		}
	}

	for _, client := range evicted {
		h.removeClient(client)
		h.closeConn(client)
		h.logger.Warn("client evicted", "client", client.id, "addr", client.addr, "clients", len(h.clients))
	}
	return report
}

func (h *Hub) makeStats(clients, logged int) Stats {
	uptime := time.Since(h.startedAt)
	return Stats{
		ActiveConnections: clients,
		LoggedMessages:    logged,
		Uptime:            uptime,
		UptimeSeconds:     uptime.Seconds(),
	}
}

func (h *Hub) startPumps(client *Client, replay []Message) {
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump(replay)
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// shutdownClients closes every queue and connection still registered.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	count := len(h.clients)
	for client := range h.clients {
		h.removeClient(client)
		h.closeConn(client)
	}

	h.logger.Info("closed client connections", "count", count)
}

// Shutdown stops the hub and waits for all client goroutines to finish.
// It returns context.DeadlineExceeded if they are still running after timeout.
// A hub whose Run was never started is marked closed and returns at once.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	if !h.started.Load() {
		h.closeDone.Do(func() { close(h.done) })
		return nil
	}
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
