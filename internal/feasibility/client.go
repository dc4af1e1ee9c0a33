package feasibility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rutaescolar/planner-api/internal/models"
	"github.com/rutaescolar/planner-api/pkg/config"
)

// State describes the validation channel's connection lifecycle.
type State string

const (
	StateConnected    State = "connected"
	StateConnecting   State = "connecting"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

// ErrNotConnected is returned when a request is attempted without a live
// channel. Callers treat it as "cannot confirm feasibility", never fatal.
var ErrNotConnected = errors.New("feasibility channel not connected")

// AssignDecision is the service's verdict on placing a route onto a bus.
type AssignDecision struct {
	Feasible bool   `json:"feasible"`
	Reason   string `json:"reason,omitempty"`
}

// BusValidation is the single-bus verdict.
type BusValidation struct {
	Feasible    bool           `json:"feasible"`
	Message     string         `json:"message,omitempty"`
	Issues      []models.Issue `json:"issues,omitempty"`
	IssuesCount int            `json:"issues_count,omitempty"`
}

// ConnectionEstimate carries the point-to-point travel time in minutes.
type ConnectionEstimate struct {
	TravelTime int `json:"travel_time"`
}

type envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client talks to the OSRM validation gateway over a single websocket,
// multiplexing request/response pairs by correlation id.
type Client struct {
	cfg    config.FeasibilityConfig
	logger *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	pending map[string]chan envelope
}

// NewClient builds a client; call Run to bring the channel up.
func NewClient(cfg config.FeasibilityConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ReconnectMinWait <= 0 {
		cfg.ReconnectMinWait = time.Second
	}
	if cfg.ReconnectMaxWait <= 0 {
		cfg.ReconnectMaxWait = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		state:   StateDisconnected,
		pending: make(map[string]chan envelope),
	}
}

// State reports the current channel state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run dials and keeps the channel alive until ctx is cancelled, reconnecting
// with capped exponential backoff.
func (c *Client) Run(ctx context.Context) {
	wait := c.cfg.ReconnectMinWait
	first := true
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		if first {
			c.setState(StateConnecting)
		} else {
			c.setState(StateReconnecting)
		}

		conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
		if err != nil {
			c.logger.Warn("feasibility dial failed", zap.String("url", c.cfg.URL), zap.Error(err))
			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return
			case <-time.After(wait):
			}
			if wait *= 2; wait > c.cfg.ReconnectMaxWait {
				wait = c.cfg.ReconnectMaxWait
			}
			first = false
			continue
		}
		conn.SetReadLimit(1 << 20)

		c.mu.Lock()
		c.conn = conn
		c.state = StateConnected
		c.mu.Unlock()
		c.logger.Info("feasibility channel connected", zap.String("url", c.cfg.URL))
		wait = c.cfg.ReconnectMinWait
		first = false

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.failPendingLocked("feasibility channel lost")
		c.mu.Unlock()
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close(websocket.StatusNormalClosure, "")
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				c.logger.Debug("feasibility read error", zap.Error(err))
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("invalid feasibility frame", zap.Error(err))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		if ok {
			delete(c.pending, msg.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// CanAssignRoute asks whether the route fits the bus's existing sequence once
// real drive times are considered.
func (c *Client) CanAssignRoute(ctx context.Context, route models.Route, existing []models.Route) (AssignDecision, error) {
	payload := struct {
		Route    models.Route   `json:"route"`
		Existing []models.Route `json:"existing_routes"`
	}{Route: route, Existing: existing}

	var decision AssignDecision
	if err := c.request(ctx, "can_assign_route", payload, &decision); err != nil {
		return AssignDecision{}, err
	}
	return decision, nil
}

// ValidateBus validates a single bus's whole sequence.
func (c *Client) ValidateBus(ctx context.Context, bus models.Bus) (BusValidation, error) {
	var verdict BusValidation
	if err := c.request(ctx, "validate_bus", bus, &verdict); err != nil {
		return BusValidation{}, err
	}
	return verdict, nil
}

// ValidateAllBuses runs the whole-schedule validation across days.
func (c *Client) ValidateAllBuses(ctx context.Context, days []models.DayValidationPayload, persist bool) (*models.GlobalValidationReport, error) {
	payload := struct {
		Days    []models.DayValidationPayload `json:"days"`
		Persist bool                          `json:"persist"`
	}{Days: days, Persist: persist}

	report := &models.GlobalValidationReport{}
	if err := c.request(ctx, "validate_all_buses", payload, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ValidateConnection looks up the drive time from routeA's end to routeB's
// start.
func (c *Client) ValidateConnection(ctx context.Context, a, b models.Route) (ConnectionEstimate, error) {
	payload := struct {
		From models.Route `json:"from"`
		To   models.Route `json:"to"`
	}{From: a, To: b}

	var estimate ConnectionEstimate
	if err := c.request(ctx, "validate_connection", payload, &estimate); err != nil {
		return ConnectionEstimate{}, err
	}
	return estimate, nil
}

func (c *Client) request(ctx context.Context, msgType string, payload, dest interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", msgType, err)
	}

	id := uuid.NewString()
	msg := envelope{Type: msgType, ID: id, Payload: raw}
	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", msgType, err)
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil || c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	ch := make(chan envelope, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	err = conn.Write(writeCtx, websocket.MessageText, frame)
	cancel()
	if err != nil {
		c.dropPending(id)
		return fmt.Errorf("write %s frame: %w", msgType, err)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		c.dropPending(id)
		return ctx.Err()
	case <-timer.C:
		c.dropPending(id)
		return fmt.Errorf("%s timed out after %s", msgType, c.cfg.RequestTimeout)
	case reply := <-ch:
		if reply.Error != "" {
			return fmt.Errorf("%s rejected: %s", msgType, reply.Error)
		}
		if dest == nil || len(reply.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(reply.Payload, dest); err != nil {
			return fmt.Errorf("decode %s reply: %w", msgType, err)
		}
		return nil
	}
}

func (c *Client) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) failPendingLocked(reason string) {
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- envelope{ID: id, Error: reason}
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
