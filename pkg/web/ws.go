package web

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/goplai/courtside/internal/log"
	"github.com/goplai/courtside/pkg/protocol"
	"github.com/goplai/courtside/pkg/session"
	"github.com/goplai/courtside/pkg/track"
)

// wsConn serializes writes to one WebSocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Send writes a protocol message as a text frame.
func (w *wsConn) Send(msg *protocol.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// sendFunc is the message sink the emitter and input provider write to.
type sendFunc func(*protocol.Message) error

// wsEmitter implements session.Emitter over a WebSocket connection.
type wsEmitter struct {
	send sendFunc
}

func (e *wsEmitter) Status(frameNum, frameTotal int, fps float64, message string) error {
	msg, err := protocol.NewMessage(protocol.TypeStatusUpdate, protocol.StatusUpdate{
		FrameNum:   frameNum,
		FrameTotal: frameTotal,
		FPS:        fps,
		Message:    message,
	})
	if err != nil {
		return err
	}
	return e.send(msg)
}

func (e *wsEmitter) Heartbeat() error {
	msg, err := protocol.NewHeartbeat()
	if err != nil {
		return err
	}
	return e.send(msg)
}

func (e *wsEmitter) Error(frameNum int, fps float64, message string) error {
	msg, err := protocol.NewMessage(protocol.TypeError, protocol.ErrorData{
		Message:  message,
		FrameNum: frameNum,
		FPS:      fps,
	})
	if err != nil {
		return err
	}
	return e.send(msg)
}

func (e *wsEmitter) Completed(frameNum int, fps float64, summary track.Summary) error {
	msg, err := protocol.NewMessage(protocol.TypeCompleted, protocol.Completion{
		FrameNum: frameNum,
		FPS:      fps,
		Summary:  summary,
	})
	if err != nil {
		return err
	}
	return e.send(msg)
}

// wsInput implements session.InputProvider over a WebSocket
// connection. The read loop feeds parsed client responses into
// responses; a nil entry marks a frame that could not be parsed.
// While a request is outstanding it emits heartbeats so the client
// knows the session is alive.
type wsInput struct {
	send      sendFunc
	responses <-chan *protocol.UserInputResponse
	timeout   time.Duration
	heartbeat time.Duration
}

// await sends the request and blocks for the next client response.
func (p *wsInput) await(ctx context.Context, req protocol.UserInputRequest) (*protocol.UserInputResponse, error) {
	msg, err := protocol.NewMessage(protocol.TypeUserInputRequired, req)
	if err != nil {
		return nil, err
	}
	if err := p.send(msg); err != nil {
		return nil, fmt.Errorf("send input request: %w", err)
	}

	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, session.ErrInputTimeout
		case <-ticker.C:
			hb, err := protocol.NewHeartbeat()
			if err != nil {
				return nil, err
			}
			if err := p.send(hb); err != nil {
				return nil, fmt.Errorf("send heartbeat: %w", err)
			}
		case resp, ok := <-p.responses:
			if !ok {
				return nil, fmt.Errorf("client disconnected")
			}
			if resp == nil {
				return nil, session.ErrInvalidResponse
			}
			return resp, nil
		}
	}
}

func (p *wsInput) RequestPlayerSelection(ctx context.Context, req protocol.UserInputRequest) (*int, error) {
	resp, err := p.await(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Continue {
		return nil, nil
	}
	return resp.PlayerID, nil
}

func (p *wsInput) RequestConfirmation(ctx context.Context, req protocol.UserInputRequest) (bool, error) {
	resp, err := p.await(ctx, req)
	if err != nil {
		return false, err
	}
	if resp.Confirmed == nil {
		return false, session.ErrInvalidResponse
	}
	return *resp.Confirmed, nil
}

func (p *wsInput) RequestReassignment(ctx context.Context, req protocol.UserInputRequest) (session.ReassignmentChoice, error) {
	resp, err := p.await(ctx, req)
	if err != nil {
		return session.ReassignmentChoice{}, err
	}
	return mapReassignment(resp), nil
}

// mapReassignment translates a client response into a runner choice.
// Choice 0 and "continue" both abandon tracking; a positive choice is a
// direct player id pick. A response with none of the fields set is no
// selection this cycle.
func mapReassignment(resp *protocol.UserInputResponse) session.ReassignmentChoice {
	switch {
	case resp.Choice != nil && *resp.Choice == 0, resp.Continue:
		return session.ReassignmentChoice{GiveUp: true}
	case resp.Choice != nil && *resp.Choice > 0:
		return session.ReassignmentChoice{PlayerID: resp.Choice}
	case resp.PlayerID != nil:
		return session.ReassignmentChoice{PlayerID: resp.PlayerID}
	case resp.SuggestionIndex != nil:
		return session.ReassignmentChoice{SuggestionIndex: resp.SuggestionIndex}
	}
	return session.ReassignmentChoice{}
}

// readResponses pumps client frames into a response channel until the
// connection drops, then cancels the session and closes the channel.
func readResponses(conn *websocket.Conn, cancel context.CancelFunc) <-chan *protocol.UserInputResponse {
	responses := make(chan *protocol.UserInputResponse, 1)
	go func() {
		defer close(responses)
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			resp, err := protocol.ParseUserInputResponse(data)
			if err != nil {
				log.Warn("unparseable client frame", "error", err)
				resp = nil
			}
			select {
			case responses <- resp:
			default:
				// Unsolicited frame with nobody waiting; drop it.
			}
		}
	}()
	return responses
}
