// Package protocol defines the WebSocket message types exchanged
// between the processing pipeline and its client during a session.
// This package is shared between the server and the example client.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goplai/courtside/pkg/track"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → Client messages
	TypeStatusUpdate      MessageType = "status_update"      // Processing progress
	TypeUserInputRequired MessageType = "user_input_required" // Human input needed
	TypeError             MessageType = "error"              // Fatal session error
	TypeCompleted         MessageType = "completed"          // Final summary
	TypeHeartbeat         MessageType = "heartbeat"          // Keep-alive
)

// InputType identifies the kind of user input being requested
type InputType string

const (
	InputPlayerSelection       InputType = "player_selection"
	InputConfirmation          InputType = "confirmation"
	InputReassignmentSelection InputType = "reassignment_selection"
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// StatusUpdate reports processing progress
type StatusUpdate struct {
	FrameNum   int     `json:"frame_num"`
	FrameTotal int     `json:"frame_total"`
	FPS        float64 `json:"fps"`
	Message    string  `json:"message"`
}

// PlayerInfo describes a detected player offered for selection
type PlayerInfo struct {
	ID         int        `json:"id"`
	Box        [4]float64 `json:"bbox"`
	Center     [2]float64 `json:"center"`
	Confidence float64    `json:"confidence"`
}

// SuggestionInfo is one confidence-ranked reassignment candidate
type SuggestionInfo struct {
	ID         int        `json:"id"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"bbox"`
}

// UserInputRequest asks the client to resolve a tracking decision.
// Exactly one of the request payloads is set depending on InputType.
type UserInputRequest struct {
	InputType InputType `json:"input_type"`
	FrameNum  int       `json:"frame_num"`

	// player_selection
	AvailablePlayers []PlayerInfo `json:"available_players,omitempty"`

	// confirmation
	OriginalID  int         `json:"original_id,omitempty"`
	CurrentID   int         `json:"current_id,omitempty"`
	OriginalBox *[4]float64 `json:"original_bbox,omitempty"`
	CurrentBox  *[4]float64 `json:"current_bbox,omitempty"`

	// reassignment_selection
	Suggestions    []SuggestionInfo `json:"suggestions,omitempty"`
	CurrentTracked *PlayerInfo      `json:"current_tracked,omitempty"`

	Message string `json:"message"`
}

// ErrorData reports a fatal processing error
type ErrorData struct {
	Message  string  `json:"message"`
	FrameNum int     `json:"frame_num"`
	FPS      float64 `json:"fps"`
}

// Completion carries the final session summary
type Completion struct {
	FrameNum int           `json:"frame_num"`
	FPS      float64       `json:"fps"`
	Summary  track.Summary `json:"summary"`
}

// Heartbeat keeps long-lived connections alive during quiet stretches
type Heartbeat struct {
	Timestamp int64 `json:"timestamp"`
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// UserInputResponse is the client's answer to a UserInputRequest.
// Field presence depends on the request kind: player_selection sets
// PlayerID (null means skip); confirmation sets Confirmed; reassignment
// sets exactly one of Choice (0 = give up), PlayerID or SuggestionIndex
// (1-based).
type UserInputResponse struct {
	PlayerID        *int  `json:"player_id,omitempty"`
	Confirmed       *bool `json:"confirmed,omitempty"`
	Choice          *int  `json:"choice,omitempty"`
	Continue        bool  `json:"continue,omitempty"`
	SuggestionIndex *int  `json:"suggestion_index,omitempty"`
}

// ParseUserInputResponse decodes a raw client frame into a response
func ParseUserInputResponse(data []byte) (*UserInputResponse, error) {
	var resp UserInputResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("invalid user input response: %w", err)
	}
	return &resp, nil
}

// =============================================================================
// Helpers
// =============================================================================

// NewPlayerInfo converts a tracking observation to its wire form
func NewPlayerInfo(obs track.PlayerObservation) PlayerInfo {
	return PlayerInfo{
		ID:         obs.ID,
		Box:        [4]float64{obs.Box.X1, obs.Box.Y1, obs.Box.X2, obs.Box.Y2},
		Center:     [2]float64{obs.Center.X, obs.Center.Y},
		Confidence: obs.Confidence,
	}
}

// PlayerList converts a frame's player track to a wire list in
// ascending id order
func PlayerList(players track.PlayerTrack) []PlayerInfo {
	list := make([]PlayerInfo, 0, len(players))
	for _, id := range players.IDs() {
		list = append(list, NewPlayerInfo(players[id]))
	}
	return list
}

// NewHeartbeat builds a heartbeat message
func NewHeartbeat() (*Message, error) {
	return NewMessage(TypeHeartbeat, Heartbeat{Timestamp: time.Now().UnixMilli()})
}
