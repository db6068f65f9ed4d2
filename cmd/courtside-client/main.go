// courtside-client: interactive terminal client for a processing
// session. Connects to the session WebSocket, prints progress, and
// answers human-input requests from stdin.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/goplai/courtside/pkg/protocol"
)

var (
	server    = flag.String("server", "ws://localhost:8000", "server WebSocket base URL")
	sessionID = flag.String("session", "", "session id to process (required)")
)

func main() {
	flag.Parse()
	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "usage: courtside-client -session <session_id> [-server ws://host:port]")
		os.Exit(2)
	}

	url := strings.TrimRight(*server, "/") + "/ws/" + *sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", url, err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", url)

	stdin := bufio.NewReader(os.Stdin)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "connection closed: %v\n", err)
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad message: %v\n", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeStatusUpdate:
			var status protocol.StatusUpdate
			if err := msg.ParseData(&status); err == nil {
				fmt.Printf("[%d/%d] %s\n", status.FrameNum, status.FrameTotal, status.Message)
			}
		case protocol.TypeHeartbeat:
			// Quiet keep-alive.
		case protocol.TypeUserInputRequired:
			var req protocol.UserInputRequest
			if err := msg.ParseData(&req); err != nil {
				fmt.Fprintf(os.Stderr, "bad input request: %v\n", err)
				continue
			}
			resp := answer(stdin, req)
			if err := send(conn, resp); err != nil {
				fmt.Fprintf(os.Stderr, "send response: %v\n", err)
				return
			}
		case protocol.TypeError:
			var errData protocol.ErrorData
			if err := msg.ParseData(&errData); err == nil {
				fmt.Fprintf(os.Stderr, "error at frame %d: %s\n", errData.FrameNum, errData.Message)
			}
			return
		case protocol.TypeCompleted:
			var completion protocol.Completion
			if err := msg.ParseData(&completion); err == nil {
				printSummary(completion)
			}
			return
		}
	}
}

// answer prompts the user for the response to one input request.
func answer(stdin *bufio.Reader, req protocol.UserInputRequest) protocol.UserInputResponse {
	fmt.Printf("\n>> %s\n", req.Message)

	switch req.InputType {
	case protocol.InputPlayerSelection:
		for _, p := range req.AvailablePlayers {
			fmt.Printf("   player %d  center=(%.0f, %.0f)  confidence=%.2f\n",
				p.ID, p.Center[0], p.Center[1], p.Confidence)
		}
		fmt.Print("player id (empty to skip): ")
		if id, ok := readInt(stdin); ok {
			return protocol.UserInputResponse{PlayerID: &id}
		}
		return protocol.UserInputResponse{Continue: true}

	case protocol.InputConfirmation:
		fmt.Print("confirm? [y/N]: ")
		line, _ := stdin.ReadString('\n')
		confirmed := strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
		return protocol.UserInputResponse{Confirmed: &confirmed}

	case protocol.InputReassignmentSelection:
		for i, s := range req.Suggestions {
			fmt.Printf("   %d) player %d  confidence=%.2f\n", i+1, s.ID, s.Confidence)
		}
		fmt.Print("choice (0 to stop tracking, empty to wait): ")
		if choice, ok := readInt(stdin); ok {
			if choice > 0 && choice <= len(req.Suggestions) {
				return protocol.UserInputResponse{SuggestionIndex: &choice}
			}
			return protocol.UserInputResponse{Choice: &choice}
		}
		// Empty response: no selection, keep waiting.
		return protocol.UserInputResponse{}
	}
	return protocol.UserInputResponse{}
}

func readInt(stdin *bufio.Reader) (int, bool) {
	line, err := stdin.ReadString('\n')
	if err != nil {
		return 0, false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, false
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, false
	}
	return n, true
}

func send(conn *websocket.Conn, resp protocol.UserInputResponse) error {
	return conn.WriteJSON(resp)
}

func printSummary(completion protocol.Completion) {
	s := completion.Summary
	fmt.Printf("\ncompleted: %d/%d frames at %.1f fps\n", s.ProcessedFrames, s.TotalFrames, s.ProcessingFPS)
	fmt.Printf("tracked players: %v\n", s.TrackedPlayerIDs)
	fmt.Printf("highlights won by tracked player: %d/%d\n", s.TrackedPlayerHighlights, s.TotalHighlights)
	for _, h := range s.Highlights {
		if h.Winner == nil {
			fmt.Printf("  [%d-%d] no possession recorded\n", h.Interval[0], h.Interval[1])
			continue
		}
		marker := ""
		if h.TrackedPlayerWon {
			marker = "  <- tracked"
		}
		fmt.Printf("  [%d-%d] winner player %d (%d frames)%s\n",
			h.Interval[0], h.Interval[1], h.Winner.PlayerID, h.Winner.Frames, marker)
	}
}
