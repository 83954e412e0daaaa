// Package main provides the playhead control CLI for testing.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/aveline/playhead/internal/api/ws"
)

var (
	app    = kingpin.New("playctl", "playhead control client for testing")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()

	// play command
	playCmd          = app.Command("play", "Play a track")
	playTrackID      = playCmd.Arg("track-id", "Track ID").Required().String()
	playCollectionID = playCmd.Arg("collection-id", "Collection ID to use as queue (optional)").String()

	// add command
	addCmd     = app.Command("add", "Add a track to the queue")
	addTrackID = addCmd.Arg("track-id", "Track ID").Required().String()

	toggleCmd  = app.Command("toggle", "Toggle play/pause")
	pauseCmd   = app.Command("pause", "Pause playback")
	resumeCmd  = app.Command("resume", "Resume playback")
	nextCmd    = app.Command("next", "Skip to the next track")
	prevCmd    = app.Command("prev", "Go back to the previous track")
	shuffleCmd = app.Command("shuffle", "Toggle shuffle mode")
	muteCmd    = app.Command("mute", "Toggle mute")
	clearCmd   = app.Command("clear", "Clear the queue")
	closeCmd   = app.Command("close", "Close the player")

	// seek command
	seekCmd = app.Command("seek", "Seek within the current track")
	seekSec = seekCmd.Arg("seconds", "Target position in seconds").Required().Int()

	// volume command
	volumeCmd = app.Command("volume", "Set the volume")
	volumeVal = volumeCmd.Arg("level", "Volume level in [0,1]").Required().Float64()

	// repeat command
	repeatCmd  = app.Command("repeat", "Set the repeat mode")
	repeatMode = repeatCmd.Arg("mode", "off, all or one").Required().Enum("off", "all", "one")

	// status / watch commands
	statusCmd = app.Command("status", "Print the current playback state")
	watchCmd  = app.Command("watch", "Stream state updates")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case statusCmd.FullCommand():
		status()
	case watchCmd.FullCommand():
		watch()
	case playCmd.FullCommand():
		send(ws.CmdPlayTrack, map[string]any{"trackId": *playTrackID, "collectionId": *playCollectionID})
	case addCmd.FullCommand():
		send(ws.CmdAddToQueue, map[string]any{"trackId": *addTrackID})
	case toggleCmd.FullCommand():
		send(ws.CmdTogglePlay, nil)
	case pauseCmd.FullCommand():
		send(ws.CmdPause, nil)
	case resumeCmd.FullCommand():
		send(ws.CmdPlay, nil)
	case nextCmd.FullCommand():
		send(ws.CmdNext, nil)
	case prevCmd.FullCommand():
		send(ws.CmdPrevious, nil)
	case shuffleCmd.FullCommand():
		send(ws.CmdToggleShuffle, nil)
	case muteCmd.FullCommand():
		send(ws.CmdToggleMute, nil)
	case clearCmd.FullCommand():
		send(ws.CmdClearQueue, nil)
	case closeCmd.FullCommand():
		send(ws.CmdClosePlayer, nil)
	case seekCmd.FullCommand():
		send(ws.CmdSeek, map[string]any{"positionMs": *seekSec * 1000})
	case volumeCmd.FullCommand():
		send(ws.CmdSetVolume, map[string]any{"volume": *volumeVal})
	case repeatCmd.FullCommand():
		send(ws.CmdSetRepeat, map[string]any{"mode": *repeatMode})
	}
}

func wsURL() string {
	u := strings.Replace(*server, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)
	return u + "/ws"
}

func dial() *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(), nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return conn
}

// send delivers one command and exits.
func send(name string, payload map[string]any) {
	conn := dial()
	defer conn.Close()

	msg := ws.Message{Type: ws.MsgCommand, Name: name, Payload: payload}
	if err := conn.WriteJSON(msg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sent: %s\n", name)
}

func status() {
	resp, err := http.Get(*server + "/v1/state")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var msg ws.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printState(msg)
}

func watch() {
	conn := dial()
	defer conn.Close()

	fmt.Println("Watching state updates. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nDisconnecting...")
		os.Exit(0)
	}()

	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			fmt.Printf("Stream error: %v\n", err)
			return
		}
		if msg.Type != ws.MsgState {
			continue
		}
		printState(msg)
	}
}

func printState(msg ws.Message) {
	fmt.Printf("\n[Seq: %d] === %s ===\n", msg.Seq, strings.ToUpper(msg.Name))

	if current, ok := msg.Payload["current"].(map[string]any); ok {
		fmt.Printf("  Now:      %v - %v\n", current["artist"], current["title"])
	} else {
		fmt.Println("  Now:      (nothing bound)")
	}
	fmt.Printf("  Playing:  %v\n", msg.Payload["playing"])
	fmt.Printf("  Position: %vms / %vms\n", msg.Payload["positionMs"], msg.Payload["durationMs"])
	fmt.Printf("  Volume:   %v (muted: %v)\n", msg.Payload["volume"], msg.Payload["muted"])
	fmt.Printf("  Shuffle:  %v  Repeat: %v\n", msg.Payload["shuffled"], msg.Payload["repeat"])

	if queue, ok := msg.Payload["queue"].([]any); ok {
		fmt.Printf("  Queue:    %d tracks\n", len(queue))
	}
}
