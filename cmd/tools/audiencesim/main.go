// audiencesim drives a running backend over its websocket channel: it joins a
// stream, starts the synthetic audience, plays transcripts and faces, and
// prints every room event it receives.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Options 命令行参数，由 go-flags 解析
type Options struct {
	URL        string        `short:"u" long:"url" env:"AUDIENCESIM_URL" default:"ws://localhost:9000/ws" description:"websocket endpoint"`
	Stream     string        `short:"s" long:"stream" default:"demo" description:"stream id to join"`
	Streamer   string        `long:"streamer" description:"streamer display name"`
	Say        []string      `long:"say" description:"transcript to send as speech-detected (repeatable)"`
	Face       []string      `long:"face" description:"face label to send as face-detected (repeatable)"`
	Confidence float64       `long:"confidence" default:"0.9" description:"speech confidence"`
	Interval   time.Duration `long:"interval" default:"3s" description:"pause between scripted events"`
	Listen     time.Duration `long:"listen" default:"20s" description:"how long to keep printing after the script"`
	NoStart    bool          `long:"no-start" description:"only watch, do not start the audience"`
}

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type envelope struct {
	Type      string          `json:"type"`
	StreamID  string          `json:"streamId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	opts := &Options{}
	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		log.Fatalf("audiencesim: %v", err)
	}
}

func run(opts *Options) error {
	conn, _, err := websocket.DefaultDialer.Dial(opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	defer conn.Close()
	log.Printf("connected to %s", opts.URL)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("read: %v", err)
				}
				return
			}
			fmt.Println(formatEvent(env))
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for _, msg := range script(opts) {
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("send %s: %w", msg.Type, err)
		}
		log.Printf("-> %s", msg.Type)
		if !pause(opts.Interval, done, interrupt) {
			return nil
		}
	}

	pause(opts.Listen, done, interrupt)

	if !opts.NoStart {
		_ = conn.WriteJSON(outbound{Type: "stop-fake-audience", Data: opts.Stream})
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return nil
}

// script lists the messages to send, in order.
func script(opts *Options) []outbound {
	msgs := []outbound{{Type: "join-stream", Data: opts.Stream}}
	if opts.NoStart {
		return msgs
	}
	msgs = append(msgs, outbound{Type: "start-fake-audience", Data: opts.Stream})

	if name := strings.TrimSpace(opts.Streamer); name != "" {
		msgs = append(msgs, outbound{Type: "update-streamer-name", Data: map[string]string{
			"streamId":     opts.Stream,
			"streamerName": name,
		}})
	}
	for _, label := range opts.Face {
		msgs = append(msgs, outbound{Type: "face-detected", Data: map[string]any{
			"streamId":   opts.Stream,
			"person":     label,
			"confidence": 0.95,
		}})
	}
	for _, line := range opts.Say {
		msgs = append(msgs, outbound{Type: "speech-detected", Data: map[string]any{
			"streamId":      opts.Stream,
			"speechContent": line,
			"confidence":    opts.Confidence,
		}})
	}
	return msgs
}

func pause(d time.Duration, done <-chan struct{}, interrupt <-chan os.Signal) bool {
	select {
	case <-time.After(d):
		return true
	case <-done:
		return false
	case <-interrupt:
		return false
	}
}

// formatEvent renders one envelope as a single terminal line.
func formatEvent(env envelope) string {
	ts := time.Unix(env.Timestamp, 0).Format("15:04:05")
	switch env.Type {
	case "fake-chat-message", "real-chat-message":
		var msg struct {
			Username string `json:"username"`
			Message  string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &msg); err == nil {
			return fmt.Sprintf("%s [%s] %s: %s", ts, env.StreamID, msg.Username, msg.Message)
		}
	case "audience-update":
		return fmt.Sprintf("%s [%s] viewers=%s", ts, env.StreamID, string(env.Data))
	}
	return fmt.Sprintf("%s [%s] %s %s", ts, env.StreamID, env.Type, string(env.Data))
}
