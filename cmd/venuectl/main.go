// Package main provides the venue operator CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
)

var (
	app    = kingpin.New("venuectl", "beatline venue operator client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()

	statusCmd   = app.Command("status", "Get playback status for an event")
	statusEvent = statusCmd.Arg("event-id", "Event ID").Required().String()

	pauseCmd   = app.Command("pause", "Pause playback for an event")
	pauseEvent = pauseCmd.Arg("event-id", "Event ID").Required().String()

	resumeCmd   = app.Command("resume", "Resume playback for an event")
	resumeEvent = resumeCmd.Arg("event-id", "Event ID").Required().String()

	skipCmd   = app.Command("skip", "Skip the current track for an event")
	skipEvent = skipCmd.Arg("event-id", "Event ID").Required().String()

	activateCmd   = app.Command("activate", "Activate an event")
	activateEvent = activateCmd.Arg("event-id", "Event ID").Required().String()

	endCmd   = app.Command("end", "End an event")
	endEvent = endCmd.Arg("event-id", "Event ID").Required().String()

	cancelCmd   = app.Command("cancel", "Cancel an event")
	cancelEvent = cancelCmd.Arg("event-id", "Event ID").Required().String()

	initCmd      = app.Command("init-playback", "Initialize playback for an event")
	initEvent    = initCmd.Arg("event-id", "Event ID").Required().String()
	initVenue    = initCmd.Arg("venue-id", "Venue ID").Required().String()
	initDeviceID = initCmd.Arg("device-id", "Spotify device ID").Required().String()

	banCmd     = app.Command("ban", "Ban a session from voting on an event")
	banEvent   = banCmd.Arg("event-id", "Event ID").Required().String()
	banSession = banCmd.Arg("session-id", "Session ID").Required().String()

	unbanCmd     = app.Command("unban", "Lift a session ban for an event")
	unbanEvent   = unbanCmd.Arg("event-id", "Event ID").Required().String()
	unbanSession = unbanCmd.Arg("session-id", "Session ID").Required().String()

	playNextCmd   = app.Command("play-next", "Advance playback to the next queued track")
	playNextEvent = playNextCmd.Arg("event-id", "Event ID").Required().String()

	stopCmd   = app.Command("stop", "Tear down playback state for an event")
	stopEvent = stopCmd.Arg("event-id", "Event ID").Required().String()

	autoplayCmd     = app.Command("autoplay", "Enable or disable auto-advance for an event")
	autoplayEvent   = autoplayCmd.Arg("event-id", "Event ID").Required().String()
	autoplayEnabled = autoplayCmd.Arg("enabled", "true/false").Required().Bool()

	queueRemoveCmd   = app.Command("queue-remove", "Remove a track from an event's queue")
	queueRemoveEvent = queueRemoveCmd.Arg("event-id", "Event ID").Required().String()
	queueRemoveTrack = queueRemoveCmd.Arg("track-id", "Track ID").Required().String()

	queueClearCmd   = app.Command("queue-clear", "Clear every unplayed row from an event's queue")
	queueClearEvent = queueClearCmd.Arg("event-id", "Event ID").Required().String()

	queueMarkPlayedCmd   = app.Command("queue-mark-played", "Mark a queued track as played")
	queueMarkPlayedEvent = queueMarkPlayedCmd.Arg("event-id", "Event ID").Required().String()
	queueMarkPlayedTrack = queueMarkPlayedCmd.Arg("track-id", "Track ID").Required().String()

	queueSkipCmd    = app.Command("queue-skip", "Mark a queued track as skipped")
	queueSkipEvent  = queueSkipCmd.Arg("event-id", "Event ID").Required().String()
	queueSkipTrack  = queueSkipCmd.Arg("track-id", "Track ID").Required().String()
	queueSkipReason = queueSkipCmd.Arg("reason", "Skip reason").String()

	queueNextCmd   = app.Command("queue-next", "Peek the next track in an event's queue")
	queueNextEvent = queueNextCmd.Arg("event-id", "Event ID").Required().String()

	queueStatsCmd   = app.Command("queue-stats", "Show queue size and total votes for an event")
	queueStatsEvent = queueStatsCmd.Arg("event-id", "Event ID").Required().String()
)

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	client := &http.Client{Timeout: 10 * time.Second}
	ctx := context.Background()

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = get(ctx, client, eventPath(*statusEvent, "playback"))
	case pauseCmd.FullCommand():
		err = post(ctx, client, eventPath(*pauseEvent, "playback/pause"), nil)
	case resumeCmd.FullCommand():
		err = post(ctx, client, eventPath(*resumeEvent, "playback/resume"), nil)
	case skipCmd.FullCommand():
		err = post(ctx, client, eventPath(*skipEvent, "playback/skip"), nil)
	case activateCmd.FullCommand():
		err = post(ctx, client, eventPath(*activateEvent, "activate"), nil)
	case endCmd.FullCommand():
		err = post(ctx, client, eventPath(*endEvent, "end"), nil)
	case cancelCmd.FullCommand():
		err = post(ctx, client, eventPath(*cancelEvent, "cancel"), nil)
	case initCmd.FullCommand():
		body, _ := json.Marshal(map[string]string{"venueId": *initVenue, "deviceId": *initDeviceID})
		err = post(ctx, client, eventPath(*initEvent, "playback/initialize"), body)
	case banCmd.FullCommand():
		body, _ := json.Marshal(map[string]string{"sessionId": *banSession})
		err = post(ctx, client, eventPath(*banEvent, "sessions/ban"), body)
	case unbanCmd.FullCommand():
		body, _ := json.Marshal(map[string]string{"sessionId": *unbanSession})
		err = post(ctx, client, eventPath(*unbanEvent, "sessions/unban"), body)
	case playNextCmd.FullCommand():
		err = post(ctx, client, eventPath(*playNextEvent, "playback/play-next"), nil)
	case stopCmd.FullCommand():
		err = post(ctx, client, eventPath(*stopEvent, "playback/stop"), nil)
	case autoplayCmd.FullCommand():
		body, _ := json.Marshal(map[string]bool{"enabled": *autoplayEnabled})
		err = post(ctx, client, eventPath(*autoplayEvent, "playback/autoplay"), body)
	case queueRemoveCmd.FullCommand():
		err = del(ctx, client, eventPath(*queueRemoveEvent, "queue/"+*queueRemoveTrack))
	case queueClearCmd.FullCommand():
		err = del(ctx, client, eventPath(*queueClearEvent, "queue"))
	case queueMarkPlayedCmd.FullCommand():
		err = post(ctx, client, eventPath(*queueMarkPlayedEvent, "queue/"+*queueMarkPlayedTrack+"/played"), nil)
	case queueSkipCmd.FullCommand():
		body, _ := json.Marshal(map[string]string{"reason": *queueSkipReason})
		err = post(ctx, client, eventPath(*queueSkipEvent, "queue/"+*queueSkipTrack+"/skip"), body)
	case queueNextCmd.FullCommand():
		err = get(ctx, client, eventPath(*queueNextEvent, "queue/next"))
	case queueStatsCmd.FullCommand():
		err = get(ctx, client, eventPath(*queueStatsEvent, "queue/stats"))
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func eventPath(eventID, suffix string) string {
	return fmt.Sprintf("/api/v1/events/%s/%s", eventID, suffix)
}

func get(ctx context.Context, client *http.Client, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *server+path, nil)
	if err != nil {
		return err
	}
	return do(client, req)
}

func post(ctx context.Context, client *http.Client, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *server+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return do(client, req)
}

func del(ctx context.Context, client *http.Client, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, *server+path, nil)
	if err != nil {
		return err
	}
	return do(client, req)
}

func do(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s: %s", resp.Status, string(data))
	}
	if len(data) == 0 {
		fmt.Println("OK")
		return nil
	}

	var pretty map[string]any
	if err := json.Unmarshal(data, &pretty); err != nil {
		fmt.Println(string(data))
		return nil
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return nil
}
