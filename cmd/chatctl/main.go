// chatctl inspects a running server: it pages through the event log over
// the replay endpoint and renders envelopes as a table.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"support-chat/domain/event"
	"support-chat/envelope"
)

type Config struct {
	ServerAddr string `envconfig:"SERVER_ADDR" default:"http://localhost:8080"`
	// CHATCTL_COLOURS enables colorized output for better readability
	Colours bool `envconfig:"CHATCTL_COLOURS" default:"true"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	since := flag.String("since", "", "Replay strictly after this event_id (empty = from the oldest)")
	limit := flag.Int("limit", 50, "Maximum number of envelopes per page")
	follow := flag.Bool("follow", false, "Keep polling for new envelopes")
	flag.Parse()

	cursor := *since
	for {
		envelopes, err := fetchReplay(cfg.ServerAddr, cursor, *limit)
		if err != nil {
			log.Fatalf("Replay failed: %v", err)
		}
		if len(envelopes) > 0 {
			render(envelopes, cfg.Colours)
			cursor = envelopes[len(envelopes)-1].EventID
		}
		if !*follow {
			return
		}
		time.Sleep(2 * time.Second)
	}
}

func fetchReplay(addr, since string, limit int) ([]envelope.Envelope, error) {
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	if since != "" {
		query.Set("since_event_id", since)
	}

	resp, err := http.Get(addr + "/v1/replay?" + query.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server answered %s", resp.Status)
	}

	var body struct {
		Events []envelope.Envelope `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Events, nil
}

func render(envelopes []envelope.Envelope, colours bool) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Emitted At", "Type", "Event ID", "Conversation", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, env := range envelopes {
		eventType := env.Type
		if colours {
			eventType = colorize(env.Type)
		}

		conversationID, _ := env.Data["conversation_id"].(string)
		table.Append([]string{
			shortTime(env.EmittedAt),
			eventType,
			shortID(env.EventID),
			shortID(conversationID),
			detail(env),
		})
	}
	table.Render()
}

func colorize(eventType string) string {
	switch eventType {
	case event.NameMessageAppended:
		return color.New(color.FgGreen).Render(eventType)
	case event.NameMessageUpdated:
		return color.New(color.FgYellow).Render(eventType)
	case event.NameMessageDeleted:
		return color.New(color.FgRed).Render(eventType)
	default:
		return color.New(color.FgCyan).Render(eventType)
	}
}

func detail(env envelope.Envelope) string {
	if message, ok := env.Data["message"].(map[string]any); ok {
		content, _ := message["content"].(string)
		if len(content) > 48 {
			content = content[:48] + "..."
		}
		return content
	}
	if messageID, ok := env.Data["message_id"].(string); ok {
		return "message " + shortID(messageID)
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortTime(emittedAt string) string {
	if t, err := time.Parse(time.RFC3339Nano, emittedAt); err == nil {
		return t.Format("15:04:05.000")
	}
	return emittedAt
}
