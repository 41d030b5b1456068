package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/internal/messagebus"
	"github.com/jordanhubbard/krishi/pkg/messages"
)

// --- Escalation commands ---

func newEscalationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escalations",
		Short: "Inspect the expert review queue",
	}
	cmd.AddCommand(newEscalationsListCommand())
	cmd.AddCommand(newEscalationsFollowCommand())
	return cmd
}

func newEscalationsListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List escalations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			data, err := newClient().get("/api/v1/escalations", params)
			if err != nil {
				return err
			}
			outputJSON(cmd.OutOrStdout(), data)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of escalations (server default when 0)")
	return cmd
}

func newEscalationsFollowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "follow",
		Short: "Stream new escalations as they are raised (websocket)",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := streamURL(serverURL)
			if err != nil {
				return err
			}
			conn, _, err := websocket.DefaultDialer.Dial(u, nil)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", u, err)
			}
			defer conn.Close()

			done := make(chan struct{})
			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				select {
				case <-sigCh:
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
					conn.Close()
				case <-done:
				}
			}()
			defer close(done)

			return followStream(conn, cmd.OutOrStdout())
		},
	}
}

// followStream prints each frame until the connection closes
func followStream(conn *websocket.Conn, w io.Writer) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("stream closed: %w", err)
		}
		outputJSON(w, data)
	}
}

// streamURL maps the server URL to the escalation websocket endpoint
func streamURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(server, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path += "/api/v1/escalations/stream"
	return u.String(), nil
}

// --- Event commands ---

func newEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Observe domain events on the message bus",
	}
	cmd.AddCommand(newEventsTailCommand())
	return cmd
}

func newEventsTailCommand() *cobra.Command {
	var (
		natsURL   string
		stream    string
		eventType string
		durable   string
	)
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print events from NATS as they are published",
		Example: `  krishictl events tail
  krishictl events tail --type query.escalated
  krishictl events tail --type query.escalated --durable expert-desk`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, err := messagebus.NewNatsMessageBus(messagebus.Config{
				URL:            natsURL,
				StreamName:     stream,
				ConsumerPrefix: durable,
			}, zap.NewNop())
			if err != nil {
				return err
			}
			defer bus.Close()

			out := cmd.OutOrStdout()
			events := make(chan *messages.EventMessage, 64)
			if err := subscribeEvents(bus, eventType, durable != "", func(e *messages.EventMessage) {
				select {
				case events <- e:
				default:
				}
			}); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			for {
				select {
				case e := <-events:
					data, err := json.Marshal(e)
					if err != nil {
						continue
					}
					outputJSON(out, data)
				case <-sigCh:
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats", getDefaultNATS(), "NATS server URL")
	cmd.Flags().StringVar(&stream, "stream", "KRISHI", "JetStream stream name")
	cmd.Flags().StringVar(&eventType, "type", ">", "Event type or wildcard (query.answered, query.*, >)")
	cmd.Flags().StringVar(&durable, "durable", "", "Consumer name; resumes after the last event this name acknowledged")
	return cmd
}

// eventSource is the part of the message bus the tail command reads from
type eventSource interface {
	messagebus.EventSubscriber
	messagebus.DurableSubscriber
}

// subscribeEvents tails live events, or reads through a durable consumer
// when durable is set
func subscribeEvents(src eventSource, eventType string, durable bool, handler func(*messages.EventMessage)) error {
	if durable {
		return src.SubscribeEvents(eventType, handler)
	}
	return src.TailEvents(eventType, handler)
}

func getDefaultNATS() string {
	if u := os.Getenv("KRISHI_NATS_URL"); u != "" {
		return u
	}
	return "nats://localhost:4222"
}
