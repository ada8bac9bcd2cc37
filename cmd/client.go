package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/agui-go/pkg/agui"
	"github.com/theapemachine/agui-go/pkg/jsonrpc"
	"github.com/theapemachine/agui-go/pkg/utils"
)

var (
	bridgeURLFlag string
	tokenFlag     string

	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "Talk to a running bridge",
		Long:  `Join session streams and drive the session control surface of a running bridge.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch <sessionId>",
		Short: "Stream a session's events to the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(args[0])
		},
	}

	sendCmd = &cobra.Command{
		Use:   "send <sessionId> <text>",
		Short: "Send user text into a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rpcCall("sessions/send", map[string]any{
				"sessionId": args[0],
				"text":      strings.Join(args[1:], " "),
			})
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop <sessionId>",
		Short: "Stop a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rpcCall("sessions/stop", map[string]any{"sessionId": args[0]})
		},
	}
)

func bridgeURL() string {
	if bridgeURLFlag != "" {
		return bridgeURLFlag
	}

	if url := viper.GetString("endpoints.bridge"); url != "" {
		return url
	}

	return "http://localhost:3210"
}

func rpcCall(method string, params any) error {
	client := jsonrpc.NewRPCClient(bridgeURL() + "/rpc")
	client.Token = tokenFlag

	var result json.RawMessage

	if err := client.Call(context.Background(), method, params, &result); err != nil {
		return err
	}

	fmt.Println(string(result))

	return nil
}

/*
runWatch joins the session's SSE stream and prints each event as one
line, the snapshot included, until the stream ends.
*/
func runWatch(sessionID string) error {
	url := fmt.Sprintf("%s/sessions/%s/events", bridgeURL(), sessionID)

	resp, err := http.Get(url)

	if err != nil {
		return fmt.Errorf("failed to join session stream: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status joining stream: %d", resp.StatusCode)
	}

	log.Info("joined session stream", "session", sessionID)

	reader := bufio.NewReader(resp.Body)

	for {
		data, err := utils.ReadSSE(reader)

		if err == io.EOF {
			log.Info("session stream ended", "session", sessionID)
			return nil
		}

		if err != nil {
			return err
		}

		if data == "" {
			continue
		}

		var ev agui.Event

		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			log.Warn("unreadable event skipped", "error", err)
			continue
		}

		printEvent(&ev)
	}
}

func printEvent(ev *agui.Event) {
	switch ev.Type {
	case agui.EventTypeTextMessageContent:
		fmt.Print(ev.Delta)
	case agui.EventTypeTextMessageEnd:
		fmt.Println()
	case agui.EventTypeTextMessageStart:
		// The content deltas carry everything worth showing.
	case agui.EventTypeToolCallStart:
		fmt.Printf("⚙ %s (%s)\n", ev.ToolCallName, ev.ToolCallID)
	case agui.EventTypeToolCallResult:
		fmt.Printf("✔ %s: %s\n", ev.ToolCallID, ev.Result)
	case agui.EventTypeRunStarted:
		fmt.Printf("▶ run %s started\n", ev.RunID)
	case agui.EventTypeRunFinished:
		fmt.Printf("■ run %s finished: %s\n", ev.RunID, ev.Result)
	case agui.EventTypeRunError:
		fmt.Printf("✖ run %s failed: %s\n", ev.RunID, ev.Message)
	default:
		raw, _ := json.Marshal(ev)
		fmt.Println(string(raw))
	}
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(watchCmd, sendCmd, stopCmd)

	clientCmd.PersistentFlags().StringVarP(&bridgeURLFlag, "bridge", "b", "", "Bridge base URL (default: config endpoints.bridge)")
	clientCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Bearer token for mutating calls")
}
