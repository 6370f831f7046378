// Command mockagent is a standalone client that exercises a running
// simulator's /api/command endpoint with randomized move/charge requests,
// standing in for the out-of-scope external bus client (spec.md §1). It
// adapts the teacher's remote-station HTTP client idiom — same
// http.Client-with-timeout, JSON request/response, slog logging shape —
// inverted from a server into a client, since every device here is
// in-process rather than remote.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/nldf-sim/factory-kernel/internal/bus"
)

var pathPoints = []string{"P0", "P1", "P2", "P3", "P4", "P5", "P6", "P7", "P8", "P9", "P10"}

func main() {
	endpoint := flag.String("endpoint", "http://localhost:8080", "simulator base URL")
	agv := flag.String("agv", "line1_AGV_1", "AGV target to drive")
	interval := flag.Duration("interval", 5*time.Second, "delay between issued commands")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "mockagent", "agv", *agv)
	slog.SetDefault(logger)

	client := &http.Client{Timeout: 5 * time.Second}

	logger.Info("driving simulated AGV", "endpoint", *endpoint)
	for {
		cmd := nextCommand(*agv)
		if err := post(client, *endpoint, cmd); err != nil {
			logger.Warn("command failed", "error", err, "action", cmd.Action)
		} else {
			logger.Info("command sent", "action", cmd.Action, "target", cmd.Target)
		}
		time.Sleep(*interval)
	}
}

func nextCommand(agv string) bus.Command {
	id := fmt.Sprintf("mockagent_%d", time.Now().UnixNano())
	if rand.Float64() < 0.15 {
		return bus.Command{CommandID: id, Action: bus.ActionCharge, Target: agv}
	}
	dest := pathPoints[rand.Intn(len(pathPoints))]
	return bus.Command{CommandID: id, Action: bus.ActionMove, Target: agv, Params: map[string]interface{}{"target_point": dest}}
}

func post(client *http.Client, endpoint string, cmd bus.Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, endpoint+"/api/command", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out bus.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("simulator returned %s: %s", resp.Status, out.Response)
	}
	return nil
}
