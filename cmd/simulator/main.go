package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nldf-sim/factory-kernel/internal/bus"
	"github.com/nldf-sim/factory-kernel/internal/config"
	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/factory"
	"github.com/nldf-sim/factory-kernel/internal/kpi"
	"github.com/nldf-sim/factory-kernel/internal/types"
	"github.com/nldf-sim/factory-kernel/internal/web"
)

var (
	noMQTT bool
	menu   bool
)

func main() {
	root := &cobra.Command{
		Use:   "simulator",
		Short: "Runs the multi-line factory discrete-event simulation",
		RunE:  run,
	}
	root.Flags().BoolVar(&noMQTT, "no-mqtt", false, "disable the message-bus publisher; run headless with an in-process noop")
	root.Flags().BoolVar(&menu, "menu", false, "start an interactive stdin menu for issuing AGV commands")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var pub bus.Publisher
	var hub *web.Hub
	var snapshots *web.SnapshotCache
	if noMQTT {
		pub = bus.NoopPublisher{}
	} else {
		hub = web.NewHub(logger)
		go hub.Run()
		snapshots = web.NewSnapshotCache(hub)
		pub = snapshots
	}

	topics := bus.NewTopics(cfg.TopicRoot)
	lines := buildLines(cfg, pub, topics)
	aggregator := kpi.NewAggregator(lines)
	wireKPI(lines, aggregator)

	clock := engine.NewClock()
	for _, l := range lines {
		l.Tick(clock)
		l.Heartbeat(clock)
		armFaultInjector(clock, cfg, l)
		armOrderGenerator(clock, cfg, l, aggregator)
	}
	armKPIPublisher(clock, cfg, aggregator, pub, topics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		clock.Run(ctx, horizonSeconds)
	}()

	go startAPIServer(logger, lines, clock, aggregator, hub)

	if menu {
		go runMenu(lines, clock)
	}

	waitForShutdown(logger, cancel)
	wg.Wait()
	return nil
}

// horizonSeconds bounds how far the clock will advance; the simulation
// keeps rescheduling its generators/injectors/ticks well past any
// realistic demo run length.
const horizonSeconds = 24 * 60 * 60

func buildLines(cfg *config.Config, pub bus.Publisher, topics bus.Topics) []*factory.Line {
	policy := factory.AGVChargePolicy{
		BatteryThreshold: cfg.AGVBatteryThreshold,
		ChargeRatePctSec: cfg.AGVChargeRatePctSec,
		DefaultChargeTo:  cfg.AGVDefaultChargeTo,
	}
	lines := make([]*factory.Line, 0, len(cfg.LineIDs))
	for i, id := range cfg.LineIDs {
		hasP3Rework := i == len(cfg.LineIDs)-1 // the third/last line carries the holding sub-buffers
		line := factory.NewLine(id, cfg.AGVSpeedMPS, policy, hasP3Rework, pub, topics)
		line.SnapshotDebounceSec = float64(cfg.SnapshotDebounceMs) / 1000.0
		lines = append(lines, line)
	}
	return lines
}

func wireKPI(lines []*factory.Line, agg *kpi.Aggregator) {
	for _, l := range lines {
		l.OnQualityOutcome = agg.RecordQualityOutcome
		l.OnOrderCompleted = agg.RecordOrderCompleted
		l.OnFaultInjected = agg.RecordFault
		l.OnMaterialPickup = agg.RecordMaterialPickup
		l.OnGetResult = func(now float64) interface{} { return agg.Snapshot(now) }
	}
}

func armFaultInjector(clock *engine.Clock, cfg *config.Config, l *factory.Line) {
	injector, err := factory.NewFaultInjector(
		factory.ProcRange{Min: cfg.FaultIntervalSec.Min, Max: cfg.FaultIntervalSec.Max},
		factory.ProcRange{Min: cfg.FaultDurationSec.Min, Max: cfg.FaultDurationSec.Max},
		"",
	)
	if err != nil {
		slog.Error("failed to compile fault eligibility rule", "error", err)
		return
	}
	injector.OnFault = func(deviceID, lineID string) {
		if l.OnFaultInjected != nil {
			l.OnFaultInjected()
		}
		slog.Info("fault injected", "device", deviceID, "line", lineID)
	}
	injector.Schedule(clock, l.Devices)
}

func armOrderGenerator(clock *engine.Clock, cfg *config.Config, l *factory.Line, agg *kpi.Aggregator) {
	gen := factory.NewOrderGenerator(factory.ProcRange{Min: cfg.OrderIntervalSec.Min, Max: cfg.OrderIntervalSec.Max})
	gen.OnOrder = func(o *types.Order) {
		l.Orders[o.ID] = o
		agg.RecordOrderCreated()
		for _, item := range o.Items {
			for i := 0; i < item.Quantity; i++ {
				agg.RecordProductCreated(item.ProductType)
			}
		}
		if l.Publisher != nil {
			l.Publisher.Publish(l.Topics.OrdersStatus(), bus.OrderEvent{OrderID: o.ID, Kind: "new"})
		}
	}
	gen.Schedule(clock, l.ID, l.RawMaterial)
}

func armKPIPublisher(clock *engine.Clock, cfg *config.Config, agg *kpi.Aggregator, pub bus.Publisher, topics bus.Topics) {
	var tick func(c *engine.Clock)
	tick = func(c *engine.Clock) {
		if pub != nil {
			pub.Publish(topics.KPIStatus(), agg.Snapshot(c.Now()))
		}
		c.Schedule(cfg.KPIPublishIntervalSec, engine.TierPublisher, tick)
	}
	clock.Schedule(cfg.KPIPublishIntervalSec, engine.TierPublisher, tick)
}

func startAPIServer(logger *slog.Logger, lines []*factory.Line, clock *engine.Clock, agg *kpi.Aggregator, hub *web.Hub) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if hub != nil {
		mux.HandleFunc("/ws", hub.ServeWs)
	}
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		resultCh := make(chan kpi.Result, 1)
		clock.Post(func(c *engine.Clock) { resultCh <- agg.Snapshot(c.Now()) })
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(<-resultCh)
	})
	mux.HandleFunc("/api/command", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var cmd bus.Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		line := lineForTarget(lines, cmd.Target)
		if line == nil {
			http.Error(w, "unknown target", http.StatusNotFound)
			return
		}
		resp := dispatchCommand(clock, line, cmd)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	logger.Info("API server listening", "addr", ":8080")
	if err := http.ListenAndServe(":8080", mux); err != nil {
		logger.Error("API server failed", "error", err)
	}
}

func lineForTarget(lines []*factory.Line, target string) *factory.Line {
	for _, l := range lines {
		if strings.HasPrefix(target, l.ID) {
			return l
		}
	}
	return nil
}

// runMenu is the --menu interactive console: type "move line1_AGV_1 P1" or
// "charge line1_AGV_2" to issue a command directly against the running
// simulation without a bus client.
func runMenu(lines []*factory.Line, clock *engine.Clock) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("factory-kernel interactive menu — move <agv> <point> | charge <agv> | quit")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return
		case "move":
			if len(fields) != 3 {
				fmt.Println("usage: move <agv> <point>")
				continue
			}
			dispatchMenuCommand(lines, clock, bus.Command{Action: bus.ActionMove, Target: fields[1], Params: map[string]interface{}{"target_point": fields[2]}})
		case "charge":
			if len(fields) != 2 {
				fmt.Println("usage: charge <agv>")
				continue
			}
			dispatchMenuCommand(lines, clock, bus.Command{Action: bus.ActionCharge, Target: fields[1]})
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func dispatchMenuCommand(lines []*factory.Line, clock *engine.Clock, cmd bus.Command) {
	line := lineForTarget(lines, cmd.Target)
	if line == nil {
		fmt.Println("unknown target:", cmd.Target)
		return
	}
	resp := dispatchCommand(clock, line, cmd)
	fmt.Println(resp.Response)
}

// dispatchCommand hands cmd to the clock's own goroutine via Post and
// blocks for its response, so HTTP handlers and the interactive menu never
// mutate device state outside the single-threaded event loop (spec.md §5).
func dispatchCommand(clock *engine.Clock, line *factory.Line, cmd bus.Command) bus.Response {
	respCh := make(chan bus.Response, 1)
	clock.Post(func(c *engine.Clock) {
		respCh <- factory.HandleCommand(c, line, cmd)
	})
	return <-respCh
}

func waitForShutdown(logger *slog.Logger, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received, stopping simulation")
	cancel()
	time.Sleep(100 * time.Millisecond)
}
