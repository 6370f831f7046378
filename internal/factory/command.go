package factory

import (
	"fmt"

	"github.com/nldf-sim/factory-kernel/internal/bus"
	"github.com/nldf-sim/factory-kernel/internal/engine"
)

// HandleCommand validates and dispatches one inbound bus.Command against
// line (spec.md §4.8). It always produces exactly one bus.Response, either
// accepted or a validation error — validation itself never touches world
// state, so a malformed command is a no-op rather than a partial mutation.
func HandleCommand(clock *engine.Clock, line *Line, cmd bus.Command) bus.Response {
	resp := bus.Response{Timestamp: clock.Now(), CommandID: cmd.CommandID}

	agv := line.AGVByID(cmd.Target)
	switch cmd.Action {
	case bus.ActionMove:
		if agv == nil {
			resp.Response = "error: unknown AGV " + cmd.Target
			return resp
		}
		dest, err := paramPoint(cmd.Params, "target_point")
		if err != nil {
			resp.Response = "error: " + err.Error()
			return resp
		}
		if !agvMayVisit(agv, dest) {
			resp.Response = fmt.Sprintf("error: %s is outside %s's corridor", dest, agv.ID())
			return resp
		}
		agv.Enqueue(clock, AGVCommand{ID: cmd.CommandID, Dest: dest})
		resp.Response = "accepted"

	case bus.ActionCharge:
		if agv == nil {
			resp.Response = "error: unknown AGV " + cmd.Target
			return resp
		}
		target := chargeTargetLevel(cmd.Params, agv.Battery, agv.Policy.DefaultChargeTo)
		agv.Enqueue(clock, AGVCommand{ID: cmd.CommandID, Dest: P10, OnArrive: func(c *engine.Clock, a *AGV) {
			a.beginCharge(c, true, target)
		}})
		resp.Response = "accepted"

	case bus.ActionLoad:
		if agv == nil {
			resp.Response = "error: unknown AGV " + cmd.Target
			return resp
		}
		if !agvMayVisit(agv, agv.Position) {
			resp.Response = fmt.Sprintf("error: %s is outside %s's corridor", agv.Position, agv.ID())
			return resp
		}
		if agv.PayloadFull() {
			resp.Response = "error: payload full"
			return resp
		}
		productID, _ := cmd.Params["product_id"].(string)
		if agv.Position == P0 {
			if productID == "" {
				resp.Response = `error: missing param "product_id"`
				return resp
			}
			if !line.RawMaterial.HasProduct(productID) {
				resp.Response = fmt.Sprintf("error: product %q not found at raw-material warehouse", productID)
				return resp
			}
		}
		commandID := cmd.CommandID
		agv.Enqueue(clock, AGVCommand{ID: commandID, Dest: agv.Position, OnArrive: func(c *engine.Clock, a *AGV) {
			line.PerformLoad(c, a, productID, commandID)
		}})
		resp.Response = "accepted"

	case bus.ActionUnload:
		if agv == nil {
			resp.Response = "error: unknown AGV " + cmd.Target
			return resp
		}
		if !agvMayVisit(agv, agv.Position) {
			resp.Response = fmt.Sprintf("error: %s is outside %s's corridor", agv.Position, agv.ID())
			return resp
		}
		commandID := cmd.CommandID
		agv.Enqueue(clock, AGVCommand{ID: commandID, Dest: agv.Position, OnArrive: func(c *engine.Clock, a *AGV) {
			line.PerformUnload(c, a, commandID)
		}})
		resp.Response = "accepted"

	case bus.ActionGetResult:
		line.PublishResultSnapshot(clock)
		resp.Response = "accepted"

	default:
		resp.Response = "error: unknown action " + cmd.Action
	}
	return resp
}

// chargeTargetLevel resolves the charge command's target_level param
// (spec.md §6.3): default defaultLevel (the AGV's Policy.DefaultChargeTo),
// clamped to [current, 100] so an explicit charge command never discharges
// the AGV further.
func chargeTargetLevel(params map[string]interface{}, current, defaultLevel float64) float64 {
	target := defaultLevel
	if raw, ok := params["target_level"]; ok {
		if v, ok := toFloat(raw); ok {
			target = v
		}
	}
	if target < current {
		target = current
	}
	if target > 100 {
		target = 100
	}
	return target
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func paramPoint(params map[string]interface{}, key string) (PathPoint, error) {
	raw, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing param %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("param %q must be a string", key)
	}
	p := PathPoint(s)
	if !ValidPathPoint(p) {
		return "", fmt.Errorf("unknown path point %q", s)
	}
	return p, nil
}

// agvMayVisit enforces the corridor restriction: only AGV_1 (lower) may
// dock at RawMaterial. Every other path point, including the line-3
// holding sub-buffers (staged at the shared P6 conveyor point), is on both
// AGVs' coordinate tables (spec.md §4.4; see DESIGN.md's "Corridor
// exclusivity scope").
func agvMayVisit(agv *AGV, p PathPoint) bool {
	if p == P0 {
		return agv.Corridor == CorridorLower
	}
	return true
}
