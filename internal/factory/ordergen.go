package factory

import (
	"math/rand"

	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

// weighted draws an index from weights, proportional to their values.
// weights need not sum to 1.
func weighted(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rand.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

var orderProductTypes = []types.ProductType{types.ProductP1, types.ProductP2, types.ProductP3}
var orderProductWeights = []float64{0.6, 0.3, 0.1}

var orderPriorities = []types.Priority{types.PriorityLow, types.PriorityMedium, types.PriorityHigh}
var orderPriorityWeights = []float64{0.7, 0.25, 0.05}

// orderQuantityWeights govern the order's total item count (1..5), not a
// per-item-line quantity — grounded on the original simulator's order-level
// quantity_weights (40/30/20/7/3), drawn once per order rather than once
// per distinct product type.
var orderQuantityWeights = []float64{0.40, 0.30, 0.20, 0.07, 0.03}

// OrderGenerator periodically creates a new order with a randomized product
// mix, priority and deadline, then deposits its products at the line's raw
// material warehouse (spec.md §4.7).
type OrderGenerator struct {
	IntervalRange ProcRange
	OnOrder       func(o *types.Order)
}

// NewOrderGenerator creates a generator sampling inter-arrival times from
// intervalRange (spec.md §6.5's order_interval_sec, default U(30,60)).
func NewOrderGenerator(intervalRange ProcRange) *OrderGenerator {
	return &OrderGenerator{IntervalRange: intervalRange}
}

// Schedule arms the next order draw on clock, recursing forever.
func (g *OrderGenerator) Schedule(clock *engine.Clock, lineID string, raw *Warehouse) {
	delay := g.IntervalRange.sample()
	clock.Schedule(delay, engine.TierGenerator, func(c *engine.Clock) {
		order := g.generate(c.Now(), lineID, raw)
		if g.OnOrder != nil {
			g.OnOrder(order)
		}
		g.Schedule(c, lineID, raw)
	})
}

func (g *OrderGenerator) generate(now float64, lineID string, raw *Warehouse) *types.Order {
	priority := orderPriorities[weighted(orderPriorityWeights)]

	// The order's total quantity (1..5) is drawn once; each unit then draws
	// its own product type independently, so an order can legitimately end
	// up wanting 4 P1s and 1 P3 rather than one item line per type.
	quantity := 1 + weighted(orderQuantityWeights)
	counts := make(map[types.ProductType]int)
	for i := 0; i < quantity; i++ {
		t := orderProductTypes[weighted(orderProductWeights)]
		counts[t]++
	}
	items := make([]types.OrderItem, 0, len(counts))
	for _, t := range orderProductTypes {
		if c := counts[t]; c > 0 {
			items = append(items, types.OrderItem{ProductType: t, Quantity: c})
		}
	}

	order := types.NewOrder(now, priority, items)
	order.Deadline = now + order.TheoreticalTime()*priority.DeadlineMultiplier()

	for _, item := range items {
		for i := 0; i < item.Quantity; i++ {
			p := types.NewProduct(item.ProductType, order.ID, lineID, now)
			order.ProductIDs = append(order.ProductIDs, p.ID)
			raw.Deposit(p)
		}
	}
	return order
}
