// Package types defines the data model shared across the simulation kernel:
// products, orders, and the enumerations every device works against.
package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ProductType enumerates the three product families the line manufactures.
// Only the type and its material/failure/cycle parameters differ; the
// routing graph is the same for all three.
type ProductType string

const (
	ProductP1 ProductType = "P1"
	ProductP2 ProductType = "P2"
	ProductP3 ProductType = "P3"
)

// MaterialCost returns the cost units charged when a product of this type is
// picked up at the raw-material warehouse.
func (t ProductType) MaterialCost() float64 {
	switch t {
	case ProductP1:
		return 10
	case ProductP2:
		return 15
	case ProductP3:
		return 20
	default:
		return 0
	}
}

// FailureProbability is the Bernoulli probability that a quality check on a
// product of this type fails.
func (t ProductType) FailureProbability() float64 {
	switch t {
	case ProductP1:
		return 0.06
	case ProductP2:
		return 0.08
	case ProductP3:
		return 0.12
	default:
		return 0
	}
}

// TheoreticalCycleTime is the nominal end-to-end time used to normalize the
// production-cycle KPI and to size order deadlines.
func (t ProductType) TheoreticalCycleTime() float64 {
	switch t {
	case ProductP1:
		return 160
	case ProductP2:
		return 200
	case ProductP3:
		return 250
	default:
		return 0
	}
}

// Priority is an order's urgency class; it scales the deadline multiplier.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DeadlineMultiplier returns the factor applied to theoretical cycle time
// when computing an order's deadline.
func (p Priority) DeadlineMultiplier() float64 {
	switch p {
	case PriorityLow:
		return 3.0
	case PriorityMedium:
		return 2.0
	case PriorityHigh:
		return 1.5
	default:
		return 3.0
	}
}

// DeviceKind tags the variant of a heterogeneous device.
type DeviceKind string

const (
	KindStation      DeviceKind = "Station"
	KindConveyor     DeviceKind = "Conveyor"
	KindWarehouse    DeviceKind = "Warehouse"
	KindAGV          DeviceKind = "AGV"
	KindQualityCheck DeviceKind = "QualityCheck"
)

// Status is the common device state machine value (see internal/fsm).
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusProcessing Status = "PROCESSING"
	StatusMoving     Status = "MOVING"
	StatusLoading    Status = "LOADING"
	StatusUnloading  Status = "UNLOADING"
	StatusCharging   Status = "CHARGING"
	StatusFault      Status = "FAULT"
	StatusBlocked    Status = "BLOCKED"
)

// Product is a single unit of work flowing through a line's process graph.
type Product struct {
	ID           string
	Type         ProductType
	CreatedAt    float64
	OrderID      string
	LineID       string
	Step         int // current routing-step index
	Attempts     int // quality checks performed: 0, 1, or 2 (a second failed check scraps)
	MaterialCost float64

	// Stage timestamps, keyed by a short stage label ("enter_station_a",
	// "leave_station_a", "enter_conveyor_ab", ...). Kept as a map rather than
	// named fields because the set of stages differs for P3 (second pass
	// through B and C).
	Timestamps map[string]float64

	// Visits counts how many times the product has been admitted to each
	// station ID's input buffer. Used to tell a P3 product's first pass through Station C
	// (route to the conveyor's holding buffer) from its second (route to
	// Quality).
	Visits map[string]int
}

// VisitCount returns how many times the product has been admitted to
// stationID.
func (p *Product) VisitCount(stationID string) int {
	if p.Visits == nil {
		return 0
	}
	return p.Visits[stationID]
}

// RecordVisit increments stationID's visit count.
func (p *Product) RecordVisit(stationID string) {
	if p.Visits == nil {
		p.Visits = make(map[string]int)
	}
	p.Visits[stationID]++
}

// NewProduct creates a product with a freshly generated ID of the form
// prod_{type}_{uuid}.
func NewProduct(t ProductType, orderID, lineID string, now float64) *Product {
	return &Product{
		ID:           fmt.Sprintf("prod_%s_%s", t, newUUID()),
		Type:         t,
		CreatedAt:    now,
		OrderID:      orderID,
		LineID:       lineID,
		MaterialCost: t.MaterialCost(),
		Timestamps:   make(map[string]float64),
		Visits:       make(map[string]int),
	}
}

// Mark records a stage timestamp.
func (p *Product) Mark(stage string, at float64) {
	p.Timestamps[stage] = at
}

// Order is a batch of products a line must deliver by a deadline.
type Order struct {
	ID         string
	CreatedAt  float64
	Deadline   float64
	Priority   Priority
	Items      []OrderItem
	ProductIDs []string // products created for this order, for completion tracking

	completed map[string]bool
}

// OrderItem is one (product type, quantity) line of an order.
type OrderItem struct {
	ProductType ProductType
	Quantity    int
}

// NewOrder creates an order with a freshly generated ID.
func NewOrder(now float64, priority Priority, items []OrderItem) *Order {
	return &Order{
		ID:        fmt.Sprintf("order_%s", newUUID()[:8]),
		CreatedAt: now,
		Priority:  priority,
		Items:     items,
		completed: make(map[string]bool),
	}
}

// TheoreticalTime sums the nominal cycle time of every product the order
// contains, used by the deadline formula in spec.md §4.7.
func (o *Order) TheoreticalTime() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.ProductType.TheoreticalCycleTime() * float64(item.Quantity)
	}
	return total
}

// MarkProductDone records that a product belonging to this order reached a
// terminal state (finished goods or scrap). Returns true once every product
// in the order has reached a terminal state.
func (o *Order) MarkProductDone(productID string) bool {
	if o.completed == nil {
		o.completed = make(map[string]bool)
	}
	o.completed[productID] = true
	return len(o.completed) >= len(o.ProductIDs)
}

func newUUID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}
