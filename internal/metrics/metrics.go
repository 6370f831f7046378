// Package metrics exposes the factory's runtime behavior to Prometheus,
// mirroring the teacher's queue-depth/processed-count/duration-histogram
// trio, retargeted from scheduler tasks to factory devices.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsInFlight tracks, per AGV, how many queued commands are still
	// waiting to be dispatched.
	CommandsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factory_agv_commands_in_flight",
		Help: "Number of commands currently queued for an AGV",
	}, []string{"line", "agv"})

	// CommandsProcessedTotal counts command outcomes by line, action and
	// result ("success" | "rejected" | "forced_charge").
	CommandsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_commands_processed_total",
		Help: "Total number of agent commands dispatched, by outcome",
	}, []string{"line", "action", "outcome"})

	// StationProcessingDuration is the distribution of time a product spends
	// being actively processed at a station (the quality checker does not
	// observe it).
	StationProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "factory_station_processing_duration_seconds",
		Help:    "Time spent processing one product at a station",
		Buckets: prometheus.DefBuckets,
	}, []string{"line", "station_id"})

	// ProductsCompletedTotal counts AGV unloads of a product, by outcome
	// ("passed" at finished goods | "rework" back at Station C).
	ProductsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_products_completed_total",
		Help: "Total number of products unloaded at finished goods (passed) or Station C (rework)",
	}, []string{"line", "product_type", "outcome"})

	// AGVBatteryPercent is a live gauge of each AGV's battery level, useful
	// for spotting agents that run their AGVs into forced charges.
	AGVBatteryPercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factory_agv_battery_percent",
		Help: "Current AGV battery level, 0-100",
	}, []string{"line", "agv"})

	// FaultsInjectedTotal counts faults injected by device kind.
	FaultsInjectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_faults_injected_total",
		Help: "Total number of faults injected, by device kind",
	}, []string{"line", "kind"})

	// KPIScore mirrors the aggregator's current total score, sub-scored by
	// group ("production" | "quality_cost" | "agv").
	KPIScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factory_kpi_score",
		Help: "Current KPI score, by group and overall (group=total)",
	}, []string{"group"})
)
