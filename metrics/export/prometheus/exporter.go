package prometheus

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	tokenward "github.com/tokenward/tokenward"
	"github.com/tokenward/tokenward/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() tokenward.MetricsSnapshot
	State() tokenward.State
	AuditDropped() uint64
	AuditDroppedEvents() map[string]uint64
}

// PrometheusExporter renders tokenward metrics in Prometheus text exposition format.
//
// Besides the core counters and histograms it exposes the keeper's current
// lifecycle state as a one-hot gauge and audit drop counts broken down by
// event type.
//
//	Docs: docs/metrics.md
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates a Prometheus exporter that reads from the given [tokenward.Keeper].
//
//	Docs: docs/metrics.md
func NewPrometheusExporter(keeper *tokenward.Keeper) *PrometheusExporter {
	return &PrometheusExporter{source: keeper}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from a
// custom [MetricsSource].
//
//	Docs: docs/metrics.md
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves Prometheus metrics.
//
//	Docs: docs/metrics.md
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current metrics in Prometheus text exposition format.
//
// The keeper state gauge is always present; counter and histogram families
// are omitted entirely when the core metrics registry is disabled and no
// audit events have been dropped.
//
//	Docs: docs/metrics.md
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	state := p.source.State()

	var b strings.Builder
	b.Grow(4096)

	p.renderState(&b, state)

	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return b.String()
	}

	for _, def := range internaldefs.CounterDefs {
		family(&b, def.Name, def.Help, "counter")
		series(&b, def.Name, "", snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		p.renderLatency(&b, def, snapshot.Histograms[def.ID])
	}

	p.renderDropped(&b, dropped)

	return b.String()
}

// renderState emits one series per lifecycle state so dashboards can key on
// the state label instead of decoding an enum value.
func (p *PrometheusExporter) renderState(b *strings.Builder, state tokenward.State) {
	family(b, internaldefs.StateGaugeName, internaldefs.StateGaugeHelp, "gauge")
	for _, s := range internaldefs.StateValues {
		var active uint64
		if s == state {
			active = 1
		}
		series(b, internaldefs.StateGaugeName, fmt.Sprintf("{state=%q}", s.String()), active)
	}
}

func (p *PrometheusExporter) renderLatency(b *strings.Builder, def internaldefs.HistogramDef, raw []uint64) {
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))

	family(b, def.Name, def.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		series(b, def.Name+"_bucket", fmt.Sprintf("{le=%q}", le), cumulative[i])
	}
	series(b, def.Name+"_count", "", cumulative[len(cumulative)-1])
	// Sum is not available in core snapshots; keep a stable field for compatibility.
	series(b, def.Name+"_sum", "", 0)
}

// renderDropped emits the total plus one labeled series per audit event type
// that has lost events, in sorted order for deterministic output.
func (p *PrometheusExporter) renderDropped(b *strings.Builder, dropped uint64) {
	family(b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	series(b, internaldefs.AuditDroppedName, "", dropped)

	byType := p.source.AuditDroppedEvents()
	if len(byType) == 0 {
		return
	}
	types := make([]string, 0, len(byType))
	for eventType := range byType {
		types = append(types, eventType)
	}
	sort.Strings(types)
	for _, eventType := range types {
		series(b, internaldefs.AuditDroppedName, fmt.Sprintf("{event_type=%q}", eventType), byType[eventType])
	}
}

func family(b *strings.Builder, name, help, kind string) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func series(b *strings.Builder, name, labels string, value uint64) {
	fmt.Fprintf(b, "%s%s %d\n", name, labels, value)
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
