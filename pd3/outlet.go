package pd3

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/ProD3-LF/estimators/cmn/nlog"
	"github.com/ProD3-LF/estimators/stats"
)

// Outlet is a named report destination. The original's schedule string
// named free-text "destination(s)"; here each name resolves to a concrete
// Outlet implementation registered with RegisterOutlet.
type Outlet interface {
	Emit(Report)
}

var outlets = map[string]Outlet{}

// RegisterOutlet makes name resolvable by a report schedule's outlets
// field. "log" is registered by this package's init; callers that want a
// JSONOutlet or PromOutlet construct one and register it under whatever
// name their report schedule names before creating an Estimator.
func RegisterOutlet(name string, o Outlet) { outlets[name] = o }

// LogOutlet writes a one-line human-readable summary of each report through
// cmn/nlog.
type LogOutlet struct{}

func (LogOutlet) Emit(r Report) {
	nlog.Infof("pd3 flow=%x packets=%d loss.received=%d loss.dropped=%d reorder.extent[1]=%d",
		r.FlowKey, r.PacketCount, r.Loss.Received, r.Loss.Dropped, r.Extent.Histogram[1])
}

// JSONOutlet writes each report as a JSON object to w, encoded with
// jsoniter for parity with the rest of the repo's JSON handling.
type JSONOutlet struct {
	W io.Writer
}

func (o JSONOutlet) Emit(r Report) {
	enc := jsoniter.NewEncoder(o.W)
	_ = enc.Encode(r)
}

// PromOutlet pushes each report's counters into a stats.Tracker.
type PromOutlet struct {
	Tracker *stats.Tracker
}

func (o PromOutlet) Emit(r Report) {
	if o.Tracker == nil {
		return
	}
	o.Tracker.AddLoss(r.Loss.Received, r.Loss.Dropped)
	o.Tracker.ObserveExtent(r.Extent.Histogram[:])
	o.Tracker.ObserveDensity(r.Density.FD[:])
}

func init() {
	RegisterOutlet("log", LogOutlet{})
}
