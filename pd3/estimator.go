package pd3

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ProD3-LF/estimators/cmn/cos"
	"github.com/ProD3-LF/estimators/cmn/nlog"
	"github.com/ProD3-LF/estimators/pd3/queue"
)

// ErrUnknownFlow is the not-found error for a flow the estimator has never
// seen. No Estimator method returns it.
var ErrUnknownFlow = cos.NewErrNotFound("flow")

// trackerEntry is one schedule item's running accumulation for one stream
// key, built up over ReporterMinBatches-or-more periods via accumulate_time
// until that item's own deadline fires and it is consolidated and reset.
type trackerEntry struct {
	packetData packetData
	loss       LossReport
	extent     ExtentReport
	density    DensityReport
	flowState  FlowState
}

// Estimator owns one pipeline instance: an aggregator goroutine that
// accumulates pushed packets into periods, and a reporter goroutine that
// stitches completed periods against their neighbors, accumulates them
// into per-schedule-item trackers, and emits Reports once a tracker's own
// deadline passes. Unlike the original (whose equivalent state lived in
// file-scope static variables), every bit of mutable state lives on this
// struct, so more than one Estimator can run in the same process.
type Estimator struct {
	cfg Config

	defaultMu     sync.Mutex
	defaultHandle *ProducerHandle
	ctrlHandle    *queue.Handle

	// aggregator-owned: touched only from aggregatorThread, so these need
	// no lock of their own.
	aggFreelist    *itemFreelist
	current        *hashMapPeriod
	periodSeq      int64
	extentCursors  map[ItemKey]*extentCursor
	densityCursors map[ItemKey]*densityCursor

	// reporter-owned: touched only from reporterThread.
	reportFreelist *itemFreelist
	lossStates     map[ItemKey]*lossState
	trackers       []map[ItemKey]*trackerEntry

	// shared area: mutex+cond-guarded handoff of completed periods from
	// aggregator to reporter, mirroring data_exchange_{aggregator,reporter}_unsafe.
	periodFl *periodFreelist
	mu       sync.Mutex
	cond     *sync.Cond
	pending  *hashMapList
	closed   bool

	schedule *reportSchedule

	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group
}

// New creates an Estimator and starts its aggregator and reporter
// goroutines.
func New(cfg Config) (*Estimator, error) {
	now := time.Now()
	sched, err := parseSchedule(cfg.ReportSchedule, now)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Estimator{
		cfg:            cfg,
		ctrlHandle:     queue.GetHandle("client", "aggregator"),
		aggFreelist:    newItemFreelist("aggregator"),
		reportFreelist: newItemFreelist("reporter"),
		periodFl:       &periodFreelist{},
		extentCursors:  make(map[ItemKey]*extentCursor),
		densityCursors: make(map[ItemKey]*densityCursor),
		lossStates:     make(map[ItemKey]*lossState),
		pending:        newHashMapList(),
		schedule:       sched,
		ctx:            ctx,
		cancel:         cancel,
	}
	e.cond = sync.NewCond(&e.mu)
	e.trackers = make([]map[ItemKey]*trackerEntry, sched.parallelism())
	for i := range e.trackers {
		e.trackers[i] = make(map[ItemKey]*trackerEntry)
	}
	if cfg.QueueThreshold > 0 {
		e.ctrlHandle.SetThreshold(cfg.QueueThreshold)
	}
	e.defaultHandle = e.CreateHandle()
	e.current = e.periodFl.get(e.periodSeq)

	eg, ctx := errgroup.WithContext(ctx)
	e.eg = eg
	eg.Go(func() error { return e.aggregatorThread(ctx) })
	eg.Go(func() error { return e.reporterThread(ctx) })
	return e, nil
}

// ProducerHandle is a dedicated per-caller queue handle: pd3_estimator's
// create_handle/destroy_handle. Each caller should push through its own
// handle rather than sharing one, since a handle's local batching buffer
// is only safe for use from a single goroutine at a time; the underlying
// shared queue each handle flushes into is mutex-protected and safe to
// have many handles draining into concurrently.
type ProducerHandle struct {
	qh *queue.Handle
}

// CreateHandle returns a new handle for pushing packets into this
// estimator.
func (e *Estimator) CreateHandle() *ProducerHandle {
	h := queue.GetHandle("client", "aggregator")
	if e.cfg.QueueThreshold > 0 {
		h.SetThreshold(e.cfg.QueueThreshold)
	}
	return &ProducerHandle{qh: h}
}

// Push enqueues one packet's metadata for the aggregator to consume.
func (h *ProducerHandle) Push(pi PacketInfo) {
	h.qh.Enqueue(pi, queue.FlushDefault)
}

// Close releases the handle's reference to the shared aggregator queue.
func (h *ProducerHandle) Close() error { return h.qh.Close() }

// PushPacketInfo enqueues one packet's metadata through the estimator's
// default handle, which it serializes with a mutex so this method is safe
// to call from any number of goroutines. A producer pushing in a tight
// loop from its own goroutine should prefer CreateHandle and push through
// a dedicated handle instead, to avoid contending on that lock.
func (e *Estimator) PushPacketInfo(_ context.Context, pi PacketInfo) error {
	e.defaultMu.Lock()
	e.defaultHandle.Push(pi)
	e.defaultMu.Unlock()
	return nil
}

// Flush forces the current aggregation period to close immediately and be
// handed to the reporter, without waiting for cfg.PeriodInterval to
// elapse.
func (e *Estimator) Flush(ctx context.Context) error {
	e.defaultMu.Lock()
	e.defaultHandle.qh.Flush()
	e.defaultMu.Unlock()
	e.ctrlHandle.Flush()
	done := make(chan struct{})
	e.ctrlHandle.Enqueue(flushMarker{done: done}, queue.FlushNow)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flushMarker is pushed through the same queue as ordinary packets to make
// an explicit Flush request land in FIFO order relative to already-pushed
// packets, rather than racing a separate signal path against the queue.
type flushMarker struct {
	done chan struct{}
}

// Close stops the aggregator and reporter goroutines, flushing any
// in-flight period first, and returns the first error either goroutine
// encountered.
func (e *Estimator) Close() error {
	errs := &cos.Errs{}
	if err := e.Flush(context.Background()); err != nil {
		errs.Add(err)
	}
	e.ctrlHandle.CloseQueue()
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
	e.cancel()
	if err := e.eg.Wait(); err != nil {
		errs.Add(err)
	}
	if err := e.ctrlHandle.Close(); err != nil {
		errs.Add(err)
	}
	if err := e.defaultHandle.Close(); err != nil {
		errs.Add(err)
	}
	if n := errs.Cnt(); n > 0 {
		return errs
	}
	return nil
}

//
// aggregator
//

func (e *Estimator) aggregatorThread(ctx context.Context) error {
	ticker := time.NewTicker(periodOr(e.cfg.PeriodInterval))
	defer ticker.Stop()

	msgs := make(chan any)
	go func() {
		defer close(msgs)
		for {
			v, err := e.ctrlHandle.Dequeue()
			if err != nil {
				return
			}
			select {
			case msgs <- v:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.periodTransition()
		case v, ok := <-msgs:
			if !ok {
				return nil
			}
			switch msg := v.(type) {
			case PacketInfo:
				e.handlePacketArrival(msg)
			case flushMarker:
				e.periodTransition()
				close(msg.done)
			}
		}
	}
}

func periodOr(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	return d
}

// handlePacketArrival updates the current period's item for one packet's
// stream, plus that stream's persistent extent/density cursors. Driving
// the reorder estimators at arrival time rather than replaying a period's
// ranges at report time (reorderdata_a2r's approach) is equivalent as long
// as the cursor survives across periods, which extentCursors/densityCursors
// guarantee by living on the Estimator rather than on the per-period,
// freelist-reset hashMapItem.
func (e *Estimator) handlePacketArrival(pi PacketInfo) {
	key := streamKey(pi.FlowKey, pi.StreamID)
	it := e.current.force(key, e.aggFreelist)

	it.packetData.arrival(time.Now(), pi.Seqno)

	if e.cfg.MeasureLoss {
		lossArrival(it, pi.Seqno)
	}
	if e.cfg.MeasureReorderExtent {
		extentArrival(e.extentCursorFor(key), &it.extent, pi.Seqno)
	}
	if e.cfg.MeasureReorderDensity {
		densityArrival(e.densityCursorFor(key), &it.density, pi.Seqno)
	}
}

func (e *Estimator) extentCursorFor(key ItemKey) *extentCursor {
	cur := e.extentCursors[key]
	if cur == nil {
		cur = &extentCursor{}
		e.extentCursors[key] = cur
	}
	return cur
}

func (e *Estimator) densityCursorFor(key ItemKey) *densityCursor {
	cur := e.densityCursors[key]
	if cur == nil {
		cur = &densityCursor{}
		e.densityCursors[key] = cur
	}
	return cur
}

// periodTransition closes out the aggregator's current period and hands
// it to the reporter across the shared area, mirroring
// data_exchange_aggregator_unsafe/period_transition.
func (e *Estimator) periodTransition() {
	done := e.current
	e.periodSeq++
	e.current = e.periodFl.get(e.periodSeq)

	e.mu.Lock()
	e.pending.pushLatest(done)
	e.cond.Signal()
	e.mu.Unlock()
}

//
// reporter
//

func (e *Estimator) reporterThread(ctx context.Context) error {
	working := newHashMapList()
	for {
		earliest, _, n := e.nextBatch(ctx)
		if n > 0 {
			working.pushAllFrom(earliest)
		}

		periodsToWait := e.cfg.ReporterMinBatches
		if periodsToWait < 1 {
			periodsToWait = 1
		}

		now := time.Now()
		for working.count() >= periodsToWait {
			e.drainOne(working, periodsToWait, now)
		}

		if n > 0 {
			continue
		}
		if e.isClosed() {
			for !working.empty() {
				e.drainOne(working, periodsToWait, time.Now())
			}
			return nil
		}
		return nil // ctx cancelled with nothing pending
	}
}

// drainOne pops the single earliest period still held in working and
// stitches/accumulates it, using whatever periods remain chained after it
// (still attached via .next, since popEarliest only clears the popped
// period's own links) as the a2r future-lookahead horizon.
func (e *Estimator) drainOne(working *hashMapList, periodsToWait int, now time.Time) {
	p := working.earliest
	future := p.next
	working.popEarliest()
	e.accumulatePeriod(p, future, periodsToWait, now)
	e.periodFl.put(p, e.reportFreelist)
}

// nextBatch blocks until at least one completed period is available from
// the aggregator or the estimator is closing, then detaches everything
// currently queued in one handoff: data_exchange_reporter_unsafe's
// moveall_hashmap.
func (e *Estimator) nextBatch(ctx context.Context) (earliest, latest *hashMapPeriod, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.pending.empty() && !e.closed {
		if ctx.Err() != nil {
			return nil, nil, 0
		}
		e.cond.Wait()
	}
	return e.pending.moveAll()
}

func (e *Estimator) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// accumulatePeriod runs a2r loss stitching for every stream in p, folds
// every stream's packet-data/loss/extent/density into each schedule item's
// running tracker (accumulate_time), and for any tracker whose deadline
// has passed, consolidates its streams into flows (accumulate_flow) and
// emits a Report per flow before resetting that tracker alone.
func (e *Estimator) accumulatePeriod(p, future *hashMapPeriod, periodsToWait int, now time.Time) {
	p.items(func(it *hashMapItem) {
		var loss LossReport
		if e.cfg.MeasureLoss {
			loss = lossA2R(&it.lossRanges, it.flowState, e.lossStateFor(it.key), future, it.key, periodsToWait)
		}
		e.accumulateIntoTrackers(it.key, it, loss)
	})

	for i := range e.trackers {
		names := e.schedule.due(i, now)
		if names == nil {
			continue
		}
		e.consolidateAndEmit(i, names)
		e.trackers[i] = make(map[ItemKey]*trackerEntry)
		e.schedule.reset(i, now)
	}
}

func (e *Estimator) lossStateFor(key ItemKey) *lossState {
	st := e.lossStates[key]
	if st == nil {
		st = &lossState{}
		e.lossStates[key] = st
	}
	return st
}

// accumulateIntoTrackers folds one stream's just-stitched period results
// into every schedule item's tracker entry for that stream:
// lossdata_accumulate_time plus the extent/density and packet-data
// equivalents.
func (e *Estimator) accumulateIntoTrackers(key ItemKey, it *hashMapItem, loss LossReport) {
	for i := range e.trackers {
		te := e.trackers[i][key]
		if te == nil {
			te = &trackerEntry{}
			e.trackers[i][key] = te
		}
		te.packetData.accumulate(&it.packetData)
		if e.cfg.MeasureLoss {
			accumulateLoss(&te.loss, &loss)
		}
		if e.cfg.MeasureReorderExtent {
			accumulateExtent(&te.extent, &it.extent)
		}
		if e.cfg.MeasureReorderDensity {
			accumulateDensity(&te.density, &it.density)
		}
		te.flowState = te.flowState.Concatenate(it.flowState)
	}
}

// consolidateAndEmit implements build_callback_results's STREAM->FLOW
// consolidation for one due schedule item: every stream-keyed tracker
// entry is folded into its flow (stream_id forced to 0 via flowKey), a
// stream counts toward badFlows when its own flowstate is inconsistent
// (flowstate_error, checked the way lossdata_accumulate_flows does it
// rather than concatenated the way accumulate_time does), and one Report
// per flow with at least one packet is emitted through names plus the
// configured callback.
func (e *Estimator) consolidateAndEmit(i int, names []string) {
	flows := make(map[ItemKey]*trackerEntry)
	badFlows := make(map[ItemKey]int)

	for key, te := range e.trackers[i] {
		fk := flowKey(key.FlowKey) // stream_id forced to 0: set_flowtuple
		fte := flows[fk]
		if fte == nil {
			fte = &trackerEntry{}
			flows[fk] = fte
		}
		fte.packetData.accumulate(&te.packetData)
		accumulateLoss(&fte.loss, &te.loss)
		accumulateExtent(&fte.extent, &te.extent)
		accumulateDensity(&fte.density, &te.density)
		if te.flowState.Error() {
			badFlows[fk]++
		}
	}

	for fk, fte := range flows {
		if fte.packetData.packetCount == 0 {
			continue
		}
		if e.cfg.MeasureLoss {
			fte.loss.finalize()
		}
		rep := Report{
			FlowKey:      fk.FlowKey,
			Earliest:     fte.packetData.earliest,
			Latest:       fte.packetData.latest,
			Duration:     fte.packetData.latest.Sub(fte.packetData.earliest),
			MinSeq:       fte.packetData.minSeq,
			MaxSeq:       fte.packetData.maxSeq,
			PacketCount:  fte.packetData.packetCount,
			LossValid:    e.cfg.MeasureLoss,
			Loss:         fte.loss,
			ExtentValid:  e.cfg.MeasureReorderExtent,
			Extent:       fte.extent,
			DensityValid: e.cfg.MeasureReorderDensity,
			Density:      fte.density,
			FlowState:    fte.flowState,
			BadFlows:     badFlows[fk],
		}
		e.emit(rep, names)
	}
}

func (e *Estimator) emit(rep Report, names []string) {
	for _, name := range names {
		if o, ok := outlets[name]; ok {
			o.Emit(rep)
		} else {
			nlog.Warningf("pd3: unknown report outlet %q", name)
		}
	}
	if e.cfg.Report != nil {
		e.cfg.Report(rep)
	}
}
