package pd3

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Config controls one Estimator instance.
type Config struct {
	// ReportSchedule is a semicolon-separated schedule specification; see
	// parseSchedule for grammar.
	ReportSchedule string

	// PeriodInterval bounds how long the aggregator accumulates into one
	// hashMapPeriod before handing it to the reporter, independent of the
	// report schedule's own cadence.
	PeriodInterval time.Duration

	// QueueThreshold overrides queue.DefaultThreshold for the producer-side
	// local queue feeding the aggregator.
	QueueThreshold int

	// ReporterMinBatches is how many completed aggregation periods the
	// reporter accumulates before it will stitch and consume the oldest of
	// them -- the original's periods_to_wait, which doubles as both the
	// batch-accumulation gate and the a2r future-lookahead horizon.
	ReporterMinBatches int

	// MeasureLoss, MeasureReorderExtent, and MeasureReorderDensity gate
	// their respective estimators. All three default on; a caller that
	// only cares about one metric can disable the others to skip their
	// bookkeeping entirely.
	MeasureLoss           bool
	MeasureReorderExtent  bool
	MeasureReorderDensity bool

	// Report receives one Report per flow per reporter schedule item.
	Report ReportCallback
}

// DefaultConfig returns a Config with the same constants the original
// estimator shipped as its program parameters.
func DefaultConfig() Config {
	return Config{
		ReportSchedule:        "log,1",
		PeriodInterval:        time.Second,
		QueueThreshold:        5,
		ReporterMinBatches:    3,
		MeasureLoss:           true,
		MeasureReorderExtent:  true,
		MeasureReorderDensity: true,
	}
}

// RegisterFlags wires Config's fields onto flset, following the
// nlog.InitFlags convention of a *flag.FlagSet parameter rather than the
// package-global flag.CommandLine.
func (c *Config) RegisterFlags(flset *flag.FlagSet) {
	flset.StringVar(&c.ReportSchedule, "report-schedule", c.ReportSchedule,
		"semicolon-separated report schedule: outlets,interval_s[,offset_s];...")
	flset.DurationVar(&c.PeriodInterval, "period-interval", c.PeriodInterval,
		"aggregation period before handoff to the reporter")
	flset.IntVar(&c.QueueThreshold, "queue-threshold", c.QueueThreshold,
		"local queue flush threshold")
	flset.IntVar(&c.ReporterMinBatches, "reporter-min-batches", c.ReporterMinBatches,
		"aggregation periods the reporter accumulates before consuming the oldest")
	flset.BoolVar(&c.MeasureLoss, "measure-loss", c.MeasureLoss,
		"enable the loss estimator")
	flset.BoolVar(&c.MeasureReorderExtent, "measure-reorder-extent", c.MeasureReorderExtent,
		"enable the reorder extent estimator")
	flset.BoolVar(&c.MeasureReorderDensity, "measure-reorder-density", c.MeasureReorderDensity,
		"enable the reorder density estimator")
}

// LoadConfig reads a JSON-encoded Config from path using jsoniter, for
// embedding this estimator behind a configuration file rather than flags.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "pd3: reading config %q", path)
	}
	if err := jsoniter.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "pd3: parsing config %q", path)
	}
	return cfg, nil
}

// MarshalJSON excludes the Report callback, which cannot round-trip.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias struct {
		ReportSchedule        string
		PeriodInterval        time.Duration
		QueueThreshold        int
		ReporterMinBatches    int
		MeasureLoss           bool
		MeasureReorderExtent  bool
		MeasureReorderDensity bool
	}
	return json.Marshal(alias{
		ReportSchedule:        c.ReportSchedule,
		PeriodInterval:        c.PeriodInterval,
		QueueThreshold:        c.QueueThreshold,
		ReporterMinBatches:    c.ReporterMinBatches,
		MeasureLoss:           c.MeasureLoss,
		MeasureReorderExtent:  c.MeasureReorderExtent,
		MeasureReorderDensity: c.MeasureReorderDensity,
	})
}
