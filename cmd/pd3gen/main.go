// Command pd3gen drives an Estimator with a synthetic packet stream, for
// manual soak-testing and for eyeballing report output under configurable
// loss/reorder rates.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/ProD3-LF/estimators/cmn/cos"
	"github.com/ProD3-LF/estimators/cmn/nlog"
	"github.com/ProD3-LF/estimators/pd3"
)

func main() {
	app := cli.NewApp()
	app.Name = "pd3gen"
	app.Usage = "replay a synthetic packet stream through the pd3 estimator"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "count", Value: 100000, Usage: "number of packets to generate"},
		cli.Float64Flag{Name: "loss-rate", Value: 0.01, Usage: "probability a packet is dropped"},
		cli.Float64Flag{Name: "reorder-rate", Value: 0.02, Usage: "probability a packet is delayed (reordered)"},
		cli.StringFlag{Name: "schedule", Value: "log,1", Usage: "report schedule string"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		cos.ExitLogf("%v", err)
	}
}

func run(c *cli.Context) error {
	var flset flag.FlagSet
	nlog.InitFlags(&flset)
	flset.Parse(nil)

	cfg := pd3.DefaultConfig()
	cfg.ReportSchedule = c.String("schedule")

	est, err := pd3.New(cfg)
	if err != nil {
		return err
	}
	defer est.Close()

	n := c.Int("count")
	lossRate := c.Float64("loss-rate")
	reorderRate := c.Float64("reorder-rate")

	bar := mpb.New(mpb.WithWidth(64))
	pbar := bar.AddBar(int64(n),
		mpb.PrependDecorators(decor.Name("replay")),
		mpb.AppendDecorators(decor.Percentage()),
	)

	rng := rand.New(rand.NewSource(1))
	flow := pd3.Key{0x01, 0x02}
	ctx := context.Background()

	var pending []pd3.Seqno
	var seqno pd3.Seqno
	for i := 0; i < n; i++ {
		s := seqno
		seqno++

		if rng.Float64() < lossRate {
			pbar.Increment()
			continue
		}
		if rng.Float64() < reorderRate {
			pending = append(pending, s)
			pbar.Increment()
			continue
		}
		_ = est.PushPacketInfo(ctx, pd3.PacketInfo{FlowKey: flow, Seqno: s})
		if len(pending) > 0 && rng.Float64() < 0.5 {
			late := pending[0]
			pending = pending[1:]
			_ = est.PushPacketInfo(ctx, pd3.PacketInfo{FlowKey: flow, Seqno: late})
		}
		pbar.Increment()
	}
	for _, s := range pending {
		_ = est.PushPacketInfo(ctx, pd3.PacketInfo{FlowKey: flow, Seqno: s})
	}

	bar.Wait()
	fmt.Println("done")
	time.Sleep(50 * time.Millisecond)
	return nil
}
