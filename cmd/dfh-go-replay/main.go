// Copyright (c) 2025 Quantfeed Corp

package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/relvacode/iso8601"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/core"
	"github.com/quantfeed/dfh-go/storage"
	"github.com/spf13/cobra"
)

///////////////////////////////////////////////////////////////////////////////

var (
	verbose bool

	dbPath string

	symbolID   uint16
	providerID uint16

	startArg string
	endArg   string

	periodMs    uint32
	spreadModel string
	fixedSpread uint32
)

func requireNoError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

///////////////////////////////////////////////////////////////////////////////

func main() {
	cobra.OnInitialize()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.Flags().StringVarP(&dbPath, "db", "d", "", "Path to the MDBX environment directory")
	rootCmd.MarkFlagRequired("db")
	rootCmd.Flags().Uint16VarP(&symbolID, "symbol", "s", 0, "Symbol identifier")
	rootCmd.Flags().Uint16VarP(&providerID, "provider", "p", 0, "Provider identifier")
	rootCmd.Flags().StringVar(&startArg, "start", "", "Replay start (ISO8601)")
	rootCmd.MarkFlagRequired("start")
	rootCmd.Flags().StringVar(&endArg, "end", "", "Replay end (ISO8601)")
	rootCmd.MarkFlagRequired("end")
	rootCmd.Flags().Uint32Var(&periodMs, "period", 1000, "Snapshot period in milliseconds")
	rootCmd.Flags().StringVar(&spreadModel, "spread", "none", "Bid/ask model: none, fixed, dynamic, median")
	rootCmd.Flags().Uint32Var(&fixedSpread, "fixed-spread", 1, "Fixed spread in price points")

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

///////////////////////////////////////////////////////////////////////////////

// replaySource adapts the tick store to the bus with a fixed index space.
type replaySource struct {
	ticks     *storage.TickDB
	symbols   int
	providers int
}

func (s *replaySource) FetchTicks(symbolID, providerID uint16, startTs, endTs uint64) ([]dfh.MarketTick, dfh.TickCodecConfig, error) {
	return s.ticks.FetchTicks(symbolID, providerID, startTs, endTs)
}

func (s *replaySource) SymbolCount() int   { return s.symbols }
func (s *replaySource) ProviderCount() int { return s.providers }

///////////////////////////////////////////////////////////////////////////////

// printingListener reports each snapshot's newest tick on stdout.
type printingListener struct {
	symbolIndex   uint16
	providerIndex uint16
	snapshots     int
	ticks         int
}

func (l *printingListener) OnUpdate(snapshot *core.MarketSnapshot) error {
	if snapshot.HasFlag(core.Event_Start) {
		fmt.Printf("start %s\n", dfh.TimestampMsToTime(snapshot.TimeMs()).Format("2006-01-02T15:04:05.000Z"))
		return nil
	}
	l.snapshots++
	span := snapshot.TickSpan(l.symbolIndex, l.providerIndex)
	l.ticks += span.Size()
	if span.Empty() {
		return nil
	}
	tick := span.Data[span.Size()-1]
	fmt.Printf("%s bid=%.8g ask=%.8g last=%.8g n=%d\n",
		dfh.TimestampMsToTime(snapshot.TimeMs()).Format("15:04:05.000"),
		tick.Bid, tick.Ask, tick.Last, span.Size())
	return nil
}

///////////////////////////////////////////////////////////////////////////////

var rootCmd = &cobra.Command{
	Use:   "dfh-go-replay",
	Short: "dfh-go-replay replays stored ticks through the market data bus",
	Long:  "dfh-go-replay replays stored ticks through the market data bus",
	Run: func(cmd *cobra.Command, args []string) {
		startTime, err := iso8601.ParseString(startArg)
		requireNoError(err)
		endTime, err := iso8601.ParseString(endArg)
		requireNoError(err)

		store, err := storage.Open(storage.Config{Path: dbPath, ReadOnly: true})
		requireNoError(err)
		defer store.Close()
		requireNoError(store.Start())

		source := &replaySource{
			ticks:     store.Ticks,
			symbols:   int(symbolID) + 1,
			providers: int(providerID) + 1,
		}
		bus := core.NewMarketDataBus(source)
		bus.SetDiagnosticSink(os.Stderr)

		mode := dfh.BidAskModel_None
		switch spreadModel {
		case "none":
		case "fixed":
			mode = dfh.BidAskModel_FixedSpread
		case "dynamic":
			mode = dfh.BidAskModel_DynamicSpread
		case "median":
			mode = dfh.BidAskModel_MedianSpread
		default:
			requireNoError(fmt.Errorf("unknown spread model %q", spreadModel))
		}
		requireNoError(bus.Buffers().SetBidAskConfig(dfh.BidAskRestoreConfig{
			Mode:        mode,
			FixedSpread: fixedSpread,
		}))

		listener := &printingListener{symbolIndex: symbolID, providerIndex: providerID}
		handle, err := core.NewListenerHandle(bus, listener)
		requireNoError(err)
		defer handle.Close()

		bus.SubscribeTimer(handle.ID(), periodMs)
		bus.SubscribeTicks(handle.ID(), symbolID, providerID)

		startMs := uint64(startTime.UnixMilli())
		endMs := uint64(endTime.UnixMilli())

		bus.Start(startMs)
		for t := startMs + uint64(periodMs); t <= endMs; t += uint64(periodMs) {
			requireNoError(bus.Update(t))
		}

		if verbose {
			fmt.Fprintf(os.Stderr, "%s snapshots, %s ticks\n",
				humanize.Comma(int64(listener.snapshots)), humanize.Comma(int64(listener.ticks)))
		}
	},
}
