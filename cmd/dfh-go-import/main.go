// Copyright (c) 2025 Quantfeed Corp

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/ingest"
	"github.com/quantfeed/dfh-go/storage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

///////////////////////////////////////////////////////////////////////////////

var (
	verbose bool

	dbPath string

	exchangeName string // bybit-futures, binance-spot, binance-futures
	symbolID     uint16
	providerID   uint16

	priceDigits   uint8
	volumeDigits  uint8
	autoPrecision bool

	parallelism int
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
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the MDBX environment directory")
	rootCmd.MarkPersistentFlagRequired("db")

	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&exchangeName, "exchange", "e", "", "Exchange format: bybit-futures, binance-spot, binance-futures")
	importCmd.MarkFlagRequired("exchange")
	importCmd.Flags().Uint16VarP(&symbolID, "symbol", "s", 0, "Symbol identifier")
	importCmd.Flags().Uint16VarP(&providerID, "provider", "p", 0, "Provider identifier")
	importCmd.Flags().Uint8Var(&priceDigits, "price-digits", 2, "Price decimal places")
	importCmd.Flags().Uint8Var(&volumeDigits, "volume-digits", 3, "Volume decimal places")
	importCmd.Flags().BoolVar(&autoPrecision, "auto-precision", true, "Auto-detect precision from the data")
	importCmd.Flags().IntVarP(&parallelism, "jobs", "j", 4, "Parallel file parses")

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

///////////////////////////////////////////////////////////////////////////////

var rootCmd = &cobra.Command{
	Use:   "dfh-go-import",
	Short: "dfh-go-import loads exchange trade exports into tick storage",
	Long:  "dfh-go-import loads exchange trade exports into tick storage",
}

var importCmd = &cobra.Command{
	Use:   "import file...",
	Short: "Import trade CSV exports into the tick store",
	Long:  "Import trade CSV exports into the tick store",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := storage.Open(storage.Config{Path: dbPath})
		requireNoError(err)
		defer store.Close()
		requireNoError(store.Start())

		// Parsing fans out; upserts stay on this goroutine because the
		// storage layer is single-writer.
		type parsed struct {
			name     string
			sequence *dfh.TickSequence
			rawSize  int
		}
		results := make([]parsed, len(args))

		var group errgroup.Group
		group.SetLimit(parallelism)
		var mu sync.Mutex
		for i, sourceFile := range args {
			i, sourceFile := i, sourceFile
			group.Go(func() error {
				sequence, rawSize, err := parseFile(sourceFile)
				if err != nil {
					return fmt.Errorf("%s: %w", sourceFile, err)
				}
				mu.Lock()
				results[i] = parsed{name: sourceFile, sequence: sequence, rawSize: rawSize}
				mu.Unlock()
				return nil
			})
		}
		requireNoError(group.Wait())

		for _, result := range results {
			config := dfh.TickCodecConfig{
				PriceDigits:  result.sequence.PriceDigits,
				VolumeDigits: result.sequence.VolumeDigits,
				Flags: dfh.TickCodec_EnableTickFlags |
					dfh.TickCodec_EnableVolume |
					dfh.TickCodec_TradeBased,
			}
			err = store.Ticks.UpsertTicks(symbolID, providerID, result.sequence.Ticks, &config)
			requireNoError(err)
			if verbose {
				fmt.Printf("%s: %s ticks from %s raw (digits %d/%d)\n",
					result.name,
					humanize.Comma(int64(len(result.sequence.Ticks))),
					humanize.Bytes(uint64(result.rawSize)),
					result.sequence.PriceDigits, result.sequence.VolumeDigits)
			}
		}
	},
}

///////////////////////////////////////////////////////////////////////////////

// parseFile reads one export container and parses it per the selected
// exchange format.
func parseFile(sourceFile string) (*dfh.TickSequence, int, error) {
	reader, closer, err := dfh.MakeCompressedReader(sourceFile, false)
	if err != nil {
		return nil, 0, err
	}
	if closer != nil {
		defer closer.Close()
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, err
	}

	opts := ingest.Options{
		PriceDigits:         priceDigits,
		VolumeDigits:        volumeDigits,
		AutoDetectPrecision: autoPrecision,
	}

	switch exchangeName {
	case "bybit-futures":
		sequence, err := ingest.ParseBybitTrades(content, opts)
		return sequence, len(content), err
	case "binance-spot", "binance-futures":
		if strings.HasSuffix(sourceFile, ".zip") {
			if content, err = ingest.ExtractFirstZipEntry(content); err != nil {
				return nil, 0, err
			}
		}
		sequence, err := ingest.ParseBinanceTrades(content, opts)
		return sequence, len(content), err
	default:
		return nil, 0, fmt.Errorf("unknown exchange %q", exchangeName)
	}
}
