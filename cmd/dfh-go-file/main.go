// Copyright (c) 2025 Quantfeed Corp

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/neomantra/ymdflag"
	dfh "github.com/quantfeed/dfh-go"
	dfh_file "github.com/quantfeed/dfh-go/internal/file"
	"github.com/quantfeed/dfh-go/storage"
	"github.com/spf13/cobra"
)

///////////////////////////////////////////////////////////////////////////////

var (
	verbose bool

	dbPath string

	symbolID   uint16
	providerID uint16

	dayFlag ymdflag.YMDFlag
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

	rootCmd.AddCommand(metadataCmd)

	rootCmd.AddCommand(jsonCmd)
	jsonCmd.Flags().Uint16VarP(&symbolID, "symbol", "s", 0, "Symbol identifier")
	jsonCmd.Flags().Uint16VarP(&providerID, "provider", "p", 0, "Provider identifier")
	jsonCmd.Flags().VarP(&dayFlag, "date", "t", "Day to export (YYYYMMDD)")
	jsonCmd.MarkFlagRequired("date")

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

///////////////////////////////////////////////////////////////////////////////

var rootCmd = &cobra.Command{
	Use:   "dfh-go-file",
	Short: "dfh-go-file inspects and exports tick storage",
	Long:  "dfh-go-file inspects and exports tick storage",
}

///////////////////////////////////////////////////////////////////////////////

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: `Prints every tick metadata record as JSON`,
	Long:  `Prints every tick metadata record as JSON`,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := storage.Open(storage.Config{Path: dbPath, ReadOnly: true})
		requireNoError(err)
		defer store.Close()
		requireNoError(store.Start())

		records := store.Ticks.AllCachedMetadata()
		requireNoError(dfh_file.WriteMetadataAsJson(records, os.Stdout))
		if verbose {
			fmt.Fprintf(os.Stderr, "%s records\n", humanize.Comma(int64(len(records))))
		}
	},
}

///////////////////////////////////////////////////////////////////////////////

var jsonCmd = &cobra.Command{
	Use:   "json",
	Short: `Exports one day of ticks as JSON lines`,
	Long:  `Exports one day of ticks as JSON lines`,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := storage.Open(storage.Config{Path: dbPath, ReadOnly: true})
		requireNoError(err)
		defer store.Close()
		requireNoError(store.Start())

		day := dayFlag.AsTime()
		startTs := uint64(day.UnixMilli())
		endTs := uint64(day.Add(24 * time.Hour).UnixMilli())

		ticks, config, err := store.Ticks.FetchTicks(symbolID, providerID, startTs, endTs)
		requireNoError(err)
		requireNoError(dfh_file.WriteTicksAsJson(symbolID, providerID, ticks, os.Stdout))
		if verbose {
			fmt.Fprintf(os.Stderr, "%s ticks (digits %d/%d)\n",
				humanize.Comma(int64(len(ticks))), config.PriceDigits, config.VolumeDigits)
		}
	},
}
