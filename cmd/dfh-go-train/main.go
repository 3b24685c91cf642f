// Copyright (c) 2025 Quantfeed Corp

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/quantfeed/dfh-go/compress"
	"github.com/spf13/cobra"
)

///////////////////////////////////////////////////////////////////////////////

var (
	verbose bool

	outDir    string
	emitGo    bool
	goPackage string
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

	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory for dictionaries")
	trainCmd.Flags().BoolVar(&emitGo, "emit-go", false, "Also emit the dictionaries as Go source")
	trainCmd.Flags().StringVar(&goPackage, "go-package", "dictionaries", "Package name for emitted Go source")

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

///////////////////////////////////////////////////////////////////////////////

var rootCmd = &cobra.Command{
	Use:   "dfh-go-train",
	Short: "dfh-go-train trains ZSTD dictionaries over segment blobs",
	Long:  "dfh-go-train trains ZSTD dictionaries over segment blobs",
}

var trainCmd = &cobra.Command{
	Use:   "train blob-file...",
	Short: "Train per-bucket dictionaries from serialized segment files",
	Long:  "Train per-bucket dictionaries from serialized segment files",
	Args:  cobra.MinimumNArgs(8),
	Run: func(cmd *cobra.Command, args []string) {
		samples := make([][]byte, 0, len(args))
		total := 0
		for _, path := range args {
			blob, err := os.ReadFile(path)
			requireNoError(err)
			samples = append(samples, blob)
			total += len(blob)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "corpus: %d samples, %s\n", len(samples), humanize.Bytes(uint64(total)))
		}
		samples = compress.PruneCorpus(samples)

		// hold out every 8th sample for scoring
		var train, eval [][]byte
		for i, sample := range samples {
			if i%8 == 7 {
				eval = append(eval, sample)
			} else {
				train = append(train, sample)
			}
		}

		for bucket, bucketSamples := range compress.SplitCorpusByBucket(train) {
			if len(bucketSamples) < 8 {
				if verbose {
					fmt.Fprintf(os.Stderr, "bucket %s: skipped, only %d samples\n", bucket, len(bucketSamples))
				}
				continue
			}
			result, err := compress.TrainBucketDictionaries(bucket, bucketSamples, eval)
			requireNoError(err)

			outPath := filepath.Join(outDir, fmt.Sprintf("dict_%s.bin", bucket))
			requireNoError(os.WriteFile(outPath, result.Dict, 0o644))
			fmt.Printf("bucket %s: %d KiB dictionary, score %.4f -> %s\n",
				bucket, result.SizeKiB, result.Score, outPath)

			if emitGo {
				goPath := filepath.Join(outDir, fmt.Sprintf("dict_%s.go", bucket))
				requireNoError(writeGoSource(goPath, bucket.String(), result.Dict))
			}
		}
	},
}

///////////////////////////////////////////////////////////////////////////////

// writeGoSource emits a dictionary as a lazily-usable byte-slice constant.
func writeGoSource(path, name string, dict []byte) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	fmt.Fprintf(out, "// Code generated by dfh-go-train. DO NOT EDIT.\n\npackage %s\n\n", goPackage)
	fmt.Fprintf(out, "// Dict_%s is the trained ZSTD dictionary for the %q bucket.\n", name, name)
	fmt.Fprintf(out, "var Dict_%s = []byte{", name)
	for i, b := range dict {
		if i%16 == 0 {
			fmt.Fprintf(out, "\n\t")
		}
		fmt.Fprintf(out, "0x%02x, ", b)
	}
	fmt.Fprintf(out, "\n}\n")
	return nil
}
