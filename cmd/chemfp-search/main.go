// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
chemfp-search loads a query FPS file and a target FPS file, runs one of
count/threshold/knearest Tanimoto search, and prints the result as TSV.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/grailbio/chemfp/arena"
	"github.com/grailbio/chemfp/chemferr"
	"github.com/grailbio/chemfp/fpsio"
	"github.com/grailbio/chemfp/search"
)

var (
	queryPath  = flag.String("query", "", "Query FPS file path (required)")
	targetPath = flag.String("target", "", "Target FPS file path (required)")
	mode       = flag.String("mode", "threshold", "One of: count, threshold, knearest")
	threshold  = flag.Float64("threshold", search.DefaultThreshold, "Tanimoto threshold in [0,1]")
	k          = flag.Int("k", search.DefaultK, "Neighbors per query for -mode=knearest")
	reorder    = flag.Bool("reorder", true, "Build the target arena popcount-sorted, enabling bucket pruning")
	workers    = flag.Int("workers", 0, "Goroutines to fan batched queries across; 0 runs sequentially")
	onError    = flag.String("on-error", "strict", "Per-record target-load error policy: strict, report, or ignore")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -query q.fps -target t.fps [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if *queryPath == "" || *targetPath == "" {
		usage()
		log.Fatalf("-query and -target are both required")
	}
	switch *onError {
	case "strict", "report", "ignore":
	default:
		log.Fatalf("-on-error must be one of strict, report, ignore; got %q", *onError)
	}

	target, err := loadArena(*targetPath, *reorder, *onError)
	if err != nil {
		log.Fatalf("loading target %s: %v", *targetPath, err)
	}
	queries, err := loadArena(*queryPath, false, "strict")
	if err != nil {
		log.Fatalf("loading query %s: %v", *queryPath, err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	opts := search.BatchOptions{Workers: *workers}
	switch *mode {
	case "count":
		counts, err := search.CountTanimotoHitsArena(queries, target, *threshold, opts)
		if err != nil {
			log.Fatalf("count: %v", err)
		}
		for i, c := range counts {
			fmt.Fprintf(out, "%s\t%d\n", queries.ID(i), c)
		}
	case "threshold":
		res, err := search.ThresholdTanimotoSearchArena(queries, target, *threshold, opts)
		if err != nil {
			log.Fatalf("threshold search: %v", err)
		}
		writeRows(out, res)
	case "knearest":
		res, err := search.KNearestTanimotoSearchArena(queries, target, *k, *threshold, opts)
		if err != nil {
			log.Fatalf("knearest search: %v", err)
		}
		writeRows(out, res)
	default:
		log.Fatalf("-mode must be one of count, threshold, knearest; got %q", *mode)
	}
}

func writeRows(out *bufio.Writer, res interface {
	Len() int
	Row(int) ([]string, []float64)
}) {
	for i := 0; i < res.Len(); i++ {
		ids, scores := res.Row(i)
		for j, id := range ids {
			fmt.Fprintf(out, "%d\t%s\t%g\n", i, id, scores[j])
		}
	}
}

// loadArena reads an FPS file fully into an arena. When onError is
// "strict", any record error aborts the load; "report" logs and skips the
// bad record; "ignore" skips silently. This per-record policy is a CLI
// concern, not part of the core (spec.md §7).
func loadArena(path string, sortByPopcount bool, onError string) (*arena.Arena, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := fpsio.NewSource(f, path)
	if err != nil {
		return nil, err
	}
	b, err := arena.NewBuilder(src.Metadata(), arena.BuildOptions{Reorder: sortByPopcount})
	if err != nil {
		return nil, err
	}
	for {
		id, fp, nextErr := src.Next()
		if nextErr != nil {
			if chemferr.Is(nextErr, chemferr.InvalidFingerprint) {
				switch onError {
				case "ignore":
					continue
				case "report":
					log.Error.Printf("%s: skipping malformed record: %v", path, nextErr)
					continue
				}
			}
			if nextErr == io.EOF {
				break
			}
			return nil, nextErr
		}
		if err := b.Add(id, fp); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
