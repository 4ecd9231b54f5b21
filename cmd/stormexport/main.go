// Command stormexport loads a window of StormEvents records from the NCEI
// archive, normalizes them into one time zone and writes them as CSV. With
// -cluster it also prints the spatiotemporal clusters of the window.
//
// Usage:
//
//	go run ./cmd/stormexport \
//	  -start 2011-04-27 -end 2011-04-28 -tz CST \
//	  -types Tornado -out data/2011-04-27.csv.gz -cluster
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/cluster"
	"github.com/couchcryptid/storm-data-clusters/internal/config"
	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/fetch"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
	"github.com/couchcryptid/storm-data-clusters/internal/stormevents"
	"github.com/couchcryptid/storm-data-clusters/internal/temporal"
	"github.com/couchcryptid/storm-data-clusters/internal/track"
)

const dateLayout = "2006-01-02"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	start := flag.String("start", "", "window start, YYYY-MM-DD (inclusive)")
	end := flag.String("end", "", "window end, YYYY-MM-DD (exclusive)")
	tz := flag.String("tz", cfg.TargetTimeZone, "time zone records are normalized into")
	types := flag.String("types", "", "comma separated event types")
	states := flag.String("states", "", "comma separated states")
	out := flag.String("out", "", "output CSV path, gzip-compressed when ending in .gz")
	override := flag.Bool("override", false, "download archive files even when a fresh copy exists")
	doCluster := flag.Bool("cluster", false, "print the clusters of the window")
	correct := flag.Bool("correct-tornadoes", true, "repair malformed tornado begin/end pairs")
	epsKm := flag.Float64("eps-km", cfg.ClusterEpsKm, "cluster distance threshold in km")
	epsMin := flag.Float64("eps-min", cfg.ClusterEpsMin, "cluster time threshold in minutes")
	minSamples := flag.Int("min-samples", cfg.ClusterMinSamples, "cluster core size")
	algorithm := flag.String("algorithm", cfg.ClusterAlgorithm, "density or brute")
	flag.Parse()

	if *start == "" || *end == "" || (*out == "" && !*doCluster) {
		flag.Usage()
		return fmt.Errorf("missing required flags: -start, -end and one of -out, -cluster")
	}
	startT, err := time.ParseInLocation(dateLayout, *start, domain.Naive)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	endT, err := time.ParseInLocation(dateLayout, *end, domain.Naive)
	if err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.NewLogger(cfg)
	fetcher := fetch.New(fetch.Config{
		Dir:              cfg.WorkDir,
		Workers:          cfg.FetchWorkers,
		Timeout:          cfg.FetchTimeout,
		MaxAge:           cfg.FetchMaxAge,
		OverrideExisting: *override,
	}, logger, nil)
	loader := stormevents.NewLoader(fetcher,
		stormevents.NewArchive(fetcher, cfg.ArchiveURL),
		temporal.NewReconciler(nil, logger), logger, nil)

	opts := stormevents.Options{States: split(*states), TimeZone: *tz}
	for _, t := range split(*types) {
		opts.EventTypes = append(opts.EventTypes, domain.ParseEventType(t))
	}

	recs, err := loader.LoadEvents(ctx, startT, endT, opts)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if *correct {
		recs = temporal.CorrectTornadoTimes(recs, temporal.DefaultCorrectionPolicy())
	}
	log.Printf("loaded %d records between %s and %s (%s)", len(recs), *start, *end, *tz)

	if *out != "" {
		if err := os.MkdirAll(dirOf(*out), 0o755); err != nil {
			return err
		}
		if err := stormevents.ExportFile(*out, recs); err != nil {
			return fmt.Errorf("writing %s: %w", *out, err)
		}
		log.Printf("wrote %s", *out)
	}

	printStats(recs)

	if *doCluster {
		alg, err := cluster.ParseAlgorithm(*algorithm)
		if err != nil {
			return err
		}
		p := cluster.Params{EpsKm: *epsKm, EpsMin: *epsMin, MinSamples: *minSamples}
		c := cluster.NewClusterer(alg, track.DefaultOptions(), logger, nil)
		g, err := c.Cluster(ctx, recs, p)
		if err != nil {
			return fmt.Errorf("cluster events: %w", err)
		}
		printClusters(g, *tz)
	}
	return nil
}

func split(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dirOf(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[:i+1]
	}
	return "."
}

type keyCount struct {
	key   string
	count int
}

func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, c := range m {
		out = append(out, keyCount{k, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func printStats(recs []domain.EventRecord) {
	typeCounts := map[string]int{}
	stateCounts := map[string]int{}
	var tornadoes, withTrack int
	for i := range recs {
		r := &recs[i]
		typeCounts[string(r.EventType)]++
		stateCounts[r.State]++
		if r.IsTornado() {
			tornadoes++
			if r.HasTrack() {
				withTrack++
			}
		}
	}

	fmt.Println("\n=== Window stats ===")
	fmt.Printf("Total: %d\n", len(recs))
	fmt.Print("By type:")
	for _, tc := range sortedCounts(typeCounts) {
		fmt.Printf(" %s=%d", tc.key, tc.count)
	}
	fmt.Println()
	fmt.Printf("Tornado segments: %d (%d with a track)\n", tornadoes, withTrack)

	sc := sortedCounts(stateCounts)
	fmt.Printf("States (%d):", len(sc))
	for _, s := range sc[:min(10, len(sc))] {
		fmt.Printf(" %s=%d", s.key, s.count)
	}
	fmt.Println()
}

func printClusters(g *cluster.Group, zone string) {
	fmt.Printf("\n=== Clusters (%d, %d points, %d noise) ===\n", g.Len(), g.NumPoints(), g.Noise().Len())
	for _, c := range g.Clusters() {
		fmt.Println()
		fmt.Println(c.Describe(cluster.DescribeOptions{ShowLabel: true, Zone: zone}))
	}
	if g.Noise().Len() > 0 {
		fmt.Println()
		fmt.Println(g.Noise().Describe(cluster.DescribeOptions{}))
	}
}
