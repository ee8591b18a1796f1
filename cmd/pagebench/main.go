package main

import (
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"

	"github.com/tuannm99/novastore/internal"
	"github.com/tuannm99/novastore/internal/bufferpool"
	"github.com/tuannm99/novastore/internal/heap"
	"github.com/tuannm99/novastore/internal/record"
	"github.com/tuannm99/novastore/internal/storage"
)

type options struct {
	records  int
	reads    int
	delEvery int
	seed     int64
	inMemory bool
	dumpPage int
}

func main() {
	cfgPath := flag.StringP("config", "c", "", "yaml config file")
	poolSize := flag.Int("pool-size", 0, "buffer pool frames (overrides config)")
	replacer := flag.String("replacer", "", "lru | lru_k | clock (overrides config)")
	model := flag.String("model", "", "nary | pax (overrides config)")
	workdir := flag.String("workdir", "", "data directory (overrides config)")

	var opt options
	flag.IntVarP(&opt.records, "records", "n", 10000, "records to insert")
	flag.IntVar(&opt.reads, "reads", 20000, "random point reads")
	flag.IntVar(&opt.delEvery, "delete-every", 7, "delete every n-th record, 0 disables")
	flag.Int64Var(&opt.seed, "seed", 1, "random seed")
	flag.BoolVar(&opt.inMemory, "in-memory", false, "keep the table file in memory")
	flag.IntVar(&opt.dumpPage, "dump-page", -1, "print a hex dump of this page at the end")
	flag.Parse()

	cfg, err := internal.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if flag.CommandLine.Changed("pool-size") {
		cfg.BufferPool.Size = *poolSize
	}
	if flag.CommandLine.Changed("replacer") {
		cfg.BufferPool.Replacer = *replacer
	}
	if flag.CommandLine.Changed("model") {
		cfg.Table.StorageModel = *model
	}
	if flag.CommandLine.Changed("workdir") {
		cfg.Storage.Workdir = *workdir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	lvl, _ := cfg.LogLevel()
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))

	if err := run(cfg, opt); err != nil {
		log.Fatalf("pagebench: %v", err)
	}
}

func benchSchema() *record.Schema {
	return record.MustSchema(
		record.Field{Name: "id", Type: record.TypeInt64},
		record.Field{Name: "name", Type: record.TypeChar, Size: 24},
		record.Field{Name: "price", Type: record.TypeDecimal, Scale: 2, Nullable: true},
		record.Field{Name: "qty", Type: record.TypeInt32},
		record.Field{Name: "active", Type: record.TypeBool},
	)
}

func run(cfg *internal.NovaStoreConfig, opt options) error {
	var fs afero.Fs = afero.NewOsFs()
	if opt.inMemory {
		fs = afero.NewMemMapFs()
	}
	dm := storage.NewDiskManager(fs, cfg.Storage.Workdir)
	defer func() {
		if err := dm.Close(); err != nil {
			slog.Error("disk close", "err", err)
		}
	}()

	const file = "pagebench.tbl"
	if err := dm.DestroyFile(file); err != nil {
		return err
	}
	fid, err := dm.OpenFile(file)
	if err != nil {
		return err
	}

	pool, err := bufferpool.NewPoolWithPolicy(dm, cfg.BufferPool.Size, cfg.ReplacerKind(), cfg.BufferPool.LRUK)
	if err != nil {
		return err
	}
	schema := benchSchema()
	tbl, err := heap.CreateTable(pool.View(fid), file, schema, cfg.StorageModel(), cfg.Table.RecordsPerPage)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(opt.seed))
	start := time.Now()

	rids := make([]record.RID, 0, opt.records)
	for i := range opt.records {
		var price any
		if i%10 != 0 {
			price = fmt.Sprintf("%d.%02d", rng.Intn(1000), rng.Intn(100))
		}
		rec, err := record.NewRecord(schema, []any{int64(i), fmt.Sprintf("item-%d", i), price, rng.Intn(500), i%2 == 0})
		if err != nil {
			return err
		}
		rid, err := tbl.InsertRecord(rec)
		if err != nil {
			return fmt.Errorf("insert %d: %w", i, err)
		}
		rids = append(rids, rid)
	}
	slog.Info("inserted", "records", len(rids), "pages", tbl.Header().PageNum, "elapsed", time.Since(start))

	if len(rids) > 0 {
		start = time.Now()
		for range opt.reads {
			if _, err := tbl.GetRecord(rids[rng.Intn(len(rids))]); err != nil {
				return err
			}
		}
		slog.Info("point reads", "reads", opt.reads, "elapsed", time.Since(start))
	}

	deleted := 0
	if opt.delEvery > 0 {
		for i := 0; i < len(rids); i += opt.delEvery {
			if err := tbl.DeleteRecord(rids[i]); err != nil {
				return err
			}
			deleted++
		}
	}

	start = time.Now()
	scanned := 0
	if err := tbl.Scan(func(*record.Record) error {
		scanned++
		return nil
	}); err != nil {
		return err
	}
	slog.Info("scan", "records", scanned, "deleted", deleted, "elapsed", time.Since(start))

	proj, err := schema.Project("id", "price")
	if err != nil {
		return err
	}
	rows := 0
	for pid := storage.FileHeaderPageID + 1; int(pid) < tbl.Header().PageNum; pid++ {
		chunk, err := tbl.GetChunk(pid, proj)
		if err != nil {
			return err
		}
		rows += chunk.NumRows()
	}
	slog.Info("chunks", "rows", rows)

	if err := tbl.Close(); err != nil {
		return err
	}

	if opt.dumpPage >= 0 {
		view := pool.View(fid)
		pid := storage.PageID(opt.dumpPage)
		p, err := view.FetchPage(pid)
		if err != nil {
			return err
		}
		err = p.Dump(os.Stdout)
		view.UnpinPage(pid, false)
		if err != nil {
			return err
		}
	}

	onDisk, err := dm.NumPages(fid)
	if err != nil {
		return err
	}

	st := pool.Stats()
	fmt.Printf("replacer=%s model=%s frames=%d\n", cfg.ReplacerKind(), cfg.StorageModel(), st.Capacity)
	fmt.Printf("hits=%d misses=%d hit_rate=%.3f evictions=%d flushes=%d\n",
		st.Hits, st.Misses, st.HitRate(), st.Evictions, st.Flushes)
	fmt.Printf("resident=%d free=%d pinned=%d dirty=%d pages_on_disk=%d\n",
		st.Resident, st.Free, st.Pinned, st.Dirty, onDisk)

	ok, err := pool.DeleteAllPages(fid)
	if err != nil {
		return fmt.Errorf("drop cached pages: %w", err)
	}
	if !ok {
		return fmt.Errorf("drop cached pages: %s still pinned", file)
	}
	return dm.CloseFile(fid)
}
