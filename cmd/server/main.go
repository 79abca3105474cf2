package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"terrastream/internal/colorize"
	"terrastream/internal/engine"
	"terrastream/internal/persistence/indexdb"
	"terrastream/internal/persistence/save"
	"terrastream/internal/protocol"
	"terrastream/internal/stream"
	"terrastream/internal/transport/ws"
	"terrastream/internal/tuning"
	"terrastream/internal/zone"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		seed       = flag.Int64("seed", 1337, "world seed")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite stream-event index")
		statePath  = flag.String("state", "", "state file to load/save (default: <data>/state.zst)")
		loadState  = flag.Bool("load_state", true, "load the state file on startup if present")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	_ = os.MkdirAll(*dataDir, 0o755)
	sp := strings.TrimSpace(*statePath)
	if sp == "" {
		sp = filepath.Join(*dataDir, "state.zst")
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"), logger)
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	relay := engine.NewRelay(idx)
	st := stream.New(stream.Params{
		TileSize:       tune.TileSize,
		Resolution:     tune.Resolution,
		ActiveRadius:   tune.ActiveRadius,
		BufferRadius:   tune.BufferRadius,
		EvictionRadius: tune.EvictionRadius,
		DrainBudget:    tune.DrainBudget(),
		DrainCeiling:   tune.DrainCeiling(),
		DrainCooldown:  tune.DrainCooldown(),
		QueueCap:       tune.QueueCap,
		EnqueueCap:     tune.EnqueueCap,
		SweepPermille:  tune.SweepPermille,
		Seed:           *seed,
	}, stream.Collaborators{
		Scene:   relay,
		Zones:   zone.NewClassifier(*seed, tune.ZoneRegionSize),
		Colors:  colorize.NewPainter(*seed),
		Content: []stream.ContentManager{relay},
		GC:      engine.GCHint{},
		Notify:  relay,
	}, logger)

	if *loadState {
		stf, err := save.Read(sp)
		switch {
		case err == nil:
			st.Load(stf.Keys)
			logger.Printf("loaded state %s (%d keys)", sp, len(stf.Keys))
		case errors.Is(err, os.ErrNotExist):
		default:
			logger.Printf("load state: %v (starting fresh)", err)
		}
	}

	if tune.TickRateHz <= 0 {
		tune.TickRateHz = tuning.Defaults().TickRateHz
	}
	tickEvery := time.Second / time.Duration(tune.TickRateHz)
	loop := engine.NewLoop(st, relay, tickEvery, logger)

	wsrv, err := ws.NewServer(loop, protocol.WorldParams{
		TickRateHz:   tune.TickRateHz,
		TileSize:     tune.TileSize,
		ActiveRadius: tune.ActiveRadius,
		BufferRadius: tune.BufferRadius,
		Seed:         *seed,
	}, logger)
	if err != nil {
		logger.Fatalf("init ws: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsrv.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)

	httpSrv := &http.Server{Addr: *addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http: %v", err)
		}
	}()

	loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	keys := loop.SaveKeys()
	if err := save.Write(sp, save.StateV1{
		Header: save.Header{Version: 1},
		Seed:   *seed,
		Keys:   keys,
	}); err != nil {
		logger.Printf("save state: %v", err)
	} else {
		logger.Printf("saved state %s (%d keys)", sp, len(keys))
		idx.Record(indexdb.KindSaved, "", sp)
	}
}
