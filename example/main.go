package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/flowjson"
	"github.com/meikuraledutech/apiflow/graph"
	"github.com/meikuraledutech/apiflow/nodeconfig"
	"github.com/meikuraledutech/apiflow/postgres"
	"github.com/meikuraledutech/apiflow/registry"
	"github.com/meikuraledutech/apiflow/session"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	// Wire up the postgres implementation behind the Store interface.
	pg := postgres.New(pool)
	var store apiflow.Store = pg

	// 1. Create tables
	if err := pg.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Open an editor session on a new flow ──────────────────────────
	// No validator: this walkthrough never calls Validate.
	mgr := session.NewManager(store, nil)
	sess, err := mgr.Open(ctx, apiflow.NewFlowID)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	sess.SetName("Onboarding")
	ctrl := sess.Controller()
	ctrl.SetTransform(graph.Viewport{Zoom: 1})

	// ── Drop nodes from the palette ───────────────────────────────────
	start, _ := ctrl.OnDrop("start", apiflow.Position{X: 0, Y: 0})
	src, _ := ctrl.OnDrop("url", apiflow.Position{X: 200, Y: 0})
	out, _ := ctrl.OnDrop("output", apiflow.Position{X: 400, Y: 0})
	fmt.Printf("dropped %s, %s, %s\n", start.ID, src.ID, out.ID)

	// ── Connect them ──────────────────────────────────────────────────
	ctrl.OnConnect(graph.Connection{Source: start.ID, Target: src.ID})
	ctrl.OnConnect(graph.Connection{Source: src.ID, Target: out.ID})
	if _, ok := ctrl.OnConnect(graph.Connection{Source: out.ID, Target: start.ID}); !ok {
		fmt.Println("edge into start rejected")
	}

	// ── Configure the URL node ────────────────────────────────────────
	ed, _ := ctrl.OnNodeDoubleClick(src.ID)
	ed.Draft().(*nodeconfig.URLConfig).URL = "https://api.example.com/users"
	ed.Draft().(*nodeconfig.URLConfig).Remark = "user directory"
	if err := ed.Save(); err != nil {
		log.Fatalf("save config: %v", err)
	}

	// ── Save ──────────────────────────────────────────────────────────
	id, err := sess.Save(ctx)
	if err != nil {
		log.Fatalf("save flow: %v", err)
	}
	fmt.Printf("\nflow saved: %s\n", id)

	// ── Retrieve ──────────────────────────────────────────────────────
	f, err := store.GetFlow(ctx, id)
	if err != nil {
		log.Fatalf("get flow: %v", err)
	}
	fmt.Println("\nflow document:")
	printJSON(flowjson.Serialize(f, registry.Default()))

	// ── Delete a node: its edges go with it ───────────────────────────
	ctrl.RequestDelete(src.ID)
	nodes, edges := sess.Store().Len()
	fmt.Printf("\nafter delete: %d nodes, %d edges\n", nodes, edges)

	// ── Reload discards the unsaved delete ────────────────────────────
	if err := sess.Reload(ctx); err != nil {
		log.Fatalf("reload: %v", err)
	}
	nodes, edges = sess.Store().Len()
	fmt.Printf("after reload: %d nodes, %d edges\n", nodes, edges)

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteFlow(ctx, id); err != nil {
		log.Fatalf("delete flow: %v", err)
	}
	fmt.Println("\nflow deleted")
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
