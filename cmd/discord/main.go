// cmd/discord/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/heartflow/internal/ai"
	"github.com/keshon/heartflow/internal/config"
	"github.com/keshon/heartflow/internal/discord"
	"github.com/keshon/heartflow/internal/grouplist"
	"github.com/keshon/heartflow/internal/impression"
	"github.com/keshon/heartflow/internal/mind"
	"github.com/keshon/heartflow/internal/storage"
)

func main() {
	log.Println("[INFO] Starting heartflow bot...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.New()

	db, err := storage.New(ctx, cfg.StoragePath)
	if err != nil {
		log.Fatal(err)
	}

	provider, err := ai.NewProvider(cfg.AIProvider)
	if err != nil {
		log.Fatal(err)
	}

	allow := grouplist.New(cfg.ListMode, cfg.Groups)
	bot := discord.NewBot(cfg, allow)

	store := mind.NewStore(cfg.Engine, db)
	engine := mind.NewEngine(cfg.Engine, store, provider, impression.Noop{}, bot)
	hb := mind.NewHeartbeat(cfg.Engine, engine)
	hb.Start(ctx)
	bot.Attach(engine, hb)

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...\n", s)
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Println("[ERR] Discord bot error:", err)
		}
		cancel()
	case <-ctx.Done():
	}

	hb.Stop()
	if err := db.Close(); err != nil {
		log.Println("[ERR] Final state save:", err)
	}

	stats := engine.Stats()
	log.Printf("[INFO] Session stats: groups=%d seen=%d replied=%d skipped=%d reply_rate=%.2f",
		stats.Groups, stats.MessagesSeen, stats.RepliesSent, stats.RepliesSkip, stats.ReplyRate)
	log.Println("[INFO] Discord bot exited cleanly")
}
