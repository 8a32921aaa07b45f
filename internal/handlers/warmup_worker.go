package handlers

import (
	"context"
	"database/sql"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"mangareader/internal/pages"
)

// WarmupWorker renders every page of newly changed chapters so the first
// reader is served from cache.
type WarmupWorker struct {
	srv          *Server
	pollInterval time.Duration
	concurrency  int
	lastID       int64
}

func NewWarmupWorker(srv *Server) *WarmupWorker {
	n := srv.Cfg.WarmupConcurrency
	if n <= 0 {
		n = 1
	}
	return &WarmupWorker{
		srv:          srv,
		pollInterval: 5 * time.Second,
		concurrency:  n,
	}
}

func (w *WarmupWorker) Run(ctx context.Context) {
	if w == nil || w.srv == nil || w.srv.DB == nil {
		log.Printf("warmup worker: db not configured")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		processed, err := w.processOnce(ctx)
		if err != nil {
			log.Printf("warmup worker error: %v", err)
		}
		if !processed || err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// processOnce warms the next cold chapter after the cursor. A failed chapter
// stays cold and is retried once the cursor wraps around.
func (w *WarmupWorker) processOnce(ctx context.Context) (bool, error) {
	chapterID, err := w.nextChapter(ctx)
	if err != nil {
		return false, err
	}
	if chapterID == 0 {
		if w.lastID == 0 {
			return false, nil
		}
		w.lastID = 0
		return w.processOnce(ctx)
	}
	w.lastID = chapterID
	if err := w.warmChapter(ctx, chapterID); err != nil {
		return true, err
	}
	_, err = w.srv.DB.ExecContext(ctx, `UPDATE chapters SET warmed_at = ? WHERE id = ?`, time.Now().UTC(), chapterID)
	return true, err
}

func (w *WarmupWorker) nextChapter(ctx context.Context) (int64, error) {
	var id int64
	err := w.srv.DB.QueryRowContext(ctx, `SELECT id FROM chapters WHERE warmed_at IS NULL AND id > ? ORDER BY id ASC LIMIT 1`, w.lastID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

func (w *WarmupWorker) warmChapter(ctx context.Context, chapterID int64) error {
	list, err := w.srv.listPages(chapterID)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, page := range list {
		page := page
		g.Go(func() error {
			_, err := w.srv.Pages.Render(gctx, page, pages.FormatJPEG, w.srv.Pages.PixelRatio)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("warmup chapter %d failed: %v", chapterID, err)
		return err
	}
	log.Printf("warmup chapter %d: %d pages", chapterID, len(list))
	return nil
}
