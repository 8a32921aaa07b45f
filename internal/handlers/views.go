package handlers

import (
	"context"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// bumpViews counts a chapter open in memory. StartViewFlusher moves the
// counts to MySQL and the daily Redis ranking once a second; the returned
// channel closes after the last flush that follows ctx being cancelled.
func (s *Server) bumpViews(chapterID int64) {
	if s == nil || chapterID <= 0 {
		return
	}
	val, _ := s.viewCounters.LoadOrStore(chapterID, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

func (s *Server) StartViewFlusher(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.flushViews(context.Background())
				return
			case <-ticker.C:
				s.flushViews(ctx)
			}
		}
	}()
	return done
}

func (s *Server) flushViews(ctx context.Context) {
	pending := make(map[int64]int64)
	s.viewCounters.Range(func(key, value any) bool {
		chapterID, ok := key.(int64)
		if !ok {
			return true
		}
		counter, ok := value.(*atomic.Int64)
		if !ok {
			return true
		}
		if n := counter.Swap(0); n > 0 {
			pending[chapterID] = n
		}
		return true
	})
	if len(pending) == 0 {
		return
	}

	if s.Redis != nil {
		key := dailyViewsKey(time.Now())
		pipe := s.Redis.Pipeline()
		for chapterID, n := range pending {
			pipe.ZIncrBy(ctx, key, float64(n), strconv.FormatInt(chapterID, 10))
		}
		pipe.Expire(ctx, key, 48*time.Hour)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("views redis flush error: %v", err)
		}
	}
	if s.DB != nil {
		for chapterID, n := range pending {
			if _, err := s.DB.ExecContext(ctx, `UPDATE chapters SET views = views + ? WHERE id = ?`, n, chapterID); err != nil {
				log.Printf("views db flush error chapter=%d: %v", chapterID, err)
				continue
			}
			if _, err := s.DB.ExecContext(ctx, `UPDATE manga SET views = views + ? WHERE id = (SELECT manga_id FROM chapters WHERE id = ?)`, n, chapterID); err != nil {
				log.Printf("views db flush error manga of chapter=%d: %v", chapterID, err)
			}
		}
	}
}

type chapterViews struct {
	ChapterID int64 `json:"chapter_id"`
	Views     int64 `json:"views"`
}

func (s *Server) topChaptersToday(ctx context.Context, limit int64) []chapterViews {
	if s.Redis == nil {
		return []chapterViews{}
	}
	res, err := s.Redis.ZRevRangeWithScores(ctx, dailyViewsKey(time.Now()), 0, limit-1).Result()
	if err != nil && err != redis.Nil {
		log.Printf("views ranking read error: %v", err)
	}
	out := make([]chapterViews, 0, len(res))
	for _, z := range res {
		member, _ := z.Member.(string)
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, chapterViews{ChapterID: id, Views: int64(z.Score)})
	}
	return out
}
