package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestStartViewFlusher_FlushesOnShutdown(t *testing.T) {
	srv, mock, _ := newTestServer(t)
	srv.bumpViews(2)
	srv.bumpViews(2)
	srv.bumpViews(0)

	mock.ExpectExec(`UPDATE chapters SET views = views \+ \? WHERE id = \?`).WithArgs(int64(2), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE manga SET views = views \+ \?`).WithArgs(int64(2), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := srv.StartViewFlusher(ctx)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("flusher did not stop")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
