package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// JobChannel is the NOTIFY channel the API publishes work on.
const JobChannel = "video_jobs"

// JobNotice is the payload of a job notification.
type JobNotice struct {
	VideoID string `json:"videoId"`
	Kind    string `json:"kind"`
}

type Notifier struct {
	db *sql.DB
}

func NewNotifier(db *sql.DB) *Notifier {
	return &Notifier{db: db}
}

// Notify publishes a job for an external worker.
func (n *Notifier) Notify(ctx context.Context, notice JobNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encode job notice: %w", err)
	}
	if _, err := n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, JobChannel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", JobChannel, err)
	}
	return nil
}

// Listen blocks and hands every job notice to handle until ctx is done.
func Listen(ctx context.Context, dbURL string, handle func(JobNotice)) error {
	listener := pq.NewListener(dbURL, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				slog.Error("listener event", "event", ev, "error", err)
			}
		})
	defer listener.Close()

	if err := listener.Listen(JobChannel); err != nil {
		return fmt.Errorf("listen error: %w", err)
	}
	slog.Info("listening for jobs", "channel", JobChannel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// connection was re-established; notices sent meanwhile are lost
				slog.Warn("listener reconnected")
				continue
			}
			var notice JobNotice
			if err := json.Unmarshal([]byte(n.Extra), &notice); err != nil {
				slog.Error("bad job notice", "payload", n.Extra, "error", err)
				continue
			}
			handle(notice)
		case <-time.After(time.Minute):
			go listener.Ping()
		}
	}
}
