package syncevent

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// BarkSink posts run-completion/run-failure events to a Bark push
// endpoint, rate-limited so a flapping source cannot spam the operator's
// phone — grounded on SajadMRjl-find-me-internet's rate-limited
// Bark/Telegram-style notifier.
type BarkSink struct {
	Endpoint string // e.g. "https://api.day.app/<key>"
	Title    string // BARK_TITLE, prefixed onto every push's title
	Client   *http.Client
	limiter  *rate.Limiter
}

// NewBarkSink builds a BarkSink allowing everyPerMinute pushes per minute
// on average, bursting up to burst pushes. An empty title falls back to
// "subsync". Each push request times out after 10 seconds.
func NewBarkSink(endpoint, title string, everyPerMinute float64, burst int) *BarkSink {
	if title == "" {
		title = "subsync"
	}
	return &BarkSink{
		Endpoint: endpoint,
		Title:    title,
		Client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(everyPerMinute/60.0), burst),
	}
}

// Emit only reports terminal events (run completed/failed); intermediate
// progress events are dropped to keep push volume low.
func (b *BarkSink) Emit(e Event) {
	if e.Type != TypeRunCompleted && e.Type != TypeRunFailed {
		return
	}
	if !b.limiter.Allow() {
		return
	}
	subtitle := "Sync completed"
	if e.Type == TypeRunFailed {
		subtitle = "Sync failed"
	}
	title := b.Title + ": " + subtitle
	target := strings.TrimRight(b.Endpoint, "/") + "/" + url.PathEscape(title) + "/" + url.PathEscape(e.Message)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, target, nil)
	if err != nil {
		return
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
}

var _ Sink = (*BarkSink)(nil)
