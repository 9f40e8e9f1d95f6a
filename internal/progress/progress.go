// Package progress carries transfer progress from the network layer to
// whoever is watching: a CLI bar, an SSE stream, or nobody.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Func receives byte counters during a transfer. total is -1 when unknown.
// It is called synchronously from the transfer and must not block for long.
type Func func(loaded, total int64)

// Update receives human-readable status lines such as "book.epub 42%".
type Update func(info string)

// Percent returns floor(loaded/total*100), or 0 when total is unknown.
func Percent(loaded, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(loaded * 100 / total)
}

// ForFile adapts an Update into a Func that reports "<name> <pct>%".
// A nil Update yields a nil Func.
func ForFile(name string, u Update) Func {
	if u == nil {
		return nil
	}
	last := -1
	return func(loaded, total int64) {
		pct := Percent(loaded, total)
		if pct == last {
			return
		}
		last = pct
		u(fmt.Sprintf("%s %d%%", name, pct))
	}
}

// Reader counts bytes read through it and reports them to fn.
type Reader struct {
	r      io.Reader
	loaded int64
	total  int64
	fn     Func
}

// NewReader wraps r. total may be -1.
func NewReader(r io.Reader, total int64, fn Func) *Reader {
	return &Reader{r: r, total: total, fn: fn}
}

func (c *Reader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.loaded += int64(n)
		if c.fn != nil {
			c.fn(c.loaded, c.total)
		}
	}
	return n, err
}

// Bar renders status updates as a terminal progress bar.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar creates a bar writing to w (os.Stderr when nil).
func NewBar(description string, w io.Writer) *Bar {
	if w == nil {
		w = os.Stderr
	}
	return &Bar{bar: progressbar.NewOptions64(
		100,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
	)}
}

// Func returns a transfer callback that drives the bar for one file.
func (b *Bar) Func(name string) Func {
	return func(loaded, total int64) {
		b.bar.Describe(name)
		_ = b.bar.Set(Percent(loaded, total))
	}
}

// Update shows info as the bar description.
func (b *Bar) Update(info string) {
	b.bar.Describe(info)
}

// Finish completes the bar.
func (b *Bar) Finish() error {
	return b.bar.Finish()
}
