package camera

import (
	"context"
	"sync"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// Result is what a camera session reports to its host: the ordered clips on
// success, or the reason it ended without them.
type Result struct {
	Recordings []models.Recording `json:"recordings"`
	Err        error              `json:"-"`
}

// resultCell is settled at most once; later settles are ignored.
type resultCell struct {
	once sync.Once
	done chan struct{}
	res  Result
}

func newResultCell() *resultCell {
	return &resultCell{done: make(chan struct{})}
}

// settle stores r if the cell is empty and reports whether it did.
func (c *resultCell) settle(r Result) bool {
	settled := false
	c.once.Do(func() {
		c.res = r
		settled = true
		close(c.done)
	})
	return settled
}

// wait blocks until the cell is settled or ctx is done.
func (c *resultCell) wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		return c.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (c *resultCell) isSettled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
