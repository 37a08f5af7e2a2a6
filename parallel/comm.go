package parallel

import (
	"context"
	"errors"
	"os"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/dfem/utils"
)

// LoggerFactory builds the logger handed to each rank.
type LoggerFactory func(rank, size int) (*utils.Logger, error)

func StdoutLogs(rank, size int) (*utils.Logger, error) {
	return utils.NewLogger(rank, size, os.Stdout), nil
}

func DiscardLogs(rank, size int) (*utils.Logger, error) {
	return utils.Discard(rank, size), nil
}

// FileLogs mirrors each rank's output into <path>_<rank>.
func FileLogs(path string) LoggerFactory {
	return func(rank, size int) (*utils.Logger, error) {
		return utils.NewFileLogger(rank, size, os.Stdout, path)
	}
}

type World struct {
	size int
	box  *MailBox[any]
}

// Comm is one rank's handle on the world. Every distributed component takes
// one explicitly; there is no global communicator.
type Comm struct {
	rank  int
	world *World
	log   *utils.Logger
}

func (c *Comm) Rank() int            { return c.rank }
func (c *Comm) Size() int            { return c.world.size }
func (c *Comm) IsRoot() bool         { return c.rank == Root }
func (c *Comm) Logger() *utils.Logger { return c.log }

// Root is the rank that owns gathered, global results.
const Root = 0

// Self returns a communicator for a world of one, for serial use.
func Self(log *utils.Logger) *Comm {
	if log == nil {
		log = utils.NewLogger(0, 1, os.Stdout)
	}
	return &Comm{world: &World{size: 1, box: NewMailBox[any](1)}, log: log}
}

// Run starts size ranks running fn, SPMD style, and waits for all of them.
// The first rank that fails cancels the context every other rank is blocked
// on, so a fault anywhere aborts the whole world. The returned error combines
// the failures that were not just the resulting cancellations.
func Run(ctx context.Context, size int, newLogger LoggerFactory,
	fn func(ctx context.Context, c *Comm) error) (err error) {
	if size < 1 {
		return utils.InvalidSizeError(1, size)
	}
	if newLogger == nil {
		newLogger = StdoutLogs
	}
	var (
		world = &World{size: size, box: NewMailBox[any](size)}
		errs  = make([]error, size)
	)
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		rank := r
		g.Go(func() (rerr error) {
			lg, lerr := newLogger(rank, size)
			if lerr != nil {
				errs[rank] = lerr
				return lerr
			}
			defer func() {
				rerr = multierr.Append(rerr, lg.Close())
				errs[rank] = rerr
			}()
			c := &Comm{rank: rank, world: world, log: lg}
			if rerr = fn(gctx, c); rerr != nil && !errors.Is(rerr, context.Canceled) {
				lg.Error(rerr)
			}
			return
		})
	}
	first := g.Wait()
	for _, e := range errs {
		if e != nil && !errors.Is(e, context.Canceled) {
			err = multierr.Append(err, e)
		}
	}
	if err == nil {
		err = first
	}
	return
}
