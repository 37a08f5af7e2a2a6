package parallel

import (
	"context"
	"fmt"

	"github.com/notargets/dfem/utils"
)

// Messages are shared between goroutines, not copied. Received slices and
// maps are read-only to the receiver and must not be reused by the sender.

func recv[T any](ctx context.Context, c *Comm, src int) (v T, err error) {
	var msg any
	if msg, err = c.world.box.ReceiveMessage(ctx, c.rank, src); err != nil {
		return
	}
	var ok bool
	if v, ok = msg.(T); !ok {
		err = fmt.Errorf("rank %d: message from rank %d has type %T, collective calls out of order",
			c.rank, src, msg)
	}
	return
}

// Exchange is an all-to-all: out[dst] goes to rank dst, in[src] came from
// rank src.
func Exchange[T any](ctx context.Context, c *Comm, out []T) (in []T, err error) {
	size := c.Size()
	if len(out) != size {
		return nil, utils.InvalidSizeError(size, len(out))
	}
	in = make([]T, size)
	for dst := 0; dst < size; dst++ {
		if dst == c.rank {
			in[dst] = out[dst]
			continue
		}
		if err = c.world.box.PostMessage(ctx, c.rank, dst, out[dst]); err != nil {
			return nil, err
		}
	}
	for src := 0; src < size; src++ {
		if src == c.rank {
			continue
		}
		if in[src], err = recv[T](ctx, c, src); err != nil {
			return nil, err
		}
	}
	return
}

func AllGather[T any](ctx context.Context, c *Comm, v T) ([]T, error) {
	out := make([]T, c.Size())
	for i := range out {
		out[i] = v
	}
	return Exchange(ctx, c, out)
}

// Gather collects one value per rank on root, other ranks get nil.
func Gather[T any](ctx context.Context, c *Comm, root int, v T) (all []T, err error) {
	if c.rank != root {
		err = c.world.box.PostMessage(ctx, c.rank, root, v)
		return
	}
	all = make([]T, c.Size())
	for src := range all {
		if src == root {
			all[src] = v
			continue
		}
		if all[src], err = recv[T](ctx, c, src); err != nil {
			return nil, err
		}
	}
	return
}

// Bcast returns root's v on every rank.
func Bcast[T any](ctx context.Context, c *Comm, root int, v T) (T, error) {
	if c.rank == root {
		for dst := 0; dst < c.Size(); dst++ {
			if dst == root {
				continue
			}
			if err := c.world.box.PostMessage(ctx, c.rank, dst, v); err != nil {
				return v, err
			}
		}
		return v, nil
	}
	return recv[T](ctx, c, root)
}

// AllReduce folds the per rank values in rank order, so every rank computes
// a bitwise identical result.
func AllReduce[T any](ctx context.Context, c *Comm, v T, op func(a, b T) T) (res T, err error) {
	var all []T
	if all, err = AllGather(ctx, c, v); err != nil {
		return
	}
	res = all[0]
	for _, x := range all[1:] {
		res = op(res, x)
	}
	return
}

type Number interface {
	~int | ~int32 | ~int64 | ~float64
}

func AllReduceSum[T Number](ctx context.Context, c *Comm, v T) (T, error) {
	return AllReduce(ctx, c, v, func(a, b T) T { return a + b })
}

func AllReduceMax[T Number](ctx context.Context, c *Comm, v T) (T, error) {
	return AllReduce(ctx, c, v, func(a, b T) T {
		if b > a {
			return b
		}
		return a
	})
}

func Barrier(ctx context.Context, c *Comm) error {
	_, err := AllGather(ctx, c, struct{}{})
	return err
}
