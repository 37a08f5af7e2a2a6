package parallel

import (
	"context"
	"fmt"
)

// MailBox carries messages between ranks. There is one buffered channel per
// ordered (sender, receiver) pair, so messages between two ranks arrive in
// the order they were posted. Collectives post exactly one message per pair,
// which keeps a sender at most two collectives ahead of any receiver.
type MailBox[T any] struct {
	NP           int
	MessageChans [][]chan T // [sender][receiver]
}

func NewMailBox[T any](NP int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:           NP,
		MessageChans: make([][]chan T, NP),
	}
	for n := 0; n < NP; n++ {
		mb.MessageChans[n] = make([]chan T, NP)
		for m := 0; m < NP; m++ {
			mb.MessageChans[n][m] = make(chan T, 2)
		}
	}
	return mb
}

func (mb *MailBox[T]) checkRank(r int) {
	if r < 0 || r > mb.NP-1 {
		panic(fmt.Sprintf("Target thread %d out of bounds", r))
	}
}

// PostMessage blocks until the message is queued or ctx is done.
func (mb *MailBox[T]) PostMessage(ctx context.Context, myThread, targetThread int, msg T) error {
	mb.checkRank(targetThread)
	select {
	case mb.MessageChans[myThread][targetThread] <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReceiveMessage blocks until the next message from sourceThread arrives.
func (mb *MailBox[T]) ReceiveMessage(ctx context.Context, myThread, sourceThread int) (msg T, err error) {
	mb.checkRank(sourceThread)
	select {
	case msg = <-mb.MessageChans[sourceThread][myThread]:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return
}
