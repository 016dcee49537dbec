package location

import "context"

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Source is an asynchronous stream of location samples. Subscribe attaches
// a new consumer; the returned cancel func detaches it and must always be
// called.
type Source interface {
	Subscribe() (<-chan Point, func())
}

// TakeOne draws exactly one sample from the source and detaches. Later
// emissions are not consumed. Returns (nil, nil) when the source closes
// without emitting, and ctx.Err() when the caller gives up first.
func TakeOne(ctx context.Context, src Source) (*Point, error) {
	ch, cancel := src.Subscribe()
	defer cancel()

	select {
	case p, ok := <-ch:
		if !ok {
			return nil, nil
		}
		return &p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Static is a Source that always emits the same point. Useful for fixed
// installations and tests.
type Static Point

func (s Static) Subscribe() (<-chan Point, func()) {
	ch := make(chan Point, 1)
	ch <- Point(s)
	close(ch)
	return ch, func() {}
}
