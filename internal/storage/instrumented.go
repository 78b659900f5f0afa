package storage

import (
	"context"
	"io"
)

// ObserveFunc records the outcome of a single blob operation.
type ObserveFunc func(op string, fn func() error) error

// Instrumented wraps a Store and reports every write and delete through the
// provided observer.
type Instrumented struct {
	next    Store
	observe ObserveFunc
}

func NewInstrumented(next Store, observe ObserveFunc) *Instrumented {
	return &Instrumented{next: next, observe: observe}
}

func (s *Instrumented) Store(ctx context.Context, r io.Reader, ext string) (string, error) {
	var path string

	err := s.observe("store", func() error {
		var err error
		path, err = s.next.Store(ctx, r, ext)
		return err
	})

	return path, err
}

func (s *Instrumented) Delete(ctx context.Context, path string) error {
	return s.observe("delete", func() error {
		return s.next.Delete(ctx, path)
	})
}

func (s *Instrumented) PublicURL(path string) string {
	return s.next.PublicURL(path)
}
