// Package runner drives a periodic job until its context ends.
package runner

import (
	"context"
	"time"

	"github.com/emicklei/go-restful/v3/log"
)

type ProcessFunc = func(ctx context.Context) error

type Runner struct {
	Name    string
	Process ProcessFunc
	Delay   time.Duration
	Every   time.Duration
}

func NewRunner(name string, process ProcessFunc, delay, interval time.Duration) *Runner {
	return &Runner{
		Name:    name,
		Process: process,
		Delay:   delay,
		Every:   interval,
	}
}

// Run calls Process once after Delay and then every Every.
func (r *Runner) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(r.Delay):
		r.process(ctx)
	}

	ticker := time.NewTicker(r.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.process(ctx)
		}
	}
}

func (r *Runner) process(ctx context.Context) {
	if err := r.Process(ctx); err != nil && ctx.Err() == nil {
		log.Printf("%s process error: %v", r.Name, err)
	}
}
