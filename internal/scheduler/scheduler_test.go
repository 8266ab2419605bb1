package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func waitForJob(t *testing.T, ran <-chan struct{}) {
	t.Helper()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}

func signalOnce(ran chan struct{}) func() {
	var once sync.Once
	return func() { once.Do(func() { close(ran) }) }
}

func TestIntervalJobStartsImmediately(t *testing.T) {
	s := New()
	defer s.Stop()

	ran := make(chan struct{})
	signal := signalOnce(ran)
	s.NewIntervalJob("tick", func(ctx context.Context) error {
		signal()
		return nil
	}, time.Hour, true)

	s.Start()

	waitForJob(t, ran)
}

func TestCrontabJobRunsOnSchedule(t *testing.T) {
	s := New()
	defer s.Stop()

	ran := make(chan struct{})
	signal := signalOnce(ran)
	s.NewCrontabJob("tick", func(ctx context.Context) error {
		signal()
		return nil
	}, "* * * * * *", false)

	s.Start()

	waitForJob(t, ran)
}

func TestJobPanicIsRecovered(t *testing.T) {
	s := New()
	defer s.Stop()

	ran := make(chan struct{})
	signal := signalOnce(ran)
	s.NewIntervalJob("boom", func(ctx context.Context) error {
		signal()
		panic("boom")
	}, time.Hour, true)

	s.Start()

	waitForJob(t, ran)
	// the panic is swallowed by the job wrapper; the scheduler keeps
	// running and Stop returns normally
	assert.NotPanics(t, s.Stop)
}
