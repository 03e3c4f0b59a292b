package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/optimizer"
)

type fakeSaver struct {
	mu      sync.Mutex
	saved   []domain.OptimizationProgress
	release chan struct{}
}

func (f *fakeSaver) Save(ctx context.Context, p domain.OptimizationProgress) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, p)
	return nil
}

func TestReporterFlushesOnClose(t *testing.T) {
	saver := &fakeSaver{}
	r := newReporter(7, saver, time.Second)

	r.Report(optimizer.Progress{Generation: 1, Generations: 3, BestFitness: 10})
	r.Report(optimizer.Progress{Generation: 2, Generations: 3, BestFitness: 11})
	r.Report(optimizer.Progress{Generation: 3, Generations: 3, BestFitness: 12})
	r.Close()

	require.NotEmpty(t, saver.saved)
	last := saver.saved[len(saver.saved)-1]
	assert.Equal(t, int64(7), last.RunID)
	assert.Equal(t, 3, last.Generation)
	assert.Equal(t, 12.0, last.BestFitness)
}

func TestReporterDoesNotBlockWhenSaverIsSlow(t *testing.T) {
	saver := &fakeSaver{release: make(chan struct{})}
	r := newReporter(1, saver, time.Second)

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 100; i++ {
			r.Report(optimizer.Progress{Generation: i, Generations: 100})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Report 被阻塞")
	}

	close(saver.release)
	r.Close()

	assert.Equal(t, 100, saver.saved[len(saver.saved)-1].Generation)
	assert.LessOrEqual(t, len(saver.saved), 3)
}
