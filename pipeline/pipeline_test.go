package pipeline

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swind/go-task-runner/core"
)

func TestPipeline_ConsumerStopsAfterOnePillPerProducer(t *testing.T) {
	const producers = 3
	p := New[int](1)

	for i := 0; i < producers; i++ {
		p.Post(i)
		p.FinishProducer()
	}

	consumer := p.NewConsumer(producers)
	ctx := context.Background()

	var got []int
	for {
		item, ok, err := consumer.Take(ctx, nil)
		if err != nil {
			t.Fatalf("Take() failed: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, item)
	}

	sort.Ints(got)
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.True(t, consumer.Done(), "Done() should report true after seeing every producer's pill")
}

func TestPipeline_MultipleConsumersDrainAllItemsAndStop(t *testing.T) {
	const producers = 2
	const consumers = 3
	p := New[string](consumers)

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				p.Post("item")
			}
			p.FinishProducer()
		}(i)
	}
	wg.Wait()

	var total int
	var mu sync.Mutex
	var consumerWg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			c := p.NewConsumer(producers)
			count := 0
			for {
				_, ok, err := c.Take(context.Background(), nil)
				if err != nil {
					t.Errorf("Take() failed: %v", err)
					return
				}
				if !ok {
					break
				}
				count++
			}
			mu.Lock()
			total += count
			mu.Unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		consumerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumers never drained the pipeline")
	}

	assert.Equal(t, producers*5, total, "total items consumed across all consumers")
}

func TestPipeline_ConsumerCancelledByToken(t *testing.T) {
	p := New[int](1)
	tok := core.NewToken()
	c := p.NewConsumer(1)

	takeDone := make(chan error, 1)
	go func() {
		_, _, err := c.Take(context.Background(), tok)
		takeDone <- err
	}()

	time.Sleep(10 * time.Millisecond)
	tok.Trip()

	select {
	case err := <-takeDone:
		require.ErrorIs(t, err, core.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("Take() never returned after token tripped")
	}
}
