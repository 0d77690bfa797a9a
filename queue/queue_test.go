package queue

import "testing"

func TestConcurrentQueueFIFO(t *testing.T) {
	q := NewConcurrentQueue(5)
	q.Start()
	defer q.Stop()

	const n = 50
	go func() {
		for i := 0; i < n; i++ {
			q.ChanIn() <- i
		}
	}()

	for i := 0; i < n; i++ {
		got := <-q.ChanOut()
		if got.(int) != i {
			t.Fatalf("expected %d, got %v", i, got)
		}
	}
}
