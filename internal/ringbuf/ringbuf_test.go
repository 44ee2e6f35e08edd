package ringbuf

import (
	"sync"
	"testing"
)

func TestReserveCommitReadRoundTrip(t *testing.T) {
	rb, err := New(4, 16, Block)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	idx, slot, err := rb.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	slot.Width, slot.Height, slot.Format = 2, 2, 1
	copy(slot.Data, []byte("abcd"))
	slot.Size = 4
	rb.CommitWrite(idx, 42)

	ridx, rslot, err := rb.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ridx != idx {
		t.Fatalf("read index = %d, want %d", ridx, idx)
	}
	if rslot.Sequence != 42 {
		t.Fatalf("sequence = %d, want 42", rslot.Sequence)
	}
	if string(rslot.Data[:rslot.Size]) != "abcd" {
		t.Fatalf("data = %q", rslot.Data[:rslot.Size])
	}
	rb.CommitRead(ridx)

	if rb.Produced() != 1 || rb.Consumed() != 1 || rb.Dropped() != 0 {
		t.Fatalf("counters = %d/%d/%d, want 1/1/0", rb.Produced(), rb.Consumed(), rb.Dropped())
	}
	if rb.Size() != 0 {
		t.Fatalf("size = %d, want 0", rb.Size())
	}
}

func TestReadEmptyReturnsErrEmpty(t *testing.T) {
	rb, _ := New(2, 8, Block)
	if _, _, err := rb.Read(); err != ErrEmpty {
		t.Fatalf("Read on empty buffer = %v, want ErrEmpty", err)
	}
}

func TestBlockPolicyRejectsOnFull(t *testing.T) {
	rb, _ := New(2, 8, Block)
	for i := 0; i < 2; i++ {
		idx, _, err := rb.Reserve()
		if err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
		rb.CommitWrite(idx, uint64(i))
	}
	if _, _, err := rb.Reserve(); err != ErrFull {
		t.Fatalf("Reserve on full buffer = %v, want ErrFull", err)
	}
	if rb.Dropped() != 0 {
		t.Fatalf("Block policy must not count rejected reservations as drops, got %d", rb.Dropped())
	}
}

func TestDropNewestIncrementsDroppedWithoutEvicting(t *testing.T) {
	rb, _ := New(1, 8, DropNewest)
	idx, _, _ := rb.Reserve()
	rb.CommitWrite(idx, 1)

	if _, _, err := rb.Reserve(); err != ErrFull {
		t.Fatalf("Reserve on full buffer = %v, want ErrFull", err)
	}
	if rb.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", rb.Dropped())
	}

	// The original slot must still be readable; nothing was evicted.
	_, slot, err := rb.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if slot.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1", slot.Sequence)
	}
}

func TestDropOldestEvictsAndMakesRoom(t *testing.T) {
	rb, _ := New(2, 8, DropOldest)

	idx0, _, _ := rb.Reserve()
	rb.CommitWrite(idx0, 100)
	idx1, _, _ := rb.Reserve()
	rb.CommitWrite(idx1, 101)

	// Buffer full; a third reservation must evict slot 0 and succeed.
	idx2, _, err := rb.Reserve()
	if err != nil {
		t.Fatalf("Reserve after eviction: %v", err)
	}
	rb.CommitWrite(idx2, 102)

	if rb.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", rb.Dropped())
	}

	// The oldest slot (sequence 100) must be gone; only 101 and 102 remain.
	seen := map[uint64]bool{}
	for {
		idx, slot, err := rb.Read()
		if err == ErrEmpty {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		seen[slot.Sequence] = true
		rb.CommitRead(idx)
	}
	if seen[100] {
		t.Fatalf("evicted slot sequence 100 was still observed")
	}
	if !seen[101] || !seen[102] {
		t.Fatalf("expected sequences 101 and 102, got %v", seen)
	}
}

func TestCommitWriteNoOpAfterEviction(t *testing.T) {
	rb, _ := New(1, 8, DropOldest)
	idx0, _, _ := rb.Reserve()

	// Reserve a second slot before the first is committed; this forces
	// eviction of idx0 even though its CommitWrite hasn't run yet.
	idx1, _, _ := rb.Reserve()
	rb.CommitWrite(idx1, 7)

	// A late CommitWrite for the evicted reservation must not resurrect it
	// or double count produced.
	rb.CommitWrite(idx0, 6)
	if rb.Produced() != 1 {
		t.Fatalf("Produced = %d, want 1 (late commit on evicted index must be a no-op)", rb.Produced())
	}
}

func TestResetClearsSlotsButPreservesLifetimeCounters(t *testing.T) {
	rb, _ := New(2, 8, Block)
	idx, _, _ := rb.Reserve()
	rb.CommitWrite(idx, 1)

	rb.Reset()

	if rb.Size() != 0 {
		t.Fatalf("Size after Reset = %d, want 0", rb.Size())
	}
	if rb.Produced() != 1 {
		t.Fatalf("Produced after Reset = %d, want 1 (lifetime counters are preserved)", rb.Produced())
	}
	if _, _, err := rb.Read(); err != ErrEmpty {
		t.Fatalf("Read after Reset = %v, want ErrEmpty", err)
	}

	// The buffer must be fully usable again post-reset.
	idx2, _, err := rb.Reserve()
	if err != nil {
		t.Fatalf("Reserve after Reset: %v", err)
	}
	rb.CommitWrite(idx2, 2)
	if _, _, err := rb.Read(); err != nil {
		t.Fatalf("Read after Reset+Reserve: %v", err)
	}
}

func TestResetCountersZeroesLifetimeCounters(t *testing.T) {
	rb, _ := New(1, 8, DropNewest)
	idx, _, _ := rb.Reserve()
	rb.CommitWrite(idx, 1)
	rb.Reserve() // rejected, counts as a drop

	rb.ResetCounters()
	if rb.Produced() != 0 || rb.Consumed() != 0 || rb.Dropped() != 0 {
		t.Fatalf("counters after ResetCounters = %d/%d/%d, want 0/0/0", rb.Produced(), rb.Consumed(), rb.Dropped())
	}
}

func TestConcurrentProducersNeverCorruptSlotAccounting(t *testing.T) {
	rb, _ := New(8, 32, DropOldest)
	const producers = 6
	const perProducer = 500

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				idx, slot, err := rb.Reserve()
				if err != nil {
					continue
				}
				slot.Size = 1
				rb.CommitWrite(idx, uint64(p*perProducer+i))
			}
		}(p)
	}

	var consumerWg sync.WaitGroup
	stop := make(chan struct{})
	consumerWg.Add(1)
	go func() {
		defer consumerWg.Done()
		for {
			select {
			case <-stop:
				for {
					idx, _, err := rb.Read()
					if err != nil {
						return
					}
					rb.CommitRead(idx)
				}
			default:
				idx, _, err := rb.Read()
				if err != nil {
					continue
				}
				rb.CommitRead(idx)
			}
		}
	}()

	wg.Wait()
	close(stop)
	consumerWg.Wait()

	if got := rb.Produced() - rb.Consumed() - rb.Dropped(); got < -int64(rb.Capacity()) || got > int64(rb.Capacity()) {
		t.Fatalf("produced - consumed - dropped out of range: %d", got)
	}
	total := rb.Consumed() + rb.Dropped()
	if total != int64(producers*perProducer) {
		t.Fatalf("consumed+dropped = %d, want %d", total, producers*perProducer)
	}
}
