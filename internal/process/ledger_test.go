package process

import (
	"sync"
	"testing"
	"time"
)

func TestLedgerInitAndGet(t *testing.T) {
	l := NewLedger()
	l.Init("job-1", 3)

	rec, ok := l.Get("job-1")
	if !ok {
		t.Fatal("record not found after Init")
	}
	if rec.Status != JobStatusRunning || rec.TotalImages != 3 || rec.ProcessedImages != 0 {
		t.Fatalf("unexpected initial record: %+v", rec)
	}
	if rec.CompressionStats == nil {
		t.Fatal("stats map not initialised")
	}

	if _, ok := l.Get("other"); ok {
		t.Fatal("unexpected record for unknown job")
	}
}

func TestLedgerUpdateKeepsStats(t *testing.T) {
	l := NewLedger()
	l.Init("job-1", 2)
	l.AddStat("job-1", "img-1", NewStat("a.jpg", 100, 50, 60))

	l.Update("job-1", Update{Processed: Int(1), CurrentImage: String("b.jpg")})

	rec, _ := l.Get("job-1")
	if rec.ProcessedImages != 1 || rec.CurrentImage != "b.jpg" {
		t.Fatalf("update not applied: %+v", rec)
	}
	if len(rec.CompressionStats) != 1 {
		t.Fatalf("stats clobbered by update: %+v", rec.CompressionStats)
	}
}

func TestLedgerProcessedIsMonotonicAndCapped(t *testing.T) {
	l := NewLedger()
	l.Init("job-1", 2)

	l.Update("job-1", Update{Processed: Int(2)})
	l.Update("job-1", Update{Processed: Int(1)})
	rec, _ := l.Get("job-1")
	if rec.ProcessedImages != 2 {
		t.Fatalf("processed went backwards: %d", rec.ProcessedImages)
	}

	l.Update("job-1", Update{Processed: Int(5)})
	rec, _ = l.Get("job-1")
	if rec.ProcessedImages != 2 {
		t.Fatalf("processed exceeded total: %d", rec.ProcessedImages)
	}
}

func TestLedgerTerminalStatusIsFinal(t *testing.T) {
	l := NewLedger()
	l.Init("job-1", 2)

	l.Update("job-1", Update{Status: JobStatusCancelled})
	l.Update("job-1", Update{Status: JobStatusCompleted})
	if ok := l.AddStat("job-1", "img-1", NewStat("a.jpg", 100, 50, 60)); ok {
		t.Fatal("stat accepted after terminal status")
	}

	rec, _ := l.Get("job-1")
	if rec.Status != JobStatusCancelled {
		t.Fatalf("status = %s, want cancelled", rec.Status)
	}
	if len(rec.CompressionStats) != 0 {
		t.Fatalf("stats grew after cancellation: %+v", rec.CompressionStats)
	}
}

func TestLedgerErrorStatusCarriesMessage(t *testing.T) {
	l := NewLedger()
	l.Init("job-1", 1)
	l.Update("job-1", Update{Status: JobStatusError, Error: "write catalog: disk full"})

	rec, _ := l.Get("job-1")
	if rec.Status != JobStatusError || rec.Error == "" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestLedgerGetReturnsCopy(t *testing.T) {
	l := NewLedger()
	l.Init("job-1", 1)
	l.AddStat("job-1", "img-1", NewStat("a.jpg", 100, 50, 60))

	rec, _ := l.Get("job-1")
	rec.CompressionStats["img-2"] = CompressionStat{}

	again, _ := l.Get("job-1")
	if len(again.CompressionStats) != 1 {
		t.Fatalf("caller mutation leaked into ledger: %+v", again.CompressionStats)
	}
}

func TestLedgerUnknownJob(t *testing.T) {
	l := NewLedger()
	if l.Update("nope", Update{Processed: Int(1)}) {
		t.Fatal("update reported success for unknown job")
	}
	if l.AddStat("nope", "img", CompressionStat{}) {
		t.Fatal("AddStat reported success for unknown job")
	}
	if l.Len() != 0 {
		t.Fatalf("ledger created entries: %d", l.Len())
	}
}

func TestLedgerClearAfter(t *testing.T) {
	l := NewLedger()
	l.Init("job-1", 1)
	l.ClearAfter("job-1", 10*time.Millisecond)

	if _, ok := l.Get("job-1"); !ok {
		t.Fatal("record removed before delay elapsed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := l.Get("job-1"); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("record not cleared after delay")
}

func TestLedgerInitCancelsPendingClear(t *testing.T) {
	l := NewLedger()
	l.Init("job-1", 1)
	l.ClearAfter("job-1", 20*time.Millisecond)
	l.Init("job-1", 4)

	time.Sleep(60 * time.Millisecond)
	rec, ok := l.Get("job-1")
	if !ok || rec.TotalImages != 4 {
		t.Fatalf("re-initialised record was cleared: %+v ok=%v", rec, ok)
	}
}

func TestLedgerConcurrentAccess(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		l.Init(id, 100)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for n := 1; n <= 100; n++ {
				l.AddStat(id, string(rune(n)), CompressionStat{})
				l.Update(id, Update{Processed: Int(n)})
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				l.Get(id)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		rec, _ := l.Get(string(rune('a' + i)))
		if rec.ProcessedImages != 100 || len(rec.CompressionStats) != 100 {
			t.Fatalf("job %d: %d processed, %d stats", i, rec.ProcessedImages, len(rec.CompressionStats))
		}
	}
}
