// Package persistence buffers journal writes off the trading path.
package persistence

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"pairs-core/pkg/db"
)

// WriteOp is one buffered statement.
type WriteOp struct {
	Query string
	Args  []any
}

// BatchWriterMetrics reports flush activity.
type BatchWriterMetrics struct {
	TotalWrites   uint64    `json:"total_writes"`
	TotalBatches  uint64    `json:"total_batches"`
	TotalErrors   uint64    `json:"total_errors"`
	LastBatchSize int       `json:"last_batch_size"`
	LastFlushTime time.Time `json:"last_flush_time"`
}

// BatchWriter collects statements and commits them in one transaction when the
// buffer fills, on a timer, or on Close.
type BatchWriter struct {
	db       *sql.DB
	maxSize  int
	interval time.Duration

	mu      sync.Mutex
	buffer  []WriteOp
	metrics BatchWriterMetrics

	// flushMu serializes transactions so batches commit in order.
	flushMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewBatchWriter starts a writer. maxSize defaults to 50, interval to 500ms.
func NewBatchWriter(conn *sql.DB, maxSize int, interval time.Duration) *BatchWriter {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	bw := &BatchWriter{
		db:       conn,
		buffer:   make([]WriteOp, 0, maxSize),
		maxSize:  maxSize,
		interval: interval,
		done:     make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.backgroundFlush()
	return bw
}

// Write buffers op and flushes if the buffer is full.
func (bw *BatchWriter) Write(op WriteOp) {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, op)
	full := len(bw.buffer) >= bw.maxSize
	bw.mu.Unlock()

	if full {
		if err := bw.Flush(); err != nil {
			log.Printf("⚠️ BatchWriter: flush on full buffer failed: %v", err)
		}
	}
}

// WriteLeg journals one submitted order leg.
func (bw *BatchWriter) WriteLeg(l db.OrderLeg) {
	q, args := db.InsertOrderLegQuery(l)
	bw.Write(WriteOp{Query: q, Args: args})
}

// Flush commits everything buffered so far.
func (bw *BatchWriter) Flush() error {
	bw.flushMu.Lock()
	defer bw.flushMu.Unlock()

	bw.mu.Lock()
	ops := bw.buffer
	bw.buffer = make([]WriteOp, 0, bw.maxSize)
	bw.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}
	err := bw.executeBatch(context.Background(), ops)

	bw.mu.Lock()
	bw.metrics.TotalWrites += uint64(len(ops))
	bw.metrics.TotalBatches++
	bw.metrics.LastBatchSize = len(ops)
	bw.metrics.LastFlushTime = time.Now()
	if err != nil {
		bw.metrics.TotalErrors++
	}
	bw.mu.Unlock()
	return err
}

func (bw *BatchWriter) executeBatch(ctx context.Context, ops []WriteOp) error {
	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("❌ BatchWriter: failed to begin transaction: %v", err)
		return err
	}

	for _, op := range ops {
		if _, err := tx.ExecContext(ctx, op.Query, op.Args...); err != nil {
			tx.Rollback()
			log.Printf("❌ BatchWriter: query failed, dropping batch of %d: %v", len(ops), err)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("❌ BatchWriter: commit failed: %v", err)
		return err
	}
	return nil
}

func (bw *BatchWriter) backgroundFlush() {
	defer bw.wg.Done()
	ticker := time.NewTicker(bw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := bw.Flush(); err != nil {
				log.Printf("⚠️ BatchWriter: background flush error: %v", err)
			}
		case <-bw.done:
			if err := bw.Flush(); err != nil {
				log.Printf("⚠️ BatchWriter: final flush error: %v", err)
			}
			return
		}
	}
}

// Pending returns the number of buffered statements.
func (bw *BatchWriter) Pending() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// GetMetrics returns a copy of the flush counters.
func (bw *BatchWriter) GetMetrics() BatchWriterMetrics {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.metrics
}

// Close stops the timer and flushes what is left. It is safe to call twice.
func (bw *BatchWriter) Close() error {
	bw.closeOnce.Do(func() { close(bw.done) })
	bw.wg.Wait()
	return nil
}
