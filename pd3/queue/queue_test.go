package queue_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ProD3-LF/estimators/pd3/queue"
)

var _ = Describe("Handle", func() {
	var h *queue.Handle

	BeforeEach(func() {
		h = queue.GetHandle("producer", "consumer-"+time.Now().String())
	})

	AfterEach(func() {
		h.Close()
	})

	It("holds enqueued items locally until the threshold is reached", func() {
		h.SetThreshold(3)
		h.Enqueue(1, queue.FlushDefault)
		h.Enqueue(2, queue.FlushDefault)
		Expect(h.LocalSize()).To(Equal(2))
		Expect(h.Size()).To(Equal(0))

		h.Enqueue(3, queue.FlushDefault)
		Expect(h.LocalSize()).To(Equal(0))
		Expect(h.Size()).To(Equal(3))
	})

	It("flushes immediately under FlushNow regardless of threshold", func() {
		h.SetThreshold(100)
		h.Enqueue("x", queue.FlushNow)
		Expect(h.Size()).To(Equal(1))
	})

	It("never flushes under FlushNever even past threshold", func() {
		h.SetThreshold(1)
		h.Enqueue("x", queue.FlushNever)
		Expect(h.LocalSize()).To(Equal(1))
		Expect(h.Size()).To(Equal(0))
	})

	It("delivers items FIFO to Dequeue", func() {
		h.Enqueue("a", queue.FlushNow)
		h.Enqueue("b", queue.FlushNow)

		v1, err := h.Dequeue()
		Expect(err).NotTo(HaveOccurred())
		Expect(v1).To(Equal("a"))

		v2, err := h.Dequeue()
		Expect(err).NotTo(HaveOccurred())
		Expect(v2).To(Equal("b"))
	})

	It("unblocks Dequeue with ErrClosed once the queue is closed", func() {
		done := make(chan struct{})
		var derr error
		go func() {
			_, derr = h.Dequeue()
			close(done)
		}()

		time.Sleep(10 * time.Millisecond)
		h.CloseQueue()

		Eventually(done, time.Second).Should(BeClosed())
		Expect(derr).To(Equal(queue.ErrClosed))
	})

	It("TimedDequeue respects context cancellation", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := h.TimedDequeue(ctx)
		Expect(err).To(HaveOccurred())
	})
})
