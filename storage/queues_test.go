package storage

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vireopay/fundflow/types"
)

func TestCreditQueue(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	_, err := st.NextCreditJob()
	c.Assert(err, qt.Equals, ErrNoMoreElements, qt.Commentf("no jobs expected initially"))
	c.Assert(st.PendingCreditJobs(), qt.Equals, 0)

	// Two transfers reach FTC_PENDING
	for _, id := range []string{"tx-1", "tx-2"} {
		tx := createTestTransaction(id, "REF-"+id)
		c.Assert(st.CreateTransaction(tx), qt.IsNil)
		for _, status := range []types.TxStatus{types.StatusFTDPending, types.StatusFTDSuccess, types.StatusFTCPending} {
			_, err := st.UpdateTransactionStatus(id, status, "", types.SeverityInfo)
			c.Assert(err, qt.IsNil)
		}
	}
	c.Assert(st.PendingCreditJobs(), qt.Equals, 2)

	// Claiming hides the job from other workers
	job1, err := st.NextCreditJob()
	c.Assert(err, qt.IsNil)
	job2, err := st.NextCreditJob()
	c.Assert(err, qt.IsNil)
	c.Assert(job1.ID, qt.Not(qt.Equals), job2.ID)
	_, err = st.NextCreditJob()
	c.Assert(err, qt.Equals, ErrNoMoreElements, qt.Commentf("both jobs reserved"))

	// Releasing makes the job claimable again
	c.Assert(st.ReleaseCreditJob(job1.ID), qt.IsNil)
	again, err := st.NextCreditJob()
	c.Assert(err, qt.IsNil)
	c.Assert(again.ID, qt.Equals, job1.ID)

	// Done removes the queue entry entirely
	c.Assert(st.MarkCreditJobDone(job1.ID), qt.IsNil)
	c.Assert(st.MarkCreditJobDone(job2.ID), qt.IsNil)
	c.Assert(st.PendingCreditJobs(), qt.Equals, 0)
	_, err = st.NextCreditJob()
	c.Assert(err, qt.Equals, ErrNoMoreElements)
}

func TestReversalQueue(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	tx := createTestTransaction("tx-1", "REF-001")
	c.Assert(st.CreateTransaction(tx), qt.IsNil)
	for _, status := range []types.TxStatus{
		types.StatusFTDPending, types.StatusFTDSuccess,
		types.StatusFTCPending, types.StatusFTCFailed,
		types.StatusReversalPending,
	} {
		_, err := st.UpdateTransactionStatus("tx-1", status, "", types.SeverityInfo)
		c.Assert(err, qt.IsNil)
	}
	c.Assert(st.PendingReversalJobs(), qt.Equals, 1)

	job, err := st.NextReversalJob()
	c.Assert(err, qt.IsNil)
	c.Assert(job.ID, qt.Equals, "tx-1")
	c.Assert(job.Status, qt.Equals, types.StatusReversalPending)

	_, err = st.NextReversalJob()
	c.Assert(err, qt.Equals, ErrNoMoreElements)

	c.Assert(st.MarkReversalJobDone("tx-1"), qt.IsNil)
	c.Assert(st.PendingReversalJobs(), qt.Equals, 0)

	// The self edge requeues after an inconclusive attempt
	_, err = st.UpdateTransactionStatus("tx-1", types.StatusReversalPending, "retrying reversal", types.SeverityWarning)
	c.Assert(err, qt.IsNil)
	c.Assert(st.PendingReversalJobs(), qt.Equals, 1)
	job, err = st.NextReversalJob()
	c.Assert(err, qt.IsNil)
	c.Assert(job.ID, qt.Equals, "tx-1")
}

func TestQueueDropsOrphanEntries(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	// A queue entry whose transaction does not exist is dropped on scan
	c.Assert(st.setArtifact(creditQueuePrefix, []byte("ghost"), &queueRecord{QueuedAt: 0}), qt.IsNil)
	c.Assert(st.PendingCreditJobs(), qt.Equals, 1)

	_, err := st.NextCreditJob()
	c.Assert(err, qt.Equals, ErrNoMoreElements)
	c.Assert(st.PendingCreditJobs(), qt.Equals, 0)
}
