package storage

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vireopay/fundflow/types"
)

func newTestTSQTask(txID string, due time.Time) *types.TSQTask {
	return &types.TSQTask{
		TxID:               txID,
		Type:               types.TSQTypeFTD,
		SessionID:          "000014260824120000000000000001",
		TrackingNumber:     "000000000001",
		OriginalActionCode: "909",
		MaxAttempts:        3,
		ScheduledFor:       due,
	}
}

func TestTSQSchedule(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	now := time.Now()

	c.Assert(st.HasPendingTSQ("tx-1"), qt.IsFalse)
	task := newTestTSQTask("tx-1", now.Add(-time.Minute))
	c.Assert(st.ScheduleTSQ(task), qt.IsNil)
	c.Assert(st.HasPendingTSQ("tx-1"), qt.IsTrue)
	c.Assert(st.PendingTSQTasks(), qt.Equals, 1)

	// One pending status query per transaction
	c.Assert(st.ScheduleTSQ(newTestTSQTask("tx-1", now)), qt.Equals, ErrKeyAlreadyExists)

	_, err := st.NextDueTSQ(now.Add(-time.Hour))
	c.Assert(err, qt.Equals, ErrNoMoreElements, qt.Commentf("nothing due that far back"))

	claimed, err := st.NextDueTSQ(now)
	c.Assert(err, qt.IsNil)
	c.Assert(claimed.TxID, qt.Equals, "tx-1")
	c.Assert(claimed.OriginalActionCode, qt.Equals, "909")

	_, err = st.NextDueTSQ(now)
	c.Assert(err, qt.Equals, ErrNoMoreElements, qt.Commentf("task reserved"))

	c.Assert(st.CompleteTSQ(claimed), qt.IsNil)
	c.Assert(st.HasPendingTSQ("tx-1"), qt.IsFalse)
	c.Assert(st.PendingTSQTasks(), qt.Equals, 0)
}

func TestTSQDueOrder(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	now := time.Now()

	c.Assert(st.ScheduleTSQ(newTestTSQTask("tx-later", now.Add(-time.Minute))), qt.IsNil)
	c.Assert(st.ScheduleTSQ(newTestTSQTask("tx-sooner", now.Add(-2*time.Minute))), qt.IsNil)
	c.Assert(st.ScheduleTSQ(newTestTSQTask("tx-future", now.Add(time.Hour))), qt.IsNil)

	first, err := st.NextDueTSQ(now)
	c.Assert(err, qt.IsNil)
	c.Assert(first.TxID, qt.Equals, "tx-sooner", qt.Commentf("earliest due time claimed first"))

	second, err := st.NextDueTSQ(now)
	c.Assert(err, qt.IsNil)
	c.Assert(second.TxID, qt.Equals, "tx-later")

	_, err = st.NextDueTSQ(now)
	c.Assert(err, qt.Equals, ErrNoMoreElements, qt.Commentf("tx-future not due"))
}

func TestTSQReschedule(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	now := time.Now()

	c.Assert(st.ScheduleTSQ(newTestTSQTask("tx-1", now.Add(-time.Minute))), qt.IsNil)
	claimed, err := st.NextDueTSQ(now)
	c.Assert(err, qt.IsNil)

	// Inconclusive outcome, try again later
	claimed.Attempts++
	c.Assert(st.RescheduleTSQ(claimed, now.Add(time.Minute)), qt.IsNil)
	c.Assert(st.HasPendingTSQ("tx-1"), qt.IsTrue)

	_, err = st.NextDueTSQ(now)
	c.Assert(err, qt.Equals, ErrNoMoreElements, qt.Commentf("moved into the future"))

	again, err := st.NextDueTSQ(now.Add(2 * time.Minute))
	c.Assert(err, qt.IsNil)
	c.Assert(again.TxID, qt.Equals, "tx-1")
	c.Assert(again.Attempts, qt.Equals, 1)

	c.Assert(st.CompleteTSQ(again), qt.IsNil)

	stats, err := st.Stats()
	c.Assert(err, qt.IsNil)
	c.Assert(stats.TSQAttempts, qt.Equals, int64(2), qt.Commentf("one reschedule, one completion"))
}
