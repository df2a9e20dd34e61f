package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/metrics"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
	"github.com/vireopay/fundflow/webhook"
)

// dispatchClientCallbacks delivers due institution webhooks up to the
// batch limit.
func (e *Engine) dispatchClientCallbacks() {
	ctx := e.workerCtx()
	now := time.Now()
	for i := 0; i < e.cfg.DispatchBatch; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		cb, err := e.stg.NextDueClientCallback(now)
		if err != nil {
			if !errors.Is(err, storage.ErrNoMoreElements) {
				log.Warnw("failed to claim client callback", "error", err)
			}
			return
		}
		e.deliverClientCallback(cb)
	}
}

// deliverClientCallback makes one delivery attempt for a webhook row. A
// 2xx settles it and stamps the transaction; anything else retries with
// exponential backoff until the attempt budget permanently fails the row.
func (e *Engine) deliverClientCallback(cb *types.ClientCallback) {
	attempts := cb.Attempts + 1

	secret := ""
	inst, err := e.reg.Institution(cb.InstitutionID)
	if err != nil {
		// deliver unsigned rather than not at all; the institution may
		// have been deactivated after the transfer finished
		log.Warnw("institution unavailable for webhook signing",
			"institution", cb.InstitutionID, "error", err)
	} else {
		secret = inst.WebhookSecret
	}

	status, err := e.hooks.Deliver(e.workerCtx(), cb, secret)
	if err == nil && webhook.Delivered(status) {
		metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
		if err := e.stg.MarkClientCallbackDelivered(cb.ID, attempts); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to mark client callback %s delivered", cb.ID))
			return
		}
		if _, err := e.stg.UpdateTransaction(cb.TxID, storage.TxUpdateClientCallbackSent()); err != nil {
			log.Warnw("failed to stamp callback delivery on transaction",
				"tx", cb.TxID, "error", err)
		}
		log.Infow("client callback delivered",
			"tx", cb.TxID, "reference", cb.Reference, "attempts", attempts)
		return
	}

	lastError := fmt.Sprintf("HTTP %d", status)
	if err != nil {
		lastError = err.Error()
	}

	if attempts >= cb.MaxAttempts {
		metrics.WebhookDeliveries.WithLabelValues("exhausted").Inc()
		log.Warnw("client callback permanently failed",
			"tx", cb.TxID, "reference", cb.Reference, "attempts", attempts, "lastError", lastError)
		// Attempts at the budget make the row unclaimable; record the
		// final failure and leave an audit trace.
		if err := e.stg.RescheduleClientCallback(cb.ID, attempts, time.Now(), lastError); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to finalize client callback %s", cb.ID))
		}
		if err := e.stg.AppendAudit(&types.AuditRecord{
			TxID:     cb.TxID,
			Reason:   fmt.Sprintf("client callback delivery abandoned after %d attempts: %s", attempts, lastError),
			Severity: types.SeverityWarning,
		}); err != nil {
			log.Warnw("failed to append delivery audit", "tx", cb.TxID, "error", err)
		}
		return
	}

	delay := e.cfg.Webhook.NextDelay(attempts)
	metrics.WebhookDeliveries.WithLabelValues("retry").Inc()
	log.Infow("client callback delivery failed, retrying",
		"tx", cb.TxID, "attempts", attempts, "nextAttemptIn", delay.String(), "error", lastError)
	if err := e.stg.RescheduleClientCallback(cb.ID, attempts, time.Now().Add(delay), lastError); err != nil {
		log.Errorw(err, fmt.Sprintf("failed to reschedule client callback %s", cb.ID))
	}
}
