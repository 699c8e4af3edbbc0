package scheduler

import (
	"context"

	"github.com/shelfmark/productpipeline/internal/logging"
	"github.com/shelfmark/productpipeline/internal/queue"
)

// QueueDispatcher implements productwriter.EnrichmentDispatcher by pushing a
// verify_product entry onto the enrichment queue instead of calling the
// Verification Pipeline inline, keeping the Product Writer's transaction
// short (§4.2 step 8: "hand the product to the Verification Pipeline
// asynchronously"). The Scheduler's process_enrichment_queue beat drains it.
type QueueDispatcher struct {
	Queue *queue.Queue
}

// DispatchVerification satisfies productwriter.EnrichmentDispatcher.
func (d *QueueDispatcher) DispatchVerification(ctx context.Context, productID string) {
	if d.Queue == nil {
		return
	}
	payload := queuedEnrichmentPayload{ProductID: productID}
	if err := d.Queue.Push(ctx, queue.Enrichment, enrichmentKindVerify, payload); err != nil {
		logging.For("scheduler").Warn("failed to enqueue product verification", "product_id", productID, "error", err.Error())
	}
}
