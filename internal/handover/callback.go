package handover

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"baton/pkg/types"
)

const callbackTimeout = 10 * time.Second

// deliverCallback POSTs the TaskResult as JSON to the context's callback
// reference when asynchronous delivery was requested. Delivery is
// best-effort: a failed POST is logged, never surfaced, and never affects
// the handover outcome.
func (c *Coordinator) deliverCallback(ctx context.Context, pc *types.PersonaContext, result *types.TaskResult) {
	if pc.Communication.Mode != types.ModeAsynchronous || pc.Communication.Callback == "" {
		return
	}

	body, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("callback for %s: marshal result: %v", pc.Metadata.ContextID, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.Communication.Callback, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("callback for %s: build request: %v", pc.Metadata.ContextID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.logger.Warn("callback for %s to %s failed: %v", pc.Metadata.ContextID, pc.Communication.Callback, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		c.logger.Warn("callback for %s to %s returned %s", pc.Metadata.ContextID, pc.Communication.Callback, resp.Status)
		return
	}
	c.logger.Debug("delivered result of %s to %s", pc.Metadata.ContextID, pc.Communication.Callback)
}
