// ABOUTME: Job handlers for the classify_batch and refresh_rates queues.
// ABOUTME: Batch classification walks unclassified products; rate refresh re-fetches stale lanes.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/classify"
	"github.com/Milo6x/dutyleak/internal/customs"
	"github.com/Milo6x/dutyleak/internal/notify"
	"github.com/Milo6x/dutyleak/internal/store"
)

// classifyBatchPayload is the payload for classify_batch jobs.
type classifyBatchPayload struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
}

// NewClassifyBatchHandler returns the handler for the classify_batch queue.
// It classifies up to maxProducts unclassified products in the workspace and
// notifies workspace admins by email and configured webhooks when the batch
// finishes. Individual product failures do not fail the job; a batch where
// nothing succeeded does, so the retry/backoff machinery kicks in when the
// provider is down. webhookClient must be the safeurl-wrapped client.
func NewClassifyBatchHandler(s *store.Store, classifier *classify.Engine, smtp notify.SmtpConfig, webhookClient *http.Client, maxProducts int) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p classifyBatchPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("classify batch: bad payload: %w", err)
		}

		ids, err := s.ListUnclassifiedProductIDs(ctx, p.WorkspaceID, maxProducts)
		if err != nil {
			return fmt.Errorf("classify batch: list products: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		var classified, failed int
		for _, id := range ids {
			if err := classifyOne(ctx, s, classifier, p.WorkspaceID, id); err != nil {
				slog.WarnContext(ctx, "batch classification: product failed",
					"workspace_id", p.WorkspaceID, "product_id", id, "error", err)
				failed++
				continue
			}
			classified++
		}
		slog.InfoContext(ctx, "batch classification finished",
			"workspace_id", p.WorkspaceID, "classified", classified, "failed", failed)

		if classified == 0 {
			return fmt.Errorf("classify batch: all %d products failed", failed)
		}

		notifyBatchDone(ctx, s, smtp, p.WorkspaceID, classified, failed)
		deliverBatchWebhooks(ctx, s, webhookClient, p.WorkspaceID, classified, failed)
		return nil
	}
}

func classifyOne(ctx context.Context, s *store.Store, classifier *classify.Engine, workspaceID, productID uuid.UUID) error {
	product, err := s.GetProduct(ctx, workspaceID, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return nil // deleted since the batch was enqueued
	}

	description := ""
	if product.Description != nil {
		description = *product.Description
	}
	result, err := classifier.Classify(ctx, product.Title, description, product.OriginCountry)
	if err != nil {
		return err
	}

	model := result.Model
	rationale := result.Rationale
	_, err = s.CreateClassification(ctx, workspaceID, store.CreateClassificationParams{
		ProductID:   product.ID,
		HSCode:      result.HSCode,
		Description: result.Description,
		Confidence:  result.Confidence,
		Source:      string(result.Source),
		Model:       &model,
		Rationale:   &rationale,
	}, true)
	return err
}

// notifyBatchDone emails workspace admins and owners. Best-effort: failures
// are logged, never propagated.
func notifyBatchDone(ctx context.Context, s *store.Store, smtp notify.SmtpConfig, workspaceID uuid.UUID, classified, failed int) {
	ws, err := s.GetWorkspaceByID(ctx, workspaceID)
	if err != nil || ws == nil {
		slog.WarnContext(ctx, "batch notification: workspace lookup failed",
			"workspace_id", workspaceID, "error", err)
		return
	}
	members, err := s.ListMembers(ctx, workspaceID)
	if err != nil {
		slog.WarnContext(ctx, "batch notification: member lookup failed",
			"workspace_id", workspaceID, "error", err)
		return
	}
	var recipients []string
	for _, m := range members {
		if m.Role == "admin" || m.Role == "owner" {
			recipients = append(recipients, m.Email)
		}
	}
	if len(recipients) == 0 {
		return
	}

	subject, htmlBody, textBody := notify.BatchDoneEmail(ws.Name, classified, failed)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := notify.EmailSend(sendCtx, smtp, recipients, subject, htmlBody, textBody); err != nil {
		slog.WarnContext(ctx, "batch notification: email send failed",
			"workspace_id", workspaceID, "error", err)
	}
}

// deliverBatchWebhooks posts a batch.completed event to every active webhook
// destination of the workspace. Best-effort: failures are logged, never propagated.
func deliverBatchWebhooks(ctx context.Context, s *store.Store, client *http.Client, workspaceID uuid.UUID, classified, failed int) {
	hooks, err := s.ListActiveWebhooks(ctx, workspaceID)
	if err != nil {
		slog.WarnContext(ctx, "batch webhook: destination lookup failed",
			"workspace_id", workspaceID, "error", err)
		return
	}
	if len(hooks) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"event":        "batch.completed",
		"workspace_id": workspaceID,
		"classified":   classified,
		"failed":       failed,
		"finished_at":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.WarnContext(ctx, "batch webhook: encode payload", "error", err)
		return
	}

	for _, h := range hooks {
		cfg := notify.WebhookConfig{
			URL:           h.URL,
			SigningSecret: h.SigningSecret,
			CustomHeaders: h.CustomHeaders,
		}
		if h.SigningSecretSecondary != nil {
			cfg.SigningSecretSecondary = *h.SigningSecretSecondary
		}
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		if err := notify.Send(sendCtx, client, cfg, payload); err != nil {
			slog.WarnContext(ctx, "batch webhook: delivery failed",
				"workspace_id", workspaceID, "webhook_id", h.ID, "error", err)
		}
		cancel()
	}
}

// refreshRatesBatchSize caps how many stale lanes one job re-fetches.
const refreshRatesBatchSize = 100

// NewRefreshRatesHandler returns the handler for the refresh_rates queue.
// It re-fetches the oldest stale duty rate cache entries from the tariff API.
// Lanes the API no longer has data for keep their cached row; per-lane fetch
// errors are logged, and the job fails only when every fetch failed.
func NewRefreshRatesHandler(s *store.Store, tariff *customs.Client, maxAge time.Duration) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		stale, err := s.ListStaleDutyRates(ctx, maxAge, refreshRatesBatchSize)
		if err != nil {
			return fmt.Errorf("refresh rates: list stale: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}

		var refreshed, failed int
		for _, lane := range stale {
			quote, err := tariff.FetchRate(ctx, lane.HSCode, lane.OriginCountry, lane.DestinationCountry)
			if err != nil {
				slog.WarnContext(ctx, "refresh rates: fetch failed",
					"hs_code", lane.HSCode, "origin", lane.OriginCountry,
					"destination", lane.DestinationCountry, "error", err)
				failed++
				continue
			}
			if quote == nil {
				// Tariff API has no data anymore; keep serving the cached rate.
				continue
			}
			if _, err := s.UpsertDutyRate(ctx, store.DutyRate{
				HSCode:             quote.HSCode,
				OriginCountry:      quote.OriginCountry,
				DestinationCountry: quote.DestinationCountry,
				AdValoremRate:      quote.AdValoremRate,
				SpecificRate:       quote.SpecificRate,
				VATRate:            quote.VATRate,
				PreferentialRate:   quote.PreferentialRate,
				TradeAgreement:     quote.TradeAgreement,
				Source:             "tariff_api",
			}); err != nil {
				return fmt.Errorf("refresh rates: upsert: %w", err)
			}
			refreshed++
		}
		slog.InfoContext(ctx, "duty rate refresh finished",
			"refreshed", refreshed, "failed", failed, "stale", len(stale))

		if refreshed == 0 && failed > 0 {
			return fmt.Errorf("refresh rates: all %d fetches failed", failed)
		}
		return nil
	}
}
