// ABOUTME: Recommendation operations: list, refresh, accept, dismiss.
// ABOUTME: Dismissed recommendations stay dismissed across engine refreshes.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/apperror"
	"github.com/Milo6x/dutyleak/internal/authz"
	"github.com/Milo6x/dutyleak/internal/store"
)

// recommendationBody is the JSON shape of a recommendation in API responses.
type recommendationBody struct {
	ID              string  `json:"id"`
	ProductID       string  `json:"product_id"`
	Kind            string  `json:"kind"`
	CurrentHSCode   string  `json:"current_hs_code"`
	SuggestedHSCode *string `json:"suggested_hs_code,omitempty"`
	TradeAgreement  *string `json:"trade_agreement,omitempty"`
	CurrentDuty     float64 `json:"current_duty"`
	ProjectedDuty   float64 `json:"projected_duty"`
	SavingPerUnit   float64 `json:"saving_per_unit"`
	Rationale       string  `json:"rationale"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func recommendationToBody(r store.Recommendation) recommendationBody {
	return recommendationBody{
		ID:              r.ID.String(),
		ProductID:       r.ProductID.String(),
		Kind:            r.Kind,
		CurrentHSCode:   r.CurrentHSCode,
		SuggestedHSCode: r.SuggestedHSCode,
		TradeAgreement:  r.TradeAgreement,
		CurrentDuty:     r.CurrentDuty,
		ProjectedDuty:   r.ProjectedDuty,
		SavingPerUnit:   r.SavingPerUnit,
		Rationale:       r.Rationale,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
}

// ── List ──────────────────────────────────────────────────────────────────────

type listRecommendationsInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	Status      string `query:"status"     enum:"pending,accepted,dismissed" required:"false"`
	ProductID   string `query:"product_id" format:"uuid" required:"false"`
	Limit       int    `query:"limit"      minimum:"1" maximum:"200" default:"50"`
}

type listRecommendationsOutput struct {
	Body struct {
		Recommendations []recommendationBody `json:"recommendations"`
	}
}

func (srv *Server) listRecommendationsHandler(ctx context.Context, input *listRecommendationsInput) (*listRecommendationsOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	var productID *uuid.UUID
	if input.ProductID != "" {
		id, err := uuid.Parse(input.ProductID)
		if err != nil {
			return nil, appErr(apperror.Validation([]apperror.FieldError{
				{Path: "query.product_id", Message: "must be a valid UUID"},
			}))
		}
		productID = &id
	}

	recs, err := srv.store.ListRecommendations(ctx, workspaceID, input.Status, productID, input.Limit)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.recommendations", "list"))
	}

	out := &listRecommendationsOutput{}
	out.Body.Recommendations = make([]recommendationBody, 0, len(recs))
	for _, r := range recs {
		out.Body.Recommendations = append(out.Body.Recommendations, recommendationToBody(r))
	}
	return out, nil
}

// ── Refresh ───────────────────────────────────────────────────────────────────

type refreshRecommendationsInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	ID          string `path:"id"           format:"uuid"`
}

// refreshRecommendationsHandler recomputes recommendations for one product
// synchronously. A product without an active classification yields none.
func (srv *Server) refreshRecommendationsHandler(ctx context.Context, input *refreshRecommendationsInput) (*listRecommendationsOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, appErr(apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
	}
	product, err := srv.store.GetProduct(ctx, workspaceID, id)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.recommendations", "refresh"))
	}
	if product == nil {
		return nil, appErr(apperror.NotFound("product"))
	}

	recs, err := srv.recommender.RefreshProduct(ctx, workspaceID, product)
	if err != nil {
		return nil, huma.Error502BadGateway("recommendation refresh failed", err)
	}

	out := &listRecommendationsOutput{}
	out.Body.Recommendations = make([]recommendationBody, 0, len(recs))
	for _, r := range recs {
		out.Body.Recommendations = append(out.Body.Recommendations, recommendationToBody(r))
	}
	return out, nil
}

// ── Accept / dismiss ──────────────────────────────────────────────────────────

type recommendationStatusInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	ID          string `path:"id"           format:"uuid"`
}

type recommendationOutput struct {
	Body recommendationBody
}

func (srv *Server) setRecommendationStatus(ctx context.Context, rawID, status string) (*recommendationOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, appErr(apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
	}
	rec, err := srv.store.UpdateRecommendationStatus(ctx, workspaceID, id, status)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.recommendations", status))
	}
	if rec == nil {
		return nil, appErr(apperror.NotFound("recommendation"))
	}
	return &recommendationOutput{Body: recommendationToBody(*rec)}, nil
}

func (srv *Server) acceptRecommendationHandler(ctx context.Context, input *recommendationStatusInput) (*recommendationOutput, error) {
	return srv.setRecommendationStatus(ctx, input.ID, "accepted")
}

func (srv *Server) dismissRecommendationHandler(ctx context.Context, input *recommendationStatusInput) (*recommendationOutput, error) {
	return srv.setRecommendationStatus(ctx, input.ID, "dismissed")
}

// ── Route registration ────────────────────────────────────────────────────────

func registerRecommendationRoutes(api huma.API, srv *Server) {
	huma.Register(api, huma.Operation{
		OperationID: "list-recommendations",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/recommendations",
		Tags:        []string{"recommendations"},
		Summary:     "List duty-saving recommendations",
		Middlewares: huma.Middlewares{srv.wsGuard(authz.RoleViewer)},
	}, srv.listRecommendationsHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "refresh-recommendations",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/products/{id}/recommendations/refresh",
		Tags:          []string{"recommendations"},
		Summary:       "Recompute recommendations for a product",
		DefaultStatus: http.StatusOK,
		Middlewares:   huma.Middlewares{srv.wsGuard(authz.RoleMember)},
	}, srv.refreshRecommendationsHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "accept-recommendation",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/recommendations/{id}/accept",
		Tags:          []string{"recommendations"},
		Summary:       "Accept a recommendation",
		DefaultStatus: http.StatusOK,
		Middlewares:   huma.Middlewares{srv.wsGuard(authz.RoleMember)},
	}, srv.acceptRecommendationHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "dismiss-recommendation",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/recommendations/{id}/dismiss",
		Tags:          []string{"recommendations"},
		Summary:       "Dismiss a recommendation (it will not be regenerated)",
		DefaultStatus: http.StatusOK,
		Middlewares:   huma.Middlewares{srv.wsGuard(authz.RoleMember)},
	}, srv.dismissRecommendationHandler)
}
