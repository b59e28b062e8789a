// ABOUTME: Classification operations: classify-now, history, manual override,
// ABOUTME: and the landed cost endpoint built on the duty rate cache.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/apperror"
	"github.com/Milo6x/dutyleak/internal/authz"
	"github.com/Milo6x/dutyleak/internal/classify"
	"github.com/Milo6x/dutyleak/internal/customs"
	"github.com/Milo6x/dutyleak/internal/store"
)

// checkPermission is requirePermission for huma handlers, which hold a bare
// context rather than the request.
func (srv *Server) checkPermission(ctx context.Context, perm authz.Permission) error {
	role, ok := ctx.Value(ctxRole).(authz.Role)
	if !ok {
		return appErr(apperror.Unauthenticated(""))
	}
	if !srv.permTable.HasPermission(role, perm) {
		return appErr(apperror.Forbidden(""))
	}
	return nil
}

// classificationBody is the JSON shape of a classification in API responses.
type classificationBody struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	HSCode      string  `json:"hs_code"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
	Model       *string `json:"model,omitempty"`
	Rationale   *string `json:"rationale,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func classificationToBody(c store.Classification) classificationBody {
	return classificationBody{
		ID:          c.ID.String(),
		ProductID:   c.ProductID.String(),
		HSCode:      c.HSCode,
		Description: c.Description,
		Confidence:  c.Confidence,
		Source:      c.Source,
		Model:       c.Model,
		Rationale:   c.Rationale,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

func isSixDigitHS(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ── Classify now ──────────────────────────────────────────────────────────────

type classifyProductInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	ID          string `path:"id"           format:"uuid"`
}

type classificationOutput struct {
	Body classificationBody
}

// classifyProductHandler runs the classifier synchronously for one product and
// activates the resulting classification.
func (srv *Server) classifyProductHandler(ctx context.Context, input *classifyProductInput) (*classificationOutput, error) {
	if err := srv.checkPermission(ctx, authz.PermClassifyRun); err != nil {
		return nil, err
	}
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, appErr(apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
	}
	product, err := srv.store.GetProduct(ctx, workspaceID, id)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.classifications", "classify"))
	}
	if product == nil {
		return nil, appErr(apperror.NotFound("product"))
	}

	description := ""
	if product.Description != nil {
		description = *product.Description
	}
	result, err := srv.classifier.Classify(ctx, product.Title, description, product.OriginCountry)
	if err != nil {
		return nil, huma.Error502BadGateway("classification provider unavailable", err)
	}

	model := result.Model
	rationale := result.Rationale
	cls, err := srv.store.CreateClassification(ctx, workspaceID, store.CreateClassificationParams{
		ProductID:   product.ID,
		HSCode:      result.HSCode,
		Description: result.Description,
		Confidence:  result.Confidence,
		Source:      string(result.Source),
		Model:       &model,
		Rationale:   &rationale,
	}, true)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.classifications", "classify"))
	}
	return &classificationOutput{Body: classificationToBody(*cls)}, nil
}

// ── History ───────────────────────────────────────────────────────────────────

type listClassificationsInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	ID          string `path:"id"           format:"uuid"`
}

type listClassificationsOutput struct {
	Body struct {
		Classifications []classificationBody `json:"classifications"`
		ActiveID        *string              `json:"active_id,omitempty"`
	}
}

func (srv *Server) listClassificationsHandler(ctx context.Context, input *listClassificationsInput) (*listClassificationsOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, appErr(apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
	}
	product, err := srv.store.GetProduct(ctx, workspaceID, id)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.classifications", "history"))
	}
	if product == nil {
		return nil, appErr(apperror.NotFound("product"))
	}

	history, err := srv.store.ListProductClassifications(ctx, workspaceID, product.ID)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.classifications", "history"))
	}

	out := &listClassificationsOutput{}
	out.Body.Classifications = make([]classificationBody, 0, len(history))
	for _, c := range history {
		out.Body.Classifications = append(out.Body.Classifications, classificationToBody(c))
	}
	if product.ActiveClassificationID != nil {
		s := product.ActiveClassificationID.String()
		out.Body.ActiveID = &s
	}
	return out, nil
}

// ── Manual override ───────────────────────────────────────────────────────────

type overrideClassificationInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	ID          string `path:"id"           format:"uuid"`
	Body        struct {
		HSCode      string `json:"hs_code"     minLength:"6" maxLength:"6" doc:"6-digit HS code"`
		Description string `json:"description" minLength:"1" maxLength:"500"`
	}
}

// overrideClassificationHandler records a manual classification and activates
// it. Manual entries carry confidence 1.0 and the acting user's ID.
func (srv *Server) overrideClassificationHandler(ctx context.Context, input *overrideClassificationInput) (*classificationOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)
	userID, _ := ctx.Value(ctxUserID).(uuid.UUID)

	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, appErr(apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
	}
	hsCode := strings.TrimSpace(input.Body.HSCode)
	if !isSixDigitHS(hsCode) {
		return nil, appErr(apperror.Validation([]apperror.FieldError{
			{Path: "body.hs_code", Message: "must be exactly 6 digits"},
		}))
	}
	product, err := srv.store.GetProduct(ctx, workspaceID, id)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.classifications", "override"))
	}
	if product == nil {
		return nil, appErr(apperror.NotFound("product"))
	}

	cls, err := srv.store.CreateClassification(ctx, workspaceID, store.CreateClassificationParams{
		ProductID:   product.ID,
		HSCode:      hsCode,
		Description: strings.TrimSpace(input.Body.Description),
		Confidence:  1.0,
		Source:      string(classify.SourceManual),
		CreatedBy:   &userID,
	}, true)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.classifications", "override"))
	}
	return &classificationOutput{Body: classificationToBody(*cls)}, nil
}

// ── Landed cost ───────────────────────────────────────────────────────────────

type landedCostInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	ID          string `path:"id"           format:"uuid"`
	Body        struct {
		Quantity      int     `json:"quantity"       minimum:"1"`
		FreightCost   float64 `json:"freight_cost"   minimum:"0"`
		InsuranceCost float64 `json:"insurance_cost" minimum:"0"`
		Incoterm      string  `json:"incoterm"  enum:"FOB,CIF"`
		Transport     string  `json:"transport" enum:"sea,air"`
	}
}

type landedCostOutput struct {
	Body struct {
		HSCode         string             `json:"hs_code"`
		AdValoremRate  float64            `json:"ad_valorem_rate"`
		TradeAgreement *string            `json:"trade_agreement,omitempty"`
		RateFetchedAt  string             `json:"rate_fetched_at"`
		Breakdown      customs.LandedCost `json:"breakdown"`
	}
}

// landedCostHandler computes the landed cost for a product's active
// classification using the cached (or freshly fetched) lane rate. The
// preferential rate is applied when a trade agreement covers the lane.
func (srv *Server) landedCostHandler(ctx context.Context, input *landedCostInput) (*landedCostOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, appErr(apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
	}
	product, err := srv.store.GetProduct(ctx, workspaceID, id)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.classifications", "landed_cost"))
	}
	if product == nil {
		return nil, appErr(apperror.NotFound("product"))
	}
	if product.ActiveClassificationID == nil {
		return nil, appErr(apperror.Conflict("product has no active classification"))
	}
	cls, err := srv.store.GetClassification(ctx, workspaceID, *product.ActiveClassificationID)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.classifications", "landed_cost"))
	}
	if cls == nil {
		// active_classification_id points at a row that no longer exists.
		return nil, appErr(apperror.Conflict("product has no active classification"))
	}

	rate, err := srv.recommender.LaneRate(ctx, cls.HSCode, product.OriginCountry, product.DestinationCountry)
	if err != nil {
		return nil, huma.Error502BadGateway("tariff data unavailable", err)
	}
	if rate == nil {
		return nil, appErr(apperror.NotFound("tariff data for this HS code and lane"))
	}

	effectiveRate := rate.AdValoremRate
	if rate.PreferentialRate != nil && *rate.PreferentialRate < effectiveRate {
		effectiveRate = *rate.PreferentialRate
	}
	var specific float64
	if rate.SpecificRate != nil {
		specific = *rate.SpecificRate
	}

	breakdown := customs.Calculate(customs.LandedCostInput{
		UnitPrice:           product.DeclaredValue,
		Quantity:            input.Body.Quantity,
		FreightCost:         input.Body.FreightCost,
		InsuranceCost:       input.Body.InsuranceCost,
		Incoterm:            customs.Incoterm(input.Body.Incoterm),
		Transport:           customs.TransportMode(input.Body.Transport),
		DestinationCountry:  product.DestinationCountry,
		AdValoremRate:       effectiveRate,
		SpecificRatePerUnit: specific,
		VATRate:             rate.VATRate,
	})

	out := &landedCostOutput{}
	out.Body.HSCode = cls.HSCode
	out.Body.AdValoremRate = effectiveRate
	out.Body.TradeAgreement = rate.TradeAgreement
	out.Body.RateFetchedAt = rate.FetchedAt.Format(time.RFC3339)
	out.Body.Breakdown = breakdown
	return out, nil
}

// ── Route registration ────────────────────────────────────────────────────────

func registerClassificationRoutes(api huma.API, srv *Server) {
	huma.Register(api, huma.Operation{
		OperationID:   "classify-product",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/products/{id}/classify",
		Tags:          []string{"classifications"},
		Summary:       "Classify a product now and activate the result",
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{srv.wsGuard(authz.RoleMember)},
	}, srv.classifyProductHandler)

	huma.Register(api, huma.Operation{
		OperationID: "list-classifications",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/products/{id}/classifications",
		Tags:        []string{"classifications"},
		Summary:     "List a product's classification history",
		Middlewares: huma.Middlewares{srv.wsGuard(authz.RoleViewer)},
	}, srv.listClassificationsHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "override-classification",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/products/{id}/classifications",
		Tags:          []string{"classifications"},
		Summary:       "Manually set a product's HS code",
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{srv.wsGuard(authz.RoleMember)},
	}, srv.overrideClassificationHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "landed-cost",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/products/{id}/landed-cost",
		Tags:          []string{"landed-cost"},
		Summary:       "Compute the landed cost for a shipment of this product",
		DefaultStatus: http.StatusOK,
		Middlewares:   huma.Middlewares{srv.wsGuard(authz.RoleViewer)},
	}, srv.landedCostHandler)
}
