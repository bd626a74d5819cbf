package gateway

import (
	"context"
	"errors"
	"strings"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeGateway is a Client backed by Stripe. Payment methods belong to one
// Stripe customer; charges are PaymentIntents confirmed on creation.
type StripeGateway struct {
	api        *client.API
	customerID string
}

func NewStripeGateway(api *client.API, customerID string) *StripeGateway {
	return &StripeGateway{api: api, customerID: customerID}
}

// NewStripeAPI returns a Stripe client that never retries on its own; a
// retried charge is always an explicit decision of the caller.
func NewStripeAPI(secretKey string, cfg *stripe.BackendConfig) *client.API {
	if cfg == nil {
		cfg = &stripe.BackendConfig{}
	}
	cfg.MaxNetworkRetries = stripe.Int64(0)
	b := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return client.New(secretKey, &stripe.Backends{API: b, Connect: b, Uploads: b})
}

func (g *StripeGateway) ListPaymentMethods(ctx context.Context) ([]d.PaymentMethod, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := g.api.Customers.Get(g.customerID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	defaultID := ""
	if cust.InvoiceSettings != nil && cust.InvoiceSettings.DefaultPaymentMethod != nil {
		defaultID = cust.InvoiceSettings.DefaultPaymentMethod.ID
	}

	listParams := &stripe.PaymentMethodListParams{
		Customer: stripe.String(g.customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	listParams.Context = ctx
	iter := g.api.PaymentMethods.List(listParams)

	methods := make([]d.PaymentMethod, 0)
	for iter.Next() {
		pm := fromStripePaymentMethod(iter.PaymentMethod())
		pm.IsDefault = pm.ID == defaultID
		methods = append(methods, pm)
	}
	if err := iter.Err(); err != nil {
		return nil, mapStripeError(err)
	}
	return methods, nil
}

func (g *StripeGateway) CreatePaymentMethod(ctx context.Context, token string, billing *d.Address, setAsDefault bool) (*d.PaymentMethod, error) {
	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{Token: stripe.String(token)},
	}
	if billing != nil {
		params.BillingDetails = &stripe.PaymentMethodBillingDetailsParams{
			Name:    stripe.String(billing.Name),
			Address: toStripeAddress(billing),
		}
	}
	params.Context = ctx
	created, err := g.api.PaymentMethods.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	attach := &stripe.PaymentMethodAttachParams{Customer: stripe.String(g.customerID)}
	attach.Context = ctx
	attached, err := g.api.PaymentMethods.Attach(created.ID, attach)
	if err != nil {
		return nil, mapStripeError(err)
	}

	if setAsDefault {
		upd := &stripe.CustomerParams{
			InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
				DefaultPaymentMethod: stripe.String(attached.ID),
			},
		}
		upd.Context = ctx
		if _, err := g.api.Customers.Update(g.customerID, upd); err != nil {
			return nil, mapStripeError(err)
		}
	}

	pm := fromStripePaymentMethod(attached)
	pm.IsDefault = setAsDefault
	return &pm, nil
}

func (g *StripeGateway) Authorize(ctx context.Context, req *AuthorizeRequest) (*Authorization, error) {
	if err := req.Validate(); err != nil {
		return nil, &d.PaymentError{Kind: d.PaymentErrorInvalidRequest, Message: err.Error(), Err: err}
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(int64(req.Amount)),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		Customer:           stripe.String(g.customerID),
		PaymentMethod:      stripe.String(req.PaymentMethodID),
		PaymentMethodTypes: stripe.StringSlice([]string{string(stripe.PaymentMethodTypeCard)}),
		Confirm:            stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.OrderID != "" {
		params.AddMetadata("order_id", req.OrderID)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	status := fromStripeIntentStatus(pi.Status)
	if status == PaymentStatusFailed {
		return nil, intentFailure(pi)
	}
	auth := &Authorization{PaymentID: pi.ID, Status: status}
	if status == PaymentStatusRequiresAction {
		auth.ClientSecret = pi.ClientSecret
	}
	return auth, nil
}

// ConfirmAuthentication checks that the customer completed the challenge for
// clientSecret. The challenge itself runs in the customer's browser; here the
// intent must have left requires_action.
func (g *StripeGateway) ConfirmAuthentication(ctx context.Context, clientSecret string) error {
	id, err := paymentIntentID(clientSecret)
	if err != nil {
		return err
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return mapStripeError(err)
	}
	if pi.ClientSecret != "" && pi.ClientSecret != clientSecret {
		return &d.PaymentError{Kind: d.PaymentErrorInvalidRequest, Message: "client secret does not match the payment"}
	}

	switch fromStripeIntentStatus(pi.Status) {
	case PaymentStatusSucceeded, PaymentStatusProcessing:
		return nil
	case PaymentStatusRequiresAction:
		return &d.PaymentError{Kind: d.PaymentErrorAuthentication, Code: "authentication_incomplete", Message: "payment authentication was not completed"}
	default:
		err := intentFailure(pi)
		err.Kind = d.PaymentErrorAuthentication
		return err
	}
}

func (g *StripeGateway) PaymentStatus(ctx context.Context, paymentID string) (PaymentStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return "", mapStripeError(err)
	}
	return fromStripeIntentStatus(pi.Status), nil
}

// paymentIntentID extracts the intent id from a client secret of the form
// pi_xxx_secret_yyy.
func paymentIntentID(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || id == "" {
		return "", &d.PaymentError{Kind: d.PaymentErrorInvalidRequest, Message: "malformed client secret"}
	}
	return id, nil
}

func fromStripeIntentStatus(s stripe.PaymentIntentStatus) PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusRequiresCapture:
		return PaymentStatusSucceeded
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		return PaymentStatusRequiresAction
	case stripe.PaymentIntentStatusProcessing:
		return PaymentStatusProcessing
	default:
		return PaymentStatusFailed
	}
}

func intentFailure(pi *stripe.PaymentIntent) *d.PaymentError {
	pe := &d.PaymentError{Kind: d.PaymentErrorDeclined, Message: "payment was not authorized"}
	if se := pi.LastPaymentError; se != nil {
		pe.Code = stripeCode(se)
		pe.Message = messageOr(se.Msg, pe.Message)
	}
	return pe
}

// mapStripeError converts an SDK error into a PaymentError. Anything that is
// not a Stripe API error never reached Stripe, or its outcome is unknown.
func mapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return d.NewTransportError(err)
	}

	pe := &d.PaymentError{Code: stripeCode(se), Message: se.Msg, Err: err}
	switch {
	case se.HTTPStatusCode >= 500 || se.Type == stripe.ErrorTypeAPI:
		pe.Kind = d.PaymentErrorTransport
	case se.Type == stripe.ErrorTypeCard:
		pe.Kind = cardErrorKind(pe.Code)
	case se.Type == stripe.ErrorTypeIdempotency:
		pe.Kind = d.PaymentErrorInvalidRequest
	case se.HTTPStatusCode == 429:
		pe.Kind = d.PaymentErrorTransport
	default:
		pe.Kind = d.PaymentErrorInvalidRequest
	}
	return pe
}

func cardErrorKind(code string) d.PaymentErrorKind {
	switch code {
	case "incorrect_number", "invalid_number", "invalid_expiry_month", "invalid_expiry_year",
		"invalid_cvc", "incorrect_cvc", "expired_card", "incorrect_zip":
		return d.PaymentErrorInvalidInstrument
	case "authentication_required", "payment_intent_authentication_failure":
		return d.PaymentErrorAuthentication
	default:
		return d.PaymentErrorDeclined
	}
}

// stripeCode prefers the issuer's decline code over the generic error code.
func stripeCode(se *stripe.Error) string {
	if se.DeclineCode != "" && se.DeclineCode != "generic_decline" {
		return string(se.DeclineCode)
	}
	return string(se.Code)
}

func fromStripePaymentMethod(pm *stripe.PaymentMethod) d.PaymentMethod {
	out := d.PaymentMethod{ID: pm.ID}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
		out.ExpMonth = int(pm.Card.ExpMonth)
		out.ExpYear = int(pm.Card.ExpYear)
	}
	if bd := pm.BillingDetails; bd != nil && bd.Address != nil && bd.Address.Line1 != "" {
		out.BillingAddress = &d.Address{
			Name:       bd.Name,
			Line1:      bd.Address.Line1,
			Line2:      bd.Address.Line2,
			City:       bd.Address.City,
			County:     bd.Address.State,
			PostalCode: bd.Address.PostalCode,
			Country:    bd.Address.Country,
		}
	}
	return out
}

func toStripeAddress(a *d.Address) *stripe.AddressParams {
	return &stripe.AddressParams{
		Line1:      stripe.String(a.Line1),
		Line2:      stripe.String(a.Line2),
		City:       stripe.String(a.City),
		State:      stripe.String(a.County),
		PostalCode: stripe.String(a.PostalCode),
		Country:    stripe.String(a.Country),
	}
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

var _ Client = (*StripeGateway)(nil)
