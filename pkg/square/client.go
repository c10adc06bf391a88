// Package square charges cards at the till through the Square Payments API.
package square

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = errors.New(`square environment must be "sandbox" or "production"`)
	errLoggerRequired      = errors.New("square logger is required")
)

var environments = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

// approved lists the payment statuses that mean the till may hand over goods.
var approved = map[string]bool{"COMPLETED": true, "APPROVED": true}

type Client struct {
	sdk         *sqclient.Client
	environment string
	locationID  string
	logg        *logger.Logger
}

// NewClient validates cfg and builds an SDK client for its environment.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env := cfg.Environment()
	baseURL, ok := environments[env]
	if !ok {
		return nil, errInvalidSquareEnv
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}
	location := strings.TrimSpace(cfg.LocationID)
	if location == "" {
		return nil, errLocationRequired
	}

	c := &Client{
		sdk:         sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token)),
		environment: env,
		locationID:  location,
		logg:        logg,
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"square_env": env, "location_id": location}), "square client ready")
	return c, nil
}

func (c *Client) Environment() string { return c.environment }

func (c *Client) LocationID() string { return c.locationID }

// idempotencyKey returns provided, or a fresh prefixed key when it is blank.
func idempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return prefix + "-" + uuid.NewString()
}

// Charge is the outcome of an approved card payment.
type Charge struct {
	PaymentID string
	Status    string
}

// ChargeCard takes payment for a sale. Anything Square did not approve is
// returned as CodePayment so the till can ask for another tender.
func (c *Client) ChargeCard(ctx context.Context, params PaymentCreateParams) (*Charge, error) {
	switch {
	case strings.TrimSpace(params.SourceID) == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card source id is required")
	case params.Amount <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	case c == nil || c.sdk == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
	}

	payment, err := c.CreatePayment(ctx, params)
	if err != nil {
		return nil, err
	}
	status := strings.ToUpper(deref(payment.GetStatus()))
	if !approved[status] {
		return nil, pkgerrors.Newf(pkgerrors.CodePayment, "card payment %s", strings.ToLower(status)).
			WithDetails(map[string]string{"paymentId": deref(payment.GetID())})
	}
	return &Charge{PaymentID: deref(payment.GetID()), Status: status}, nil
}

// CreatePayment sends params as-is and returns Square's payment record.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	key := idempotencyKey("payment", params.IdempotencyKey)
	ctx = c.logg.WithFields(ctx, redacted(map[string]any{
		"square_op":       "create_payment",
		"location_id":     c.locationID,
		"reference_id":    params.ReferenceID,
		"amount":          params.Amount,
		"source_id":       params.SourceID,
		"idempotency_key": key,
	}))
	c.logg.Debug(ctx, "square request")

	resp, err := c.sdk.Payments.Create(ctx, params.request(c.locationID, key))
	if err != nil {
		mapped := translate(err, "create payment")
		c.logg.Error(ctx, "square create payment failed", mapped)
		return nil, mapped
	}
	payment := resp.GetPayment()
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment")
	}
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"payment_id": deref(payment.GetID()),
		"status":     deref(payment.GetStatus()),
	}), "square payment created")
	return payment, nil
}

var sensitive = []string{"card", "source", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"}

// redacted masks values whose key names card or contact data.
func redacted(fields map[string]any) map[string]any {
	for k := range fields {
		lower := strings.ToLower(k)
		for _, s := range sensitive {
			if strings.Contains(lower, s) {
				fields[k] = "[REDACTED]"
				break
			}
		}
	}
	return fields
}
