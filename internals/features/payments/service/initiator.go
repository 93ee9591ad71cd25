package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	housingModel "rentflow_backend/internals/features/housing/model"
	housingService "rentflow_backend/internals/features/housing/service"
	"rentflow_backend/internals/features/payments/dto"
	model "rentflow_backend/internals/features/payments/model"
	"rentflow_backend/internals/features/payments/mpesa"
	helper "rentflow_backend/internals/helpers"
	"rentflow_backend/internals/metrics"
)

// User-safe provider messages. Raw provider text stays in the log.
const (
	MsgProviderAuth      = "payment service is temporarily unavailable"
	MsgProviderRejected  = "payment request was rejected, please try again"
	MsgProviderTransport = "could not reach the payment service"
	MsgNotRecorded       = "payment was sent but could not be recorded, verify manually"
)

// Provider is the push-payment gateway.
type Provider interface {
	Push(ctx context.Context, in mpesa.PushRequest) (mpesa.PushResponse, error)
	Query(ctx context.Context, checkoutID string) (mpesa.QueryResult, error)
}

type Initiator struct {
	db       *gorm.DB
	provider Provider
	guard    *MonthlyGuard
	gaps     *GapRecorder
	log      *zap.Logger
}

func NewInitiator(db *gorm.DB, provider Provider, guard *MonthlyGuard, gaps *GapRecorder, log *zap.Logger) *Initiator {
	return &Initiator{db: db, provider: provider, guard: guard, gaps: gaps, log: log.Named("initiator")}
}

// checked is a request that passed the local checks.
type checked struct {
	apartmentID uuid.UUID
	houseID     uuid.UUID
	phone       string
	amount      decimal.Decimal
	charges     []housingModel.ChargeLine
	kind        model.PaymentKind
	month       *int
	year        *int
}

/* =========================================================
   Initiate
   auth -> fields -> phone -> period/deposit -> guard -> unit -> push -> persist
========================================================= */

func (s *Initiator) Initiate(ctx context.Context, who helper.Identity, req dto.InitiateRequest) (dto.InitiateResponse, error) {
	if who.UserID == uuid.Nil {
		return dto.InitiateResponse{}, fiber.NewError(fiber.StatusUnauthorized, "not logged in")
	}

	in, err := s.check(req)
	if err != nil {
		return dto.InitiateResponse{}, err
	}

	if in.kind == model.PaymentKindMonthly {
		paid, err := s.guard.IsPaid(ctx, in.houseID, who.UserID, *in.month, *in.year)
		if err != nil {
			return dto.InitiateResponse{}, err
		}
		if paid {
			return dto.InitiateResponse{}, fiber.NewError(fiber.StatusConflict, "rent for this period is already paid")
		}
	}

	unit, err := housingService.LoadUnit(ctx, s.db, in.houseID, &in.apartmentID, false)
	if err != nil {
		return dto.InitiateResponse{}, err
	}
	if err := s.checkUnit(who, in, unit); err != nil {
		return dto.InitiateResponse{}, err
	}

	target := strings.TrimSpace(req.Target)
	if target == "" {
		target = unit.Apartment.ApartmentPaybill
	} else if target != unit.Apartment.ApartmentPaybill {
		return dto.InitiateResponse{}, helper.FieldError("target", "does not match the apartment's payment account")
	}

	accountRef := unit.Apartment.ApartmentAccountRef
	if accountRef == "" {
		accountRef = unit.House.HouseDoor
	}
	push := mpesa.PushRequest{
		Amount:           in.amount,
		Phone:            in.phone,
		Target:           target,
		AccountReference: accountRef,
		Description:      describeKind(in.kind),
	}

	resp, err := s.provider.Push(ctx, push)
	if err != nil {
		return dto.InitiateResponse{}, providerError(err)
	}

	p := model.Payment{
		PaymentMerchantRequestID: resp.MerchantRequestID,
		PaymentCheckoutRequestID: resp.CheckoutRequestID,
		PaymentTenantID:          who.UserID,
		PaymentHouseID:           in.houseID,
		PaymentApartmentID:       in.apartmentID,
		PaymentAmount:            decimal.NewFromInt(push.PushAmount()),
		PaymentPhone:             in.phone,
		PaymentTarget:            target,
		PaymentCharges:           datatypes.JSONSlice[housingModel.ChargeLine](in.charges),
		PaymentKind:              in.kind,
		PaymentPeriodMonth:       in.month,
		PaymentPeriodYear:        in.year,
		PaymentStatus:            model.PaymentStatusPending,
	}
	// the push went through; a caller hanging up must not lose the row
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(&p).Error; err != nil {
		s.gaps.Record(ctx, Gap{
			Reason:            model.GapPersistFailed,
			CheckoutRequestID: resp.CheckoutRequestID,
			MerchantRequestID: resp.MerchantRequestID,
			TenantID:          &who.UserID,
			Detail:            fmt.Sprintf("push accepted for %d from %s but insert failed: %v", push.PushAmount(), in.phone, err),
		})
		return dto.InitiateResponse{}, fiber.NewError(fiber.StatusInternalServerError, MsgNotRecorded)
	}

	metrics.RecordPaymentInitiated(string(in.kind))
	s.log.Info("payment pending",
		zap.String("checkout_request_id", p.PaymentCheckoutRequestID),
		zap.String("kind", string(p.PaymentKind)),
		zap.String("tenant_id", who.UserID.String()),
		zap.String("house_id", in.houseID.String()))

	return dto.InitiateResponse{
		PaymentID:         p.PaymentID.String(),
		MerchantRequestID: p.PaymentMerchantRequestID,
		CheckoutRequestID: p.PaymentCheckoutRequestID,
		Status:            string(p.PaymentStatus),
		Amount:            p.PaymentAmount,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

func (s *Initiator) check(req dto.InitiateRequest) (checked, error) {
	if err := helper.ValidateStruct(req); err != nil {
		return checked{}, err
	}
	if !req.Amount.IsPositive() {
		return checked{}, helper.FieldError("amount", "must be greater than 0")
	}
	for i, l := range req.Charges {
		if l.Amount.IsNegative() {
			return checked{}, helper.FieldError(fmt.Sprintf("charges[%d].amount", i), "must not be negative")
		}
	}

	phone, err := helper.NormalizePhone(req.Phone)
	if err != nil {
		return checked{}, helper.FieldError("phone", "must be a valid mobile number, e.g. 0712345678")
	}

	in := checked{
		apartmentID: uuid.MustParse(req.ApartmentID),
		houseID:     uuid.MustParse(req.HouseID),
		phone:       phone,
		amount:      req.Amount,
		charges:     req.Charges,
		kind:        model.PaymentKind(req.Kind),
	}

	switch in.kind {
	case model.PaymentKindMonthly:
		if req.Month == nil || req.Year == nil {
			return checked{}, helper.FieldError("month", "month and year are required for monthly payments")
		}
		for _, l := range req.Charges {
			if housingService.IsDepositLine(l) {
				return checked{}, helper.FieldError("charges", "monthly payments cannot include a deposit")
			}
		}
		in.month, in.year = req.Month, req.Year
	case model.PaymentKindJoining:
		if req.Month != nil || req.Year != nil {
			return checked{}, helper.FieldError("month", "joining payments do not take a period")
		}
	}
	return in, nil
}

func (s *Initiator) checkUnit(who helper.Identity, in checked, unit housingService.Unit) error {
	expected := unit.Charges()

	if in.kind == model.PaymentKindJoining {
		if !unit.House.IsVacant() {
			return fiber.NewError(fiber.StatusConflict, "house is no longer vacant")
		}
		if err := expected.Matches(in.charges, in.amount); err != nil {
			return fiber.NewError(fiber.StatusConflict, "charges do not match the current quote: "+err.Error())
		}
		return nil
	}

	if unit.House.HouseTenantID == nil || *unit.House.HouseTenantID != who.UserID {
		return fiber.NewError(fiber.StatusForbidden, "only the current tenant can pay rent for this house")
	}
	want := make(map[string]decimal.Decimal, len(expected.Lines))
	for _, l := range expected.Lines {
		want[l.ID] = l.Amount
	}
	for _, l := range in.charges {
		amt, ok := want[l.ID]
		if !ok || amt.Sub(l.Amount).Abs().GreaterThan(housingService.ChargeTolerance) {
			return fiber.NewError(fiber.StatusConflict, "charge "+l.ID+" does not match the current schedule")
		}
	}
	if housingService.SumLines(in.charges).Sub(in.amount).Abs().GreaterThan(housingService.ChargeTolerance) {
		return helper.FieldError("amount", "must equal the sum of the selected charges")
	}
	return nil
}

func describeKind(k model.PaymentKind) string {
	if k == model.PaymentKindJoining {
		return "Joining fee"
	}
	return "Monthly rent"
}

// providerError maps gateway failures to the user-safe set.
func providerError(err error) error {
	var rej *mpesa.RejectedError
	switch {
	case errors.Is(err, mpesa.ErrAuth):
		return fiber.NewError(fiber.StatusServiceUnavailable, MsgProviderAuth)
	case errors.As(err, &rej):
		return fiber.NewError(fiber.StatusBadGateway, MsgProviderRejected)
	default:
		return fiber.NewError(fiber.StatusServiceUnavailable, MsgProviderTransport)
	}
}
