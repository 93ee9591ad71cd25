package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentflow_backend/internals/constants"
	housingModel "rentflow_backend/internals/features/housing/model"
	housingService "rentflow_backend/internals/features/housing/service"
	"rentflow_backend/internals/features/notifications"
	paymentModel "rentflow_backend/internals/features/payments/model"
	paymentService "rentflow_backend/internals/features/payments/service"
	"rentflow_backend/internals/features/tenancy/dto"
	userModel "rentflow_backend/internals/features/users/model"
	helper "rentflow_backend/internals/helpers"
	"rentflow_backend/internals/metrics"
)

// Onboarder binds a tenant to a vacant house after a completed joining payment.
// Both sides (house and tenant records) commit in one transaction or not at all.
type Onboarder struct {
	db   *gorm.DB
	gaps *paymentService.GapRecorder
	sink notifications.Sink
	log  *zap.Logger
	now  func() time.Time
}

func NewOnboarder(db *gorm.DB, gaps *paymentService.GapRecorder, sink notifications.Sink, log *zap.Logger) *Onboarder {
	return &Onboarder{db: db, gaps: gaps, sink: sink, log: log.Named("onboarding"), now: time.Now}
}

var errOccupied = fiber.NewError(fiber.StatusConflict, "house is already occupied")

type joinInput struct {
	apartmentID uuid.UUID
	houseID     uuid.UUID
	phone       string
}

func (s *Onboarder) Join(ctx context.Context, who helper.Identity, req dto.JoinRequest) (dto.JoinResponse, error) {
	if who.UserID == uuid.Nil {
		return dto.JoinResponse{}, fiber.NewError(fiber.StatusUnauthorized, "not logged in")
	}
	if err := helper.ValidateStruct(req); err != nil {
		return dto.JoinResponse{}, err
	}
	if !req.Total.IsPositive() {
		return dto.JoinResponse{}, helper.FieldError("total", "must be greater than 0")
	}
	phone, err := helper.NormalizePhone(req.Phone)
	if err != nil {
		return dto.JoinResponse{}, helper.FieldError("phone", "must be a valid mobile number, e.g. 0712345678")
	}
	in := joinInput{
		apartmentID: uuid.MustParse(req.ApartmentID),
		houseID:     uuid.MustParse(req.HouseID),
		phone:       phone,
	}

	var out dto.JoinResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.join(ctx, tx, who, in, req)
		return err
	})
	if err != nil {
		s.record(err)
		if errors.Is(err, errOccupied) {
			s.flagStranded(ctx, who, in.houseID, req.CheckoutRequestID)
		}
		return dto.JoinResponse{}, err
	}

	metrics.RecordOnboarding("joined")
	s.log.Info("tenant onboarded",
		zap.String("tenant_id", out.TenantID),
		zap.String("house_id", out.HouseID),
		zap.String("payment_id", out.PaymentID))
	notifications.Notify(ctx, s.sink, s.log, notifications.Message{
		UserID: who.UserID,
		Level:  notifications.LevelSuccess,
		Event:  "tenancy.joined",
		Text:   fmt.Sprintf("Welcome home. House %s at %s is now yours.", out.HouseDoor, out.ApartmentName),
		Data:   map[string]any{"house_id": out.HouseID, "apartment_id": out.ApartmentID},
	})
	return out, nil
}

// join stages every mutation on tx. Any error rolls all of them back.
func (s *Onboarder) join(ctx context.Context, tx *gorm.DB, who helper.Identity, in joinInput, req dto.JoinRequest) (dto.JoinResponse, error) {
	now := s.now()

	// 1) house: still there, same apartment, still vacant, same charges
	unit, err := housingService.LoadUnit(ctx, tx, in.houseID, &in.apartmentID, true)
	if err != nil {
		return dto.JoinResponse{}, err
	}
	if !unit.House.IsVacant() {
		return dto.JoinResponse{}, errOccupied
	}
	if err := unit.Charges().Matches(req.Charges, req.Total); err != nil {
		return dto.JoinResponse{}, fiber.NewError(fiber.StatusConflict, "charges no longer match this house: "+err.Error())
	}

	// 2) payment: completed joining payment by this tenant for this house, not yet used
	pay, err := s.loadPayment(ctx, tx, who, req.CheckoutRequestID)
	if err != nil {
		return dto.JoinResponse{}, err
	}
	switch {
	case pay.PaymentStatus != paymentModel.PaymentStatusCompleted:
		return dto.JoinResponse{}, fiber.NewError(fiber.StatusConflict, "payment is "+string(pay.PaymentStatus)+", not completed")
	case pay.PaymentKind != paymentModel.PaymentKindJoining:
		return dto.JoinResponse{}, fiber.NewError(fiber.StatusConflict, "payment is not a joining payment")
	case pay.PaymentHouseID != in.houseID:
		return dto.JoinResponse{}, fiber.NewError(fiber.StatusConflict, "payment was made for a different house")
	case pay.PaymentOnboardedAt != nil:
		return dto.JoinResponse{}, fiber.NewError(fiber.StatusConflict, "payment was already used to join a house")
	}

	// 3) house -> occupied, conditional on still being vacant
	res := tx.Model(&housingModel.House{}).
		Where("house_id = ? AND house_status = ? AND house_tenant_id IS NULL", in.houseID, housingModel.HouseStatusVacant).
		Updates(map[string]any{
			"house_status":     housingModel.HouseStatusOccupied,
			"house_tenant_id":  who.UserID,
			"house_updated_at": now,
		})
	if res.Error != nil {
		return dto.JoinResponse{}, fmt.Errorf("occupy house: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return dto.JoinResponse{}, errOccupied
	}

	// 4) tenant side: profile phone, role, membership, rented house
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"user_phone": in.phone, "user_updated_at": now}),
	}).Create(&userModel.User{UserID: who.UserID, UserEmail: who.Email, UserPhone: in.phone}).Error; err != nil {
		return dto.JoinResponse{}, fmt.Errorf("upsert user: %w", err)
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&userModel.UserRole{UserRoleUserID: who.UserID, UserRoleName: constants.RoleTenant}).Error; err != nil {
		return dto.JoinResponse{}, fmt.Errorf("grant tenant role: %w", err)
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&userModel.TenantApartmentMembership{MembershipUserID: who.UserID, MembershipApartmentID: in.apartmentID}).Error; err != nil {
		return dto.JoinResponse{}, fmt.Errorf("add membership: %w", err)
	}
	rented := userModel.TenantRentedHouse{
		RentedUserID:    who.UserID,
		RentedHouseID:   in.houseID,
		RentedPaymentID: pay.PaymentID,
		RentedStartedAt: now,
	}
	if err := tx.Create(&rented).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.JoinResponse{}, fiber.NewError(fiber.StatusConflict, "tenancy already recorded")
		}
		return dto.JoinResponse{}, fmt.Errorf("add rented house: %w", err)
	}

	// 5) consume the payment
	res = tx.Model(&paymentModel.Payment{}).
		Where("payment_id = ? AND payment_onboarded_at IS NULL", pay.PaymentID).
		UpdateColumn("payment_onboarded_at", now)
	if res.Error != nil {
		return dto.JoinResponse{}, fmt.Errorf("consume payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return dto.JoinResponse{}, fiber.NewError(fiber.StatusConflict, "payment was already used to join a house")
	}

	var roles []string
	if err := tx.Model(&userModel.UserRole{}).
		Where("user_role_user_id = ?", who.UserID).
		Order("user_role_name").
		Pluck("user_role_name", &roles).Error; err != nil {
		return dto.JoinResponse{}, fmt.Errorf("read roles: %w", err)
	}

	return dto.JoinResponse{
		TenantID:      who.UserID.String(),
		HouseID:       in.houseID.String(),
		HouseDoor:     unit.House.HouseDoor,
		HouseStatus:   string(housingModel.HouseStatusOccupied),
		ApartmentID:   in.apartmentID.String(),
		ApartmentName: unit.Apartment.ApartmentName,
		PaymentID:     pay.PaymentID.String(),
		Roles:         roles,
		StartedAt:     now,
	}, nil
}

func (s *Onboarder) loadPayment(ctx context.Context, tx *gorm.DB, who helper.Identity, checkoutID string) (paymentModel.Payment, error) {
	var p paymentModel.Payment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_checkout_request_id = ? AND payment_tenant_id = ?", checkoutID, who.UserID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, fiber.NewError(fiber.StatusNotFound, "payment not found")
	}
	if err != nil {
		return p, fmt.Errorf("load payment: %w", err)
	}
	return p, nil
}

// flagStranded records a gap when the caller paid to join a house that someone else
// now occupies. It runs after the rollback so the row survives.
func (s *Onboarder) flagStranded(ctx context.Context, who helper.Identity, houseID uuid.UUID, checkoutID string) {
	if s.gaps == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	var p paymentModel.Payment
	err := s.db.WithContext(ctx).
		Where("payment_checkout_request_id = ? AND payment_tenant_id = ?", checkoutID, who.UserID).
		Take(&p).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("stranded payment lookup failed", zap.String("checkout_request_id", checkoutID), zap.Error(err))
		}
		return
	}
	if p.PaymentStatus != paymentModel.PaymentStatusCompleted ||
		p.PaymentKind != paymentModel.PaymentKindJoining ||
		p.PaymentHouseID != houseID ||
		p.PaymentOnboardedAt != nil {
		return
	}

	receipt := ""
	if p.PaymentReceiptNumber != nil {
		receipt = *p.PaymentReceiptNumber
	}
	s.gaps.Record(ctx, paymentService.Gap{
		Reason:            paymentModel.GapOnboardingConflict,
		CheckoutRequestID: p.PaymentCheckoutRequestID,
		MerchantRequestID: p.PaymentMerchantRequestID,
		PaymentID:         &p.PaymentID,
		TenantID:          &p.PaymentTenantID,
		Detail:            fmt.Sprintf("joining payment %s (receipt %q) completed but house %s is occupied; refund or reassign", p.PaymentAmount.String(), receipt, houseID),
	})
}

func (s *Onboarder) record(err error) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe) && fe.Code == fiber.StatusConflict:
		metrics.RecordOnboarding("conflict")
	case errors.As(err, &fe) && fe.Code < 500:
		metrics.RecordOnboarding("rejected")
	default:
		metrics.RecordOnboarding("error")
		s.log.Error("onboarding rolled back", zap.Error(err))
	}
}
