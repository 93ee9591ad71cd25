package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "rentflow_backend/internals/features/housing/model"
)

// Unit is a house together with the apartment that owns it.
type Unit struct {
	House     model.House
	Apartment model.Apartment
}

func (u Unit) Charges() ChargeSet { return ExpectedCharges(u.House, u.Apartment) }

// LoadUnit reads a house and its apartment. When apartmentID is non-nil the house must
// belong to it. Pass forUpdate inside a transaction to row-lock the house.
func LoadUnit(ctx context.Context, db *gorm.DB, houseID uuid.UUID, apartmentID *uuid.UUID, forUpdate bool) (Unit, error) {
	var u Unit

	q := db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("house_id = ?", houseID).Take(&u.House).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return u, fiber.NewError(fiber.StatusNotFound, "house not found")
		}
		return u, fmt.Errorf("load house: %w", err)
	}

	if apartmentID != nil && *apartmentID != u.House.HouseApartmentID {
		// house exists but not under the claimed apartment
		if err := db.WithContext(ctx).Select("apartment_id").Where("apartment_id = ?", *apartmentID).Take(&model.Apartment{}).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return u, fiber.NewError(fiber.StatusNotFound, "apartment not found")
			}
			return u, fmt.Errorf("load apartment: %w", err)
		}
		return u, fiber.NewError(fiber.StatusConflict, "house does not belong to this apartment")
	}

	if err := db.WithContext(ctx).Where("apartment_id = ?", u.House.HouseApartmentID).Take(&u.Apartment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return u, fiber.NewError(fiber.StatusNotFound, "apartment not found")
		}
		return u, fmt.Errorf("load apartment: %w", err)
	}
	if err := ValidateExtras(u.House, u.Apartment); err != nil {
		return u, fiber.NewError(fiber.StatusUnprocessableEntity, "house has an invalid charge schedule: "+err.Error())
	}
	return u, nil
}
