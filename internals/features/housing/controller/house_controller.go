package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentflow_backend/internals/features/housing/service"
	helper "rentflow_backend/internals/helpers"
)

type HouseController struct {
	DB *gorm.DB
}

func NewHouseController(db *gorm.DB) *HouseController {
	return &HouseController{DB: db}
}

type ChargesResponse struct {
	HouseID       uuid.UUID         `json:"house_id"`
	HouseDoor     string            `json:"house_door"`
	HouseStatus   string            `json:"house_status"`
	ApartmentID   uuid.UUID         `json:"apartment_id"`
	ApartmentName string            `json:"apartment_name"`
	Paybill       string            `json:"paybill"`
	Charges       service.ChargeSet `json:"charges"`
}

// GET /api/houses/:house_id/charges
func (h *HouseController) GetCharges(c *fiber.Ctx) error {
	houseID, err := helper.ParseUUIDParam(c, "house_id")
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	var aptID *uuid.UUID
	if raw := c.Query("apartment_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "apartment_id is not a valid UUID")
		}
		aptID = &id
	}

	unit, err := service.LoadUnit(c.UserContext(), h.DB, houseID, aptID, false)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	return helper.JsonOK(c, "", ChargesResponse{
		HouseID:       unit.House.HouseID,
		HouseDoor:     unit.House.HouseDoor,
		HouseStatus:   string(unit.House.HouseStatus),
		ApartmentID:   unit.Apartment.ApartmentID,
		ApartmentName: unit.Apartment.ApartmentName,
		Paybill:       unit.Apartment.ApartmentPaybill,
		Charges:       unit.Charges(),
	})
}
