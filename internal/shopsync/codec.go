package shopsync

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"market/internal/broker"
	"market/internal/models"
)

// ShopModel is the model label carried by serialized shops
const ShopModel = "shop.shop"

// shopFields mirrors the serialized field set of the peer's shop model
type shopFields struct {
	Name                   string  `json:"name"`
	Slug                   *string `json:"slug"`
	ClientID               string  `json:"client_id"`
	APIKey                 string  `json:"ozon_api_key"`
	LegacyAPIKey           string  `json:"api_key,omitempty"`
	ShipperAPIKey          string  `json:"shipper_api_key"`
	IsActive               bool    `json:"is_active"`
	PriceUpdating          bool    `json:"price_updating"`
	VendorName             string  `json:"vendor_name"`
	IndividualUpdatingTime bool    `json:"individual_updating_time"`
}

type serializedShop struct {
	Model  string     `json:"model"`
	PK     int64      `json:"pk"`
	Fields shopFields `json:"fields"`
}

// EncodeShop serializes a shop as a one-element object list
func EncodeShop(shop models.Shop) ([]byte, error) {
	var slug *string
	if shop.Slug != "" {
		s := shop.Slug
		slug = &s
	}

	body, err := json.Marshal([]serializedShop{{
		Model: ShopModel,
		PK:    shop.ID,
		Fields: shopFields{
			Name:                   shop.Name,
			Slug:                   slug,
			ClientID:               shop.ClientID,
			APIKey:                 shop.APIKey,
			ShipperAPIKey:          shop.ShipperAPIKey,
			IsActive:               shop.IsActive,
			PriceUpdating:          shop.PriceUpdating,
			VendorName:             shop.VendorName,
			IndividualUpdatingTime: shop.IndividualUpdatingTime,
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode shop %d: %w", shop.ID, err)
	}
	return body, nil
}

// DecodeShop reads the first shop of a serialized object list
func DecodeShop(body []byte) (models.Shop, error) {
	var objects []serializedShop
	if err := json.Unmarshal(body, &objects); err != nil {
		return models.Shop{}, fmt.Errorf("%w: malformed shop payload: %v", broker.ErrProtocolViolation, err)
	}
	if len(objects) == 0 {
		return models.Shop{}, fmt.Errorf("%w: empty shop payload", broker.ErrProtocolViolation)
	}

	obj := objects[0]
	if obj.Model != "" && obj.Model != ShopModel {
		return models.Shop{}, fmt.Errorf("%w: unexpected model %q", broker.ErrProtocolViolation, obj.Model)
	}
	if obj.PK <= 0 {
		return models.Shop{}, fmt.Errorf("%w: shop payload without primary key", broker.ErrProtocolViolation)
	}

	f := obj.Fields
	shop := models.Shop{
		ID:                     obj.PK,
		Name:                   f.Name,
		ClientID:               f.ClientID,
		APIKey:                 f.APIKey,
		ShipperAPIKey:          f.ShipperAPIKey,
		VendorName:             f.VendorName,
		IsActive:               f.IsActive,
		PriceUpdating:          f.PriceUpdating,
		IndividualUpdatingTime: f.IndividualUpdatingTime,
	}
	if f.Slug != nil {
		shop.Slug = *f.Slug
	}
	if shop.APIKey == "" {
		shop.APIKey = f.LegacyAPIKey
	}
	return shop, nil
}

// EncodeShopID renders a delete payload
func EncodeShopID(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

// DecodeShopID parses a delete payload
func DecodeShopID(body []byte) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: delete payload %q is not an id", broker.ErrProtocolViolation, body)
	}
	return id, nil
}
