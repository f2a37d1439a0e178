package product

import (
	"database/sql"
	"time"
)

type Type string

const (
	TypeCourse  Type = "course"
	TypeService Type = "service"
)

type Product struct {
	ID           string         `json:"id" db:"product_id"`
	Title        string         `json:"title" db:"title"`
	Description  string         `json:"description" db:"description"`
	Price        int            `json:"price" db:"price"`
	Type         Type           `json:"productType" db:"product_type"`
	ResourceLink sql.NullString `json:"-" db:"resource_link"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
}

type ProductNew struct {
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description" validate:"required"`
	Price        int    `json:"price" validate:"required,gt=0"`
	Type         string `json:"productType" validate:"required,oneof=course service"`
	ResourceLink string `json:"resourceLink" validate:"omitempty,url"`
}
