package domain

import (
	"fmt"
	"strings"
	"time"
)

type Category struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"productId"`
	Name       string    `json:"name"`
	Predefined bool      `json:"predefined"`
	CreatedAt  time.Time `json:"createdAt"`
}

type DocumentType struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"productId"`
	CategoryID string    `json:"categoryId"`
	Name       string    `json:"name"`
	Predefined bool      `json:"predefined"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Template struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	TypeID    string    `json:"typeId"`
	Name      string    `json:"name"`
	FileID    string    `json:"fileId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c Category) EnsureMutable() error {
	if c.Predefined {
		return fmt.Errorf("%w: category %s is predefined", ErrInvalidOperation, c.Name)
	}
	return nil
}

func (t DocumentType) EnsureMutable() error {
	if t.Predefined {
		return fmt.Errorf("%w: document type %s is predefined", ErrInvalidOperation, t.Name)
	}
	return nil
}

func ValidateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s name is required", ErrInvalidItem, kind)
	}
	if len(name) > 200 {
		return fmt.Errorf("%w: %s name is too long", ErrInvalidItem, kind)
	}
	return nil
}
