package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// translate maps store errors onto the domain taxonomy. what names the row for the message.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", domain.ErrItemNotFound, what)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s", domain.ErrDuplicatedItem, what)
	default:
		return err
	}
}

func toJSON(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb column: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func fromJSON[T any](raw datatypes.JSON, fallback T) (T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return fallback, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return fallback, fmt.Errorf("decode jsonb column: %w", err)
	}
	return out, nil
}
